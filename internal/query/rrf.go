package query

import "sort"

// rrfK is the reciprocal-rank fusion constant; fixed per the rank
// formula, not configurable.
const rrfK = 60

// rankedList is one source's results, already sorted best-first. Ties in
// fused score resolve by the first list a ranked id appeared in, so callers
// must pass lists in a fixed, meaningful order (e.g. full-text, language
// vector, vision vector).
type rankedList []string

// fuseRanked combines ranked id lists with reciprocal-rank fusion (k=60):
// for each list, rrf(id) += 1/(k + rank) with rank counted from 1 (the
// list head has rank 1), summed across lists, sorted
// descending by fused score. Ids are deduplicated, first occurrence order
// breaking ties.
func fuseRanked(lists ...rankedList) []string {
	score := map[string]float64{}
	firstSeen := map[string]int{}
	order := 0

	for _, list := range lists {
		for rank, id := range list {
			if _, ok := firstSeen[id]; !ok {
				firstSeen[id] = order
				order++
			}
			score[id] += 1.0 / float64(rrfK+rank+1)
		}
	}

	ids := make([]string, 0, len(score))
	for id := range score {
		ids = append(ids, id)
	}

	sort.SliceStable(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if score[a] != score[b] {
			return score[a] > score[b]
		}
		return firstSeen[a] < firstSeen[b]
	})
	return ids
}
