package query

import "testing"

// TestFuseRanked_Deterministic exercises §8 invariant 3: fused ranking is
// deterministic given identical inputs, and scenario 5's fan-in shape
// (two lists sharing a top id, the remaining ids, including one singleton
// list, ranked behind it).
func TestFuseRanked_Deterministic(t *testing.T) {
	fullText := rankedList{"Tx", "Ty"}
	language := rankedList{"Tx", "Tz"}
	vision := rankedList{"Iw"}

	first := fuseRanked(fullText, language, vision)
	second := fuseRanked(fullText, language, vision)

	if len(first) != len(second) {
		t.Fatalf("non-deterministic lengths: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-deterministic order at %d: %v vs %v", i, first, second)
		}
	}

	if first[0] != "Tx" {
		t.Fatalf("expected Tx ranked first (appears in two lists at rank 0), got %v", first)
	}
}

func TestFuseRanked_DedupesPreservingFirstOccurrence(t *testing.T) {
	a := rankedList{"X", "Y"}
	b := rankedList{"Y", "X"}

	got := fuseRanked(a, b)
	if len(got) != 2 {
		t.Fatalf("expected 2 unique ids, got %v", got)
	}
}

func TestFuseRanked_EmptyLists(t *testing.T) {
	got := fuseRanked(rankedList{}, rankedList{})
	if len(got) != 0 {
		t.Fatalf("expected no results, got %v", got)
	}
}
