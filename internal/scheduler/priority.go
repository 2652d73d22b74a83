// Package scheduler implements the task pool (spec component C5): a
// priority queue of pending tasks plus per-(asset,task_type) cancellation
// tokens, drained by a single worker that may preempt its current task when
// a strictly higher priority arrives.
package scheduler

import (
	"container/heap"
	"time"

	"lumenarchive/internal/asset"
)

// Priority is the three-level task priority. Higher value runs first.
type Priority int

const (
	Low Priority = iota
	Normal
	High
)

// orderedPriority totally orders tasks at the same nominal Priority by
// insertion order (FIFO among equals); insertion order alone is already
// total. The enqueued timestamp takes no part in ordering and AddTask
// leaves it unset.
type orderedPriority struct {
	priority  Priority
	insertion int64
	enqueued  time.Time
}

// less reports whether a sorts before b in pop order: higher priority pops
// first; among equal priorities, earlier insertion pops first.
func (a orderedPriority) less(b orderedPriority) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.insertion < b.insertion
}

// pendingTask is one queued unit of work.
type pendingTask struct {
	fileIdentifier string
	filePath       string
	taskType       asset.TaskType
	order          orderedPriority
	index          int // heap.Interface bookkeeping
}

// taskHeap is a container/heap.Interface min-root ordered so the
// highest-priority, earliest-inserted task is always at the root.
type taskHeap []*pendingTask

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].order.less(h[j].order) }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*pendingTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

var _ heap.Interface = (*taskHeap)(nil)
