package monitor

import (
	"container/heap"
	"sync"
	"time"

	"github.com/linkwatch/linkwatch/pkg/types"
)

// scheduleEntry is one pair's position in the due-time order
type scheduleEntry struct {
	pair  types.Pair
	due   time.Time
	index int
}

// entryHeap orders entries by due time, earliest first
type entryHeap []*scheduleEntry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *entryHeap) Push(x interface{}) { e := x.(*scheduleEntry); e.index = len(*h); *h = append(*h, e) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler keeps each pair's next check time in a min-heap so the
// monitor loop only looks at the earliest entry per tick
type Scheduler struct {
	mu      sync.Mutex
	heap    entryHeap
	entries map[string]*scheduleEntry
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		entries: make(map[string]*scheduleEntry),
	}
}

// Schedule sets the next check time for a pair, replacing any earlier
// scheduling
func (s *Scheduler) Schedule(pair types.Pair, due time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[pair.Key()]; ok {
		e.due = due
		heap.Fix(&s.heap, e.index)
		return
	}

	e := &scheduleEntry{pair: pair, due: due}
	s.entries[pair.Key()] = e
	heap.Push(&s.heap, e)
}

// PopDue removes and returns every pair whose check time has arrived
func (s *Scheduler) PopDue(now time.Time) []types.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []types.Pair
	for len(s.heap) > 0 && !s.heap[0].due.After(now) {
		e := heap.Pop(&s.heap).(*scheduleEntry)
		delete(s.entries, e.pair.Key())
		due = append(due, e.pair)
	}
	return due
}

// NextDue returns the earliest scheduled time, if any
func (s *Scheduler) NextDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.heap) == 0 {
		return time.Time{}, false
	}
	return s.heap[0].due, true
}

// Len returns the number of scheduled pairs
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}
