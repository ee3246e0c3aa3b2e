package search

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueTimeout is returned by Pop when nothing arrives in time.
var ErrQueueTimeout = errors.New("search: queue timeout")

// ItemKind tags a WorkItem.
type ItemKind int

const (
	ItemEnumerate ItemKind = iota
	ItemProbe
	ItemFinalize
	ItemShutdown
)

func (k ItemKind) String() string {
	switch k {
	case ItemEnumerate:
		return "enumerate"
	case ItemProbe:
		return "probe"
	case ItemFinalize:
		return "finalize"
	case ItemShutdown:
		return "shutdown"
	}
	return "unknown"
}

// WorkItem is one unit of search work. Path is set for probes only.
type WorkItem struct {
	Kind     ItemKind
	Path     string
	Priority int
	seq      uint64
}

// Probe returns a file item.
func Probe(path string, score int) WorkItem {
	return WorkItem{Kind: ItemProbe, Path: path, Priority: score}
}

// Enumerate, Finalize and Shutdown return the control items at their fixed
// priorities.
func Enumerate() WorkItem { return WorkItem{Kind: ItemEnumerate, Priority: PriorityEnumerate} }
func Finalize() WorkItem  { return WorkItem{Kind: ItemFinalize, Priority: PriorityFinalize} }
func Shutdown() WorkItem  { return WorkItem{Kind: ItemShutdown, Priority: PriorityShutdown} }

type itemHeap []WorkItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)   { *h = append(*h, x.(WorkItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue is a blocking min-priority queue, FIFO within equal priority. It
// also counts probes that have been popped but not yet marked Done, so the
// finalizer can wait for stragglers.
type Queue struct {
	mu     sync.Mutex
	items  itemHeap
	seq    uint64
	wake   chan struct{}
	active sync.WaitGroup
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{})}
}

// Push adds it and wakes every blocked Pop.
func (q *Queue) Push(it WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	it.seq = q.seq
	heap.Push(&q.items, it)
	close(q.wake)
	q.wake = make(chan struct{})
}

// Pop removes the lowest-priority item, waiting up to timeout for one to
// arrive. Every popped probe must be matched by a call to Done.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (WorkItem, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := heap.Pop(&q.items).(WorkItem)
			if it.Kind == ItemProbe {
				q.active.Add(1)
			}
			q.mu.Unlock()
			return it, nil
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C:
			return WorkItem{}, ErrQueueTimeout
		case <-ctx.Done():
			return WorkItem{}, ctx.Err()
		}
	}
}

// Done marks a popped probe finished.
func (q *Queue) Done() { q.active.Done() }

// WaitProbes blocks until every popped probe is Done.
func (q *Queue) WaitProbes() { q.active.Wait() }

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
