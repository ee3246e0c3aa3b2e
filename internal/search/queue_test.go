package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, q *Queue, n int) []WorkItem {
	t.Helper()
	var out []WorkItem
	for i := 0; i < n; i++ {
		it, err := q.Pop(context.Background(), time.Second)
		require.NoError(t, err)
		if it.Kind == ItemProbe {
			q.Done()
		}
		out = append(out, it)
	}
	return out
}

func TestQueue_DrainsByPriority(t *testing.T) {
	q := NewQueue()
	q.Push(Probe("b.cpp", 998))
	q.Push(Finalize())
	q.Push(Probe("a.cpp", 950))
	q.Push(Probe("c.cpp", 1000))

	items := drain(t, q, 4)
	var got []int
	for _, it := range items {
		got = append(got, it.Priority)
	}
	assert.Equal(t, []int{950, 998, 1000, PriorityFinalize}, got)
	assert.Equal(t, ItemFinalize, items[3].Kind)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_FIFOWithinPriority(t *testing.T) {
	q := NewQueue()
	q.Push(Shutdown())
	q.Push(Probe("first.cpp", 1000))
	q.Push(Probe("second.cpp", 1000))
	q.Push(Shutdown())

	items := drain(t, q, 4)
	assert.Equal(t, "first.cpp", items[0].Path)
	assert.Equal(t, "second.cpp", items[1].Path)
	assert.Equal(t, ItemShutdown, items[2].Kind)
	assert.Equal(t, ItemShutdown, items[3].Kind)
}

func TestQueue_EnumerateComesFirst(t *testing.T) {
	q := NewQueue()
	q.Push(Probe("a.cpp", 990))
	q.Push(Enumerate())

	it, err := q.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, ItemEnumerate, it.Kind)
}

func TestQueue_PopTimesOut(t *testing.T) {
	q := NewQueue()
	_, err := q.Pop(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueTimeout)
}

func TestQueue_PopHonorsContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Pop(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_PopWakesOnPush(t *testing.T) {
	q := NewQueue()
	got := make(chan WorkItem, 1)
	go func() {
		it, err := q.Pop(context.Background(), 5*time.Second)
		if err == nil {
			got <- it
		}
		close(got)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(Shutdown())

	select {
	case it := <-got:
		assert.Equal(t, ItemShutdown, it.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("Pop did not wake")
	}
}

func TestQueue_WaitProbes(t *testing.T) {
	q := NewQueue()
	q.Push(Probe("a.cpp", 1))
	_, err := q.Pop(context.Background(), time.Second)
	require.NoError(t, err)

	waited := make(chan struct{})
	go func() {
		q.WaitProbes()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("WaitProbes returned with a probe in flight")
	case <-time.After(20 * time.Millisecond):
	}
	q.Done()
	<-waited
}
