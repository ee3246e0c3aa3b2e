package search

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) publish(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestThrottle_BurstThenFinalFlush(t *testing.T) {
	rec := &recorder{}
	th := NewThrottle(rec.publish, 100*time.Millisecond, 30)

	for i := 1; i <= 40; i++ {
		th.Update(fmt.Sprintf("Searching file%d.cpp", i))
	}
	// The 30th update flushed synchronously.
	assert.Equal(t, []string{"Searching file30.cpp"}, rec.messages())

	require.Eventually(t, func() bool { return len(rec.messages()) == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, []string{"Searching file30.cpp", "Searching file40.cpp"}, rec.messages())
}

func TestThrottle_DebouncesQuietUpdates(t *testing.T) {
	rec := &recorder{}
	th := NewThrottle(rec.publish, 50*time.Millisecond, 30)

	th.Update("one")
	th.Update("two")
	assert.Empty(t, rec.messages())

	require.Eventually(t, func() bool { return len(rec.messages()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"two"}, rec.messages())
}

func TestThrottle_StopFlushesPending(t *testing.T) {
	rec := &recorder{}
	th := NewThrottle(rec.publish, time.Hour, 30)

	th.Update("pending")
	th.Stop()
	assert.Equal(t, []string{"pending"}, rec.messages())

	th.Update("dropped")
	th.Stop()
	assert.Equal(t, []string{"pending"}, rec.messages())
}
