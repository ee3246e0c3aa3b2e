package search

import (
	"sync"
	"time"
)

// Throttle coalesces status updates from concurrent workers. Every update
// restarts a short timer; the latest message is published when the timer
// fires or immediately once burst updates have piled up.
type Throttle struct {
	mu       sync.Mutex
	publish  func(string)
	interval time.Duration
	burst    int

	latest  string
	count   int
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewThrottle returns a throttle publishing through publish. publish runs
// with the throttle locked and must not call Update.
func NewThrottle(publish func(string), interval time.Duration, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{publish: publish, interval: interval, burst: burst}
}

// Update records msg as the latest status.
func (t *Throttle) Update(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.latest = msg
	t.count++
	if t.count >= t.burst {
		t.flushLocked()
		return
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.interval, func() { t.fire(gen) })
}

func (t *Throttle) fire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A stale timer may fire after Stop() lost the race.
	if gen != t.gen || t.stopped || t.timer == nil {
		return
	}
	t.flushLocked()
}

func (t *Throttle) flushLocked() {
	t.count = 0
	t.timer = nil
	t.gen++
	if t.publish != nil {
		t.publish(t.latest)
	}
}

// Stop cancels the pending timer, publishing any update it was holding.
// Later updates are dropped.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.flushLocked()
	}
	t.stopped = true
}
