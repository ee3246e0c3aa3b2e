package store

import (
	"time"

	"github.com/jward/cnav/internal/semantic"
)

// NavEntry is one persisted Navigation Stack frame.
type NavEntry struct {
	ID        int64
	Origin    semantic.Location
	Target    semantic.Location
	CreatedAt time.Time
}

// SearchRecord is one finished Extensive Search session.
type SearchRecord struct {
	ID         string
	Mode       string
	Spelling   string
	OriginFile string
	Target     *semantic.Location
	Candidates int
	Faults     int
	TimedOut   bool
	StartedAt  time.Time
	Duration   time.Duration
}
