package cnav

import "errors"

// Error taxonomy. Interactive commands report "no answer" through
// Result.Message; these sentinels let callers that want a Go error classify
// a Result with Result.Err.
var (
	// ErrUnresolvable means no semantic or textual evidence was found.
	ErrUnresolvable = errors.New("cnav: unresolvable")
	// ErrAmbiguous means several targets are equally valid and the caller
	// must choose.
	ErrAmbiguous = errors.New("cnav: ambiguous result")
	// ErrResourceUnavailable means a translation unit was not ready or a
	// file could not be read.
	ErrResourceUnavailable = errors.New("cnav: resource unavailable")
	// ErrWorkerFault means an Extensive Search worker failed. The search
	// still completes with what the other workers found.
	ErrWorkerFault = errors.New("cnav: search worker fault")
)

// Err classifies r: nil when it navigated, ErrAmbiguous when it carries
// choices, ErrWorkerFault when an empty search lost workers, and
// ErrUnresolvable otherwise.
func (r Result) Err() error {
	switch {
	case r.Target != nil:
		return nil
	case len(r.Choices) > 0:
		return ErrAmbiguous
	case r.Faults > 0:
		return ErrWorkerFault
	}
	return ErrUnresolvable
}
