package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
)

// TickReport describes the outcome of a single poll tick.
//
// Sent to the optional reports channel of a [Poller] for observers such as tests or verbose logging.
type TickReport struct {
	Outcome Outcome       // What the tick did
	Song    *models.Song  // Poll result, nil when nothing is playing or on failure
	Err     error         // Failure, set only for [Failed]
	Elapsed time.Duration // Time spent in the upstream query
}

// Outcome enumerates what a tick ended with.
type Outcome int

const (
	Emitted Outcome = iota
	Unchanged
	Failed
	Discarded
)

func (o Outcome) String() string {
	switch o {
	case Emitted:
		return "emitted"
	case Unchanged:
		return "unchanged"
	case Failed:
		return "failed"
	case Discarded:
		return "discarded"
	default:
		return ""
	}
}

func (r TickReport) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s after %s: %v", r.Outcome, r.Elapsed, r.Err)
	case r.Song != nil:
		return fmt.Sprintf("%s after %s: %s", r.Outcome, r.Elapsed, r.Song.Title)
	default:
		return fmt.Sprintf("%s after %s: nothing playing", r.Outcome, r.Elapsed)
	}
}
