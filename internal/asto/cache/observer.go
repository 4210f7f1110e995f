package cache

import (
	"context"
	"time"

	"github.com/artipie/artipie/internal/asto"
)

// Outcome classifies how a Load call was answered.
type Outcome string

const (
	// OutcomeHit means a validated local copy was served.
	OutcomeHit Outcome = "hit"
	// OutcomeMiss means content was fetched from the remote and stored.
	OutcomeMiss Outcome = "miss"
	// OutcomeStale means the remote could not deliver and an unvalidated
	// local copy was served instead.
	OutcomeStale Outcome = "stale"
	// OutcomeCorrupt means the local copy failed an integrity check and the
	// remote could not replace it, so nothing was served.
	OutcomeCorrupt Outcome = "corrupt"
	// OutcomeAbsent means neither the remote nor storage had content.
	OutcomeAbsent Outcome = "absent"
	// OutcomeError means Load returned an error.
	OutcomeError Outcome = "error"
)

// Event describes one finished Load call.
type Event struct {
	Key      asto.Key
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Observer is notified after every Load. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) {
	f(e)
}

type observers []Observer

// Observers fans events out to every non-nil observer in order.
func Observers(list ...Observer) Observer {
	out := make(observers, 0, len(list))
	for _, o := range list {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (o observers) Observe(e Event) {
	for _, observer := range o {
		observer.Observe(e)
	}
}

type recorderKey struct{}

// WithRecorder returns a context under which Load stores its outcome in dst.
// Loads that bypass storage, such as NOP, leave dst untouched.
func WithRecorder(ctx context.Context, dst *Outcome) context.Context {
	return context.WithValue(ctx, recorderKey{}, dst)
}

func record(ctx context.Context, outcome Outcome) {
	if dst, ok := ctx.Value(recorderKey{}).(*Outcome); ok && dst != nil {
		*dst = outcome
	}
}
