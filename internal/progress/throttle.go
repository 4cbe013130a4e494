package progress

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttled forwards events to next, dropping percent events that exceed
// the configured rate. Every other kind passes, as does a percent event that
// reaches 100 or opens a new phase.
type Throttled struct {
	next    Sink
	limiter *rate.Limiter

	mu    sync.Mutex
	phase string
}

// NewThrottled allows roughly one percent event per interval with a small
// burst.
func NewThrottled(next Sink, interval time.Duration, burst int) *Throttled {
	if next == nil {
		next = Discard
	}
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Emit implements Sink.
func (t *Throttled) Emit(e Event) {
	if e.Kind == KindPercent && !t.admit(e) {
		return
	}
	t.next.Emit(e)
}

func (t *Throttled) admit(e Event) bool {
	t.mu.Lock()
	newPhase := e.Phase != t.phase
	t.phase = e.Phase
	t.mu.Unlock()
	if newPhase || e.Percent >= 100 {
		return true
	}
	return t.limiter.Allow()
}
