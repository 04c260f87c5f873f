package audit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// DefaultWindow is the default suppression window for repeated kinds
const DefaultWindow = 30 * time.Second

type kindLimiter struct {
	limiter    *rate.Limiter
	suppressed int
}

// Throttle lets one event per kind through per window. Each kind has its own
// token bucket refilling one token per window with a burst of one.
type Throttle struct {
	mu       sync.Mutex
	window   time.Duration
	clock    clock.Clock
	limiters map[Kind]*kindLimiter
}

// NewThrottle creates a throttle; a non-positive window disables suppression
func NewThrottle(w time.Duration, c clock.Clock) *Throttle {
	if c == nil {
		c = clock.New()
	}
	return &Throttle{window: w, clock: c, limiters: make(map[Kind]*kindLimiter)}
}

// Allow reports whether an event of kind may be emitted now. When it may,
// suppressed is the number of events of that kind dropped since the last
// emitted one.
func (t *Throttle) Allow(kind Kind) (ok bool, suppressed int) {
	if t.window <= 0 {
		return true, 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	kl, exists := t.limiters[kind]
	if !exists {
		kl = &kindLimiter{limiter: rate.NewLimiter(rate.Every(t.window), 1)}
		t.limiters[kind] = kl
	}
	if !kl.limiter.AllowN(t.clock.Now(), 1) {
		kl.suppressed++
		return false, 0
	}
	suppressed = kl.suppressed
	kl.suppressed = 0
	return true, suppressed
}
