package channels

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxTrackedKeys caps the number of tracked users so a raid of new
	// accounts can't grow the limiter map without bound.
	maxTrackedKeys = 4096

	// idleEviction is how long a user's limiter is kept after their last request.
	idleEviction = 10 * time.Minute

	DefaultRatePerMinute = 6
	DefaultBurst         = 3
)

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter limits how often each user may trigger an edit.
// Safe for concurrent use. A nil limiter allows everything.
type UserRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*userLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewUserRateLimiter allows perMinute requests per user with the given burst.
// Zero values fall back to the defaults.
func NewUserRateLimiter(perMinute float64, burst int) *UserRateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultRatePerMinute
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &UserRateLimiter{
		entries: make(map[string]*userLimiter),
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether userID may proceed now, consuming a token if so.
func (r *UserRateLimiter) Allow(userID string) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	// Prune idle entries when approaching the cap
	if len(r.entries) >= maxTrackedKeys {
		for k, e := range r.entries {
			if now.Sub(e.lastSeen) >= idleEviction {
				delete(r.entries, k)
			}
		}
		// Hard eviction if still at cap (FIFO-ish via map iteration)
		for len(r.entries) >= maxTrackedKeys {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[userID]
	if !ok {
		e = &userLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.entries[userID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Tracked returns the number of users currently tracked.
func (r *UserRateLimiter) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
