package download

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedUsers bounds the limiter map; it is reset when exceeded.
const maxTrackedUsers = 10000

// Limiter is a per-user token bucket.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewLimiter allows perMinute downloads per user with the given burst.
// A non-positive perMinute disables limiting.
func NewLimiter(perMinute float64, burst int) *Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perMinute / 60),
		burst:    burst,
	}
}

func (l *Limiter) Allow(userID string) bool {
	if l == nil {
		return true
	}
	return l.get(userID).Allow()
}

func (l *Limiter) get(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[userID]
	if !ok {
		if len(l.limiters) >= maxTrackedUsers {
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[userID] = limiter
	}
	return limiter
}
