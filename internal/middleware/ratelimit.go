package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"event-checkout-platform/internal/clock"
)

// RateLimiter limits attempts per key within a sliding window
type RateLimiter struct {
	attempts    map[string][]time.Time
	mutex       sync.Mutex
	maxAttempts int
	window      time.Duration
	clock       clock.Clock
	done        chan struct{}
	closeOnce   sync.Once
}

// NewRateLimiter creates a rate limiter allowing maxAttempts per window.
// Call Close to stop its cleanup loop.
func NewRateLimiter(maxAttempts int, window time.Duration, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	rl := &RateLimiter{
		attempts:    make(map[string][]time.Time),
		maxAttempts: maxAttempts,
		window:      window,
		clock:       clk,
		done:        make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow records an attempt for key and reports whether it is within the
// limit. Rejected attempts are not recorded.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.clock.Now()
	valid := rl.pruneLocked(key, now)
	if len(valid) >= rl.maxAttempts {
		return false
	}
	rl.attempts[key] = append(valid, now)
	return true
}

// RetryAfter returns the time until key may try again
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.clock.Now()
	valid := rl.pruneLocked(key, now)
	if len(valid) < rl.maxAttempts {
		return 0
	}
	return valid[0].Add(rl.window).Sub(now)
}

func (rl *RateLimiter) pruneLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	attempts := rl.attempts[key]

	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}
	valid := attempts[i:]
	if len(valid) == 0 {
		delete(rl.attempts, key)
		return nil
	}
	rl.attempts[key] = valid
	return valid
}

// cleanup removes old entries periodically
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mutex.Lock()
			now := rl.clock.Now()
			for key := range rl.attempts {
				rl.pruneLocked(key, now)
			}
			rl.mutex.Unlock()
		}
	}
}

// Close stops the cleanup loop
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// RateLimit limits POST requests per client IP
func RateLimit(rateLimiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)
			if !rateLimiter.Allow(ip) {
				wait := rateLimiter.RetryAfter(ip).Round(time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())))

				message := "Too many attempts. Please try again in " + wait.String() + "."
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
