// Package ratelimit throttles requests per client key with token buckets.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Options configures a Limiter.
type Options struct {
	// PerMinute is the sustained number of requests allowed per key.
	PerMinute int
	Burst     int
	// IdleTTL drops buckets for keys not seen for this long. Defaults to 10m.
	IdleTTL time.Duration
	Now     func() time.Time
}

// Limiter keeps one bucket per key.
type Limiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New builds a Limiter. A non-positive PerMinute disables limiting.
func New(opts Options) *Limiter {
	l := &Limiter{
		limit:    rate.Inf,
		burst:    opts.Burst,
		idleTTL:  opts.IdleTTL,
		now:      opts.Now,
		visitors: make(map[string]*visitor),
	}
	if opts.PerMinute > 0 {
		l.limit = rate.Limit(float64(opts.PerMinute) / 60)
	}
	if l.burst <= 0 {
		l.burst = max(opts.PerMinute, 1)
	}
	if l.idleTTL <= 0 {
		l.idleTTL = 10 * time.Minute
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Allow consumes one token for key. It returns the wait before a token is
// available when the request is refused.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if l.limit == rate.Inf {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	reservation := v.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	reservation.CancelAt(now)
	return false, delay
}

// Sweep removes idle buckets and reports how many remain.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
		}
	}
	return len(l.visitors)
}

// Run sweeps every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Middleware refuses requests whose key ran out of tokens. Refusals get a
// Retry-After header and are handed to reject.
func (l *Limiter) Middleware(key func(*http.Request) string, reject http.Handler) func(http.Handler) http.Handler {
	if reject == nil {
		reject = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := l.Allow(key(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				reject.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
