/*
Package limiter provides keyed request rate limiting.

Each key (a client IP for anonymous endpoints, an identity id for authenticated ones) gets its
own token bucket (rate.Limiter). A background sweeper drops buckets that have refilled
completely, so idle keys do not accumulate.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hotelchat/internal/pkg/errs"
	"hotelchat/internal/pkg/logx"
	"hotelchat/internal/pkg/resp"
)

// sweepInterval is how often idle buckets are dropped.
const sweepInterval = 3 * time.Minute

// KeyFunc derives the rate-limit key of a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// KeyedRateLimiter keeps one token bucket per key.
type KeyedRateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	r       rate.Limit
	b       int
	stop    chan struct{}
	once    sync.Once
}

// New creates a limiter allowing r events per second with bursts of b per key,
// and starts its sweeper. Call Stop to end the sweeper.
func New(r rate.Limit, b int) *KeyedRateLimiter {
	l := &KeyedRateLimiter{
		buckets: make(map[string]*rate.Limiter),
		r:       r,
		b:       b,
		stop:    make(chan struct{}),
	}

	go l.sweep()

	return l
}

// Allow consumes one token from key's bucket and reports whether it was available.
func (l *KeyedRateLimiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// bucket returns key's bucket, creating it with double-checked locking.
func (l *KeyedRateLimiter) bucket(key string) *rate.Limiter {
	l.mu.RLock()
	bucket, exists := l.buckets[key]
	l.mu.RUnlock()

	if exists {
		return bucket
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket, exists = l.buckets[key]; !exists {
		bucket = rate.NewLimiter(l.r, l.b)
		l.buckets[key] = bucket
	}
	return bucket
}

// Len returns the number of tracked keys.
func (l *KeyedRateLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Sweep drops every bucket that is full again, i.e. whose key has been idle long enough.
func (l *KeyedRateLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, bucket := range l.buckets {
		if bucket.TokensAt(now) >= float64(bucket.Burst()) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

func (l *KeyedRateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			removed := l.Sweep(now)
			logx.Debug("Rate limiter sweep finished", "removed", removed, "active", l.Len())
		case <-l.stop:
			return
		}
	}
}

// Stop ends the sweeper goroutine. It is safe to call more than once.
func (l *KeyedRateLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Middleware rejects requests whose key ran out of tokens with ErrRateLimitExceeded (HTTP 429).
func (l *KeyedRateLimiter) Middleware(key KeyFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if k := key(r); k != "" && !l.Allow(k) {
				logx.Warn("Request rejected: rate limit exceeded", "key", k, "path", r.URL.Path)
				resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by remote IP. Mount chi's RealIP middleware first behind proxies.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if ip == "" {
		return "unknown_ip"
	}
	return ip
}
