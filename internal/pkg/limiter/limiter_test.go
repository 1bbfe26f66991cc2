package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestKeyedRateLimiter_PerKeyBuckets(t *testing.T) {
	l := New(rate.Every(time.Hour), 2)
	defer l.Stop()

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"), "burst exhausted")
	assert.True(t, l.Allow("b"), "other keys are unaffected")
	assert.Equal(t, 2, l.Len())
}

func TestKeyedRateLimiter_SweepDropsRefilledBuckets(t *testing.T) {
	l := New(rate.Every(time.Second), 1)
	defer l.Stop()

	l.Allow("a")
	assert.Zero(t, l.Sweep(time.Now()), "a drained bucket is kept")
	assert.Equal(t, 1, l.Sweep(time.Now().Add(time.Minute)))
	assert.Zero(t, l.Len())
}

func TestMiddleware(t *testing.T) {
	l := New(rate.Every(time.Hour), 1)
	defer l.Stop()

	h := l.Middleware(ClientIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(remote string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:5678"))
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:1234"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.5:443"
	assert.Equal(t, "192.168.1.5", ClientIP(r))

	r.RemoteAddr = "no-port"
	assert.Equal(t, "no-port", ClientIP(r))

	r.RemoteAddr = ""
	assert.Equal(t, "unknown_ip", ClientIP(r))
}
