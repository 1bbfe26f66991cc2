/*
Package logx provides a structured logging wrapper based on zerolog.

This file contains the HTTP request logging middleware. It records URI, method, status and
latency, anonymizes the client IP, and lets inner middleware (e.g. token extraction) attach
the caller identity to the completion log line through Annotate.
*/
package logx

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type annotationsKey struct{}

// annotations collects fields added by inner handlers for the completion log line.
type annotations struct {
	mu     sync.Mutex
	fields map[string]any
}

// Annotate attaches key=value to the completion log line of the current request.
// It is a no-op outside of RequestLogger.
func Annotate(ctx context.Context, key string, value any) {
	a, ok := ctx.Value(annotationsKey{}).(*annotations)
	if !ok {
		return
	}
	a.mu.Lock()
	a.fields[key] = value
	a.mu.Unlock()
}

// anonymizeIP zeros the last IPv4 octet, or keeps only the first half of an IPv6 address.
func anonymizeIP(ipStr string) string {
	host, _, err := net.SplitHostPort(ipStr)
	if err == nil {
		ipStr = host
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "unknown_ip"
	}

	if ip.IsLoopback() {
		return "127.0.0.1"
	}

	if v4 := ip.To4(); v4 != nil {
		return v4[:3].String() + ".0"
	}

	if v6 := ip.To16(); v6 != nil {
		return v6[:8].String() + "::"
	}

	return ipStr
}

// RequestLogger returns an HTTP middleware that logs one line per completed request.
// A request-scoped logger is injected into the context for handlers that want it.
func RequestLogger() func(next http.Handler) http.Handler {
	baseLogger := Logger()

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			requestID := middleware.GetReqID(r.Context())

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := baseLogger.With().
				Str("component", "http").
				Str("request_id", requestID).
				Str("remote_ip", anonymizeIP(r.RemoteAddr)).
				Str("request_method", r.Method).
				Str("request_uri", r.URL.Path).
				Logger()

			notes := &annotations{fields: make(map[string]any)}
			ctx := context.WithValue(logger.WithContext(r.Context()), annotationsKey{}, notes)

			t1 := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()

			logEvent := logger.Info()
			if status >= 500 {
				logEvent = logger.Error()
			} else if status >= 400 {
				logEvent = logger.Warn()
			}

			notes.mu.Lock()
			logEvent = logEvent.Fields(notes.fields)
			notes.mu.Unlock()

			logEvent.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(t1)).
				Msg("Request completed")
		}

		return http.HandlerFunc(fn)
	}
}
