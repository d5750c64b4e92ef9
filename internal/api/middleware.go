// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kaleidorium/discoveryd/internal/logging"
	"github.com/kaleidorium/discoveryd/internal/metrics"
)

// requestIDHeader carries the request id across the middleware stack and
// back to the client.
const requestIDHeader = "X-Request-ID"

// RequestID ensures every request carries an id, reusing the client's when
// present, and echoes it in the response.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
				r.Header.Set(requestIDHeader, requestID)
			}
			w.Header().Set(requestIDHeader, requestID)
			chiRequestID.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs each request with its status and duration and feeds
// the Prometheus request metrics.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			metrics.TrackActiveRequest(true)
			defer metrics.TrackActiveRequest(false)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			metrics.RecordAPIStatus(r.Method, routePattern(r), ww.Status(), duration)

			logging.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", r.Header.Get(requestIDHeader)).
				Int("status", ww.Status()).
				Dur("duration", duration).
				Msg("request")
		})
	}
}

// routePattern returns the matched chi route pattern, falling back to the
// raw path when routing has not completed. Patterns keep metric label
// cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// viewerLimiter rate limits mutating operations per viewer with a token
// bucket. Feedback arrives at human interaction speed; anything faster is
// a runaway client.
type viewerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newViewerLimiter(rps, burst int) *viewerLimiter {
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = rps * 2
	}
	return &viewerLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// allow reports whether the viewer may proceed.
func (v *viewerLimiter) allow(viewerID string) bool {
	v.mu.Lock()
	entry, ok := v.limiters[viewerID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(v.rps, v.burst)}
		v.limiters[viewerID] = entry
	}
	entry.lastSeen = time.Now()
	v.mu.Unlock()

	return entry.limiter.Allow()
}

// prune evicts limiters idle longer than the TTL.
func (v *viewerLimiter) prune(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	v.mu.Lock()
	for id, entry := range v.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(v.limiters, id)
		}
	}
	v.mu.Unlock()
}
