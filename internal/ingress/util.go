package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func contextWithTimeout(parent context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		budget = 5 * time.Second
	}
	return context.WithTimeout(parent, budget)
}

// sourceLimiters holds one token bucket per remote source (its RemoteAddr)
// and rate, so /webhook and /submit are sized independently (§4.1).
type sourceLimiters struct {
	mu         sync.Mutex
	webhookRPS int
	submitRPS  int
	byKey      map[string]*rate.Limiter
}

func newSourceLimiters(webhookRPS, submitRPS int) *sourceLimiters {
	return &sourceLimiters{webhookRPS: webhookRPS, submitRPS: submitRPS, byKey: make(map[string]*rate.Limiter)}
}

func (s *sourceLimiters) limiterFor(key string, rps int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	cacheKey := strconv.Itoa(rps) + "|" + key
	lim, ok := s.byKey[cacheKey]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(rps), rps+1)
		s.byKey[cacheKey] = lim
	}
	return lim
}

// rateLimit returns chi middleware enforcing rps per RemoteAddr.
func (s *Server) rateLimit(rps int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lim := s.limiters.limiterFor(r.RemoteAddr, rps)
			if !lim.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// missTracker counts consecutive /check misses per uuid so a client stuck
// polling an id that will never resolve gets told to stop (§4.1).
type missTracker struct {
	mu     sync.Mutex
	misses map[string]int
}

func newMissTracker() *missTracker {
	return &missTracker{misses: make(map[string]int)}
}

const maxChecksBeforeGivingUp = 10

// recordMiss increments uuid's miss count and reports whether the caller
// should be told the submission is "processed" anyway to stop polling.
func (m *missTracker) recordMiss(uuid string) (giveUp bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses[uuid]++
	return m.misses[uuid] >= maxChecksBeforeGivingUp
}

func (m *missTracker) clear(uuid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.misses, uuid)
}
