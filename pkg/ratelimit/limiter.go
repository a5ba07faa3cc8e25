package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// MultiLimiter manages multiple rate limiters for different endpoints
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds a new rate limiter for an endpoint.
// requestsPerSecond <= 0 means unlimited.
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	m.limiters[name] = rate.NewLimiter(limit, burst)
}

// Wait blocks until the limiter allows an event
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Wait(ctx)
}

// Limiter names for the catalogue service endpoints
const (
	LimiterNews    = "news"    // per-title news endpoint
	LimiterLibrary = "library" // owned games + app list endpoints
)

// NewDefaultLimiter creates a limiter with the given news endpoint budget.
// The library endpoints are called a handful of times per run so they get a
// fixed, polite budget.
func NewDefaultLimiter(newsPerSecond float64, burst int) *MultiLimiter {
	m := NewMultiLimiter()

	m.AddLimiter(LimiterNews, newsPerSecond, burst)

	// Library: 1 request per second, burst 2
	m.AddLimiter(LimiterLibrary, 1, 2)

	return m
}
