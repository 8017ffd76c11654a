package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Default rate limits per provider (requests per second).
var defaultRateLimits = map[ProviderName]rate.Limit{
	NameMusicBrainz: 1,
	NameCoverArt:    5,
	NameITunes:      20,
}

// RateLimiterMap holds one rate.Limiter per provider, created once at startup.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[ProviderName]*rate.Limiter
}

// NewRateLimiterMap creates all provider rate limiters with the default limits.
func NewRateLimiterMap() *RateLimiterMap {
	return NewRateLimiterMapWithLimits(defaultRateLimits)
}

// NewRateLimiterMapWithLimits creates limiters from an explicit table.
// Providers missing from the table are not limited.
func NewRateLimiterMapWithLimits(limits map[ProviderName]rate.Limit) *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[ProviderName]*rate.Limiter, len(limits)),
	}
	for name, limit := range limits {
		m.limiters[name] = rate.NewLimiter(limit, 1)
	}
	return m
}

// Unlimited returns a map that never blocks. Used by tests and by the CORS
// proxy, which is already bounded by the per-IP API limiter.
func Unlimited() *RateLimiterMap {
	return NewRateLimiterMapWithLimits(nil)
}

// SetLimit replaces the limit for a single provider.
func (m *RateLimiterMap) SetLimit(name ProviderName, limit rate.Limit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[name]; ok {
		l.SetLimit(limit)
		return
	}
	m.limiters[name] = rate.NewLimiter(limit, 1)
}

// Wait blocks until the rate limiter for the given provider allows a request,
// or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name ProviderName) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
