package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sydlexius/medley/internal/media"
)

// Default rate limits per service (requests per second). The iTunes Search
// API documents roughly 20 calls per minute for unauthenticated clients.
var defaultRateLimits = map[media.ServiceName]rate.Limit{
	media.ServiceSpotify: 5,
	media.ServiceITunes:  rate.Limit(1.0 / 3.0),
	media.ServiceYouTube: 5,
	media.ServiceGenius:  5,
}

// RateLimiterMap holds one rate.Limiter per service, created once at startup.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[media.ServiceName]*rate.Limiter
}

// NewRateLimiterMap creates all service rate limiters.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[media.ServiceName]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, limit := range defaultRateLimits {
		m.limiters[name] = rate.NewLimiter(limit, 1)
	}
	return m
}

// Wait blocks until the rate limiter for the given service allows a request,
// or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name media.ServiceName) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
