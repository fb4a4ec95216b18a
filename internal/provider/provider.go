// Package provider defines the adapter contract for external catalog
// services plus the registry, rate limiting, and settings shared by all
// adapters.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sydlexius/medley/internal/media"
)

// AccessTier classifies a service's access model.
type AccessTier string

// Access tier constants.
const (
	TierFree    AccessTier = "free"     // No key required
	TierFreeKey AccessTier = "free_key" // Free account/sign-up required
	TierPaid    AccessTier = "paid"     // Paid access only
)

// RateLimitInfo documents the known rate limits for a service.
type RateLimitInfo struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	RequestsPerDay    int     `json:"requests_per_day,omitempty"` // 0 = unknown/unlimited
}

// Capability describes a service's access model and documented rate limits.
type Capability struct {
	Tier      AccessTier     `json:"tier"`
	HelpURL   string         `json:"help_url,omitempty"`
	RateLimit *RateLimitInfo `json:"rate_limit,omitempty"`
}

// Capabilities returns the known capability metadata for each service.
func Capabilities() map[media.ServiceName]Capability {
	return map[media.ServiceName]Capability{
		media.ServiceSpotify: {
			Tier:      TierFreeKey,
			HelpURL:   "https://developer.spotify.com/dashboard",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 5},
		},
		media.ServiceITunes: {
			Tier:      TierFree,
			RateLimit: &RateLimitInfo{RequestsPerSecond: 1},
		},
		media.ServiceYouTube: {
			Tier:      TierFreeKey,
			HelpURL:   "https://console.cloud.google.com/apis/credentials",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 5, RequestsPerDay: 10000},
		},
		media.ServiceGenius: {
			Tier:      TierFreeKey,
			HelpURL:   "https://genius.com/api-clients",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 5},
		},
	}
}

// Provider is the interface all catalog service adapters must implement.
// Adapters own their authentication and return normalized media.Record
// values; the filter and compositor never see raw service JSON.
type Provider interface {
	// Name returns the unique service identifier.
	Name() media.ServiceName

	// RequiresAuth returns true if this service needs credentials to function.
	RequiresAuth() bool

	// SearchTracks searches the service for songs matching the query.
	SearchTracks(ctx context.Context, query media.Query) ([]*media.Record, error)

	// LookupTrack fetches one track by the service's own ID.
	LookupTrack(ctx context.Context, id, country string) (*media.Record, error)
}

// AlbumProvider is implemented by adapters that can serve collections.
type AlbumProvider interface {
	Provider
	SearchAlbums(ctx context.Context, query media.Query) ([]*media.Record, error)
	LookupAlbum(ctx context.Context, id, country string) (*media.Record, error)
}

// VideoProvider is implemented by adapters that can serve music videos.
type VideoProvider interface {
	Provider
	SearchVideos(ctx context.Context, query media.Query) ([]*media.Record, error)
	LookupVideo(ctx context.Context, id, country string) (*media.Record, error)
}

// KnowledgeProvider is implemented by adapters that can serve editorial
// metadata (description, release date, BPM, key).
type KnowledgeProvider interface {
	Provider
	SearchKnowledge(ctx context.Context, query media.Query) ([]*media.Record, error)
}

// TestableProvider is an optional interface adapters can implement
// for connection testing from the admin API.
type TestableProvider interface {
	Provider
	TestConnection(ctx context.Context) error
}

// ErrServiceUnavailable indicates a transient failure (rate-limited, timeout, server error).
type ErrServiceUnavailable struct {
	Service    media.ServiceName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrServiceUnavailable) Error() string {
	return fmt.Sprintf("service %s unavailable: %v", e.Service, e.Cause)
}

func (e *ErrServiceUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the service has no record for the requested ID.
type ErrNotFound struct {
	Service media.ServiceName
	ID      string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("service %s: record %s not found", e.Service, e.ID)
}

// ErrAuthRequired indicates the service needs credentials but none are configured.
type ErrAuthRequired struct {
	Service media.ServiceName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("service %s: credentials not configured", e.Service)
}
