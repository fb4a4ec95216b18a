// Package api is the JSON front-end over the aggregator and the provider
// administration surface.
package api

import (
	"log/slog"
	"net/http"

	"github.com/sydlexius/medley/internal/aggregate"
	"github.com/sydlexius/medley/internal/api/middleware"
	"github.com/sydlexius/medley/internal/provider"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Aggregator       *aggregate.Aggregator
	ProviderSettings *provider.SettingsService
	ProviderRegistry *provider.Registry
	Logger           *slog.Logger
	BasePath         string
	APITokenHash     string
	DefaultCountry   string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	aggregator       *aggregate.Aggregator
	providerSettings *provider.SettingsService
	providerRegistry *provider.Registry
	logger           *slog.Logger
	basePath         string
	apiTokenHash     string
	defaultCountry   string
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		aggregator:       deps.Aggregator,
		providerSettings: deps.ProviderSettings,
		providerRegistry: deps.ProviderRegistry,
		logger:           deps.Logger,
		basePath:         deps.BasePath,
		apiTokenHash:     deps.APITokenHash,
		defaultCountry:   deps.DefaultCountry,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	authMw := middleware.BearerAuth(r.apiTokenHash)
	adminRL := middleware.NewAdminRateLimiter()
	mux := http.NewServeMux()
	bp := r.basePath

	// Public routes (no auth)
	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)

	// Aggregation routes
	mux.HandleFunc("POST "+bp+"/api/v1/tracks/aggregate", wrap(r.handleAggregateTracks, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/videos/aggregate", wrap(r.handleAggregateVideos, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/albums/aggregate", wrap(r.handleAggregateAlbums, authMw))

	// Cross-reference routes
	mux.HandleFunc("GET "+bp+"/api/v1/tracks/{service}/{id}", wrap(r.handleCrossReferenceTrack, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/videos/{service}/{id}", wrap(r.handleCrossReferenceVideo, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/albums/{service}/{id}", wrap(r.handleCrossReferenceAlbum, authMw))

	// Provider admin routes
	mux.HandleFunc("GET "+bp+"/api/v1/providers", wrap(r.handleListProviders, authMw))
	mux.HandleFunc("PUT "+bp+"/api/v1/providers/{name}/key", wrap(r.handleSetProviderKey, authMw, adminRL.Middleware))
	mux.HandleFunc("DELETE "+bp+"/api/v1/providers/{name}/key", wrap(r.handleDeleteProviderKey, authMw, adminRL.Middleware))
	mux.HandleFunc("POST "+bp+"/api/v1/providers/{name}/test", wrap(r.handleTestProvider, authMw))

	// Priority routes. These live outside /providers/ so the {kind}
	// segment cannot collide with the {name} wildcard above.
	mux.HandleFunc("GET "+bp+"/api/v1/priorities/{kind}", wrap(r.handleGetPriorities, authMw))
	mux.HandleFunc("PUT "+bp+"/api/v1/priorities/{kind}", wrap(r.handleSetPriorities, authMw, adminRL.Middleware))
	mux.HandleFunc("DELETE "+bp+"/api/v1/priorities/{kind}", wrap(r.handleResetPriorities, authMw, adminRL.Middleware))

	return middleware.SecurityHeaders(middleware.Logging(r.logger)(mux))
}

// wrap applies middleware to a handler function, outermost last.
func wrap(fn http.HandlerFunc, mws ...func(http.Handler) http.Handler) http.HandlerFunc {
	var h http.Handler = fn
	for _, mw := range mws {
		h = mw(h)
	}
	return h.ServeHTTP
}
