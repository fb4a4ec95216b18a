package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sydlexius/medley/internal/aggregate"
	"github.com/sydlexius/medley/internal/media"
	"github.com/sydlexius/medley/internal/provider"
)

// aggregateResponse is the wire shape for aggregation and cross-reference
// results. Match is null when nothing cleared the confidence threshold;
// the call still succeeds.
type aggregateResponse struct {
	Match      *media.Record       `json:"match"`
	Confidence float64             `json:"confidence"`
	ElapsedMS  int64               `json:"elapsed_ms"`
	Warnings   []aggregate.Warning `json:"warnings,omitempty"`
	Query      *media.Query        `json:"query,omitempty"`
}

func (r *Router) handleAggregateTracks(w http.ResponseWriter, req *http.Request) {
	r.handleAggregate(w, req, r.aggregator.Tracks)
}

func (r *Router) handleAggregateVideos(w http.ResponseWriter, req *http.Request) {
	r.handleAggregate(w, req, r.aggregator.Videos)
}

func (r *Router) handleAggregateAlbums(w http.ResponseWriter, req *http.Request) {
	r.handleAggregate(w, req, r.aggregator.Albums)
}

func (r *Router) handleAggregate(w http.ResponseWriter, req *http.Request, run func(context.Context, media.Query) (*aggregate.Result, error)) {
	var query media.Query
	if err := json.NewDecoder(req.Body).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if query.Title == "" && len(query.Artists) == 0 {
		writeError(w, http.StatusBadRequest, "title or artists required")
		return
	}
	if query.Country == "" {
		query.Country = r.defaultCountry
	}

	result, err := run(req.Context(), query)
	if err != nil {
		r.logger.Error("aggregation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}

	writeJSON(w, http.StatusOK, aggregateResponse{
		Match:      result.Record,
		Confidence: result.Confidence,
		ElapsedMS:  result.Elapsed.Milliseconds(),
		Warnings:   result.Warnings,
		Query:      &query,
	})
}

func (r *Router) handleCrossReferenceTrack(w http.ResponseWriter, req *http.Request) {
	r.handleCrossReference(w, req, r.aggregator.CrossReferenceTrack)
}

func (r *Router) handleCrossReferenceVideo(w http.ResponseWriter, req *http.Request) {
	r.handleCrossReference(w, req, r.aggregator.CrossReferenceVideo)
}

func (r *Router) handleCrossReferenceAlbum(w http.ResponseWriter, req *http.Request) {
	r.handleCrossReference(w, req, r.aggregator.CrossReferenceAlbum)
}

func (r *Router) handleCrossReference(w http.ResponseWriter, req *http.Request, run func(context.Context, media.ServiceName, string, string) (*aggregate.Result, error)) {
	service := media.ServiceName(req.PathValue("service"))
	if !isKnownService(service) {
		writeError(w, http.StatusBadRequest, "unknown service")
		return
	}
	id := req.PathValue("id")
	country := req.URL.Query().Get("country")
	if country == "" {
		country = r.defaultCountry
	}

	start := time.Now()
	result, err := run(req.Context(), service, id, country)
	if err != nil {
		var notFound *provider.ErrNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		var authErr *provider.ErrAuthRequired
		if errors.As(err, &authErr) {
			writeError(w, http.StatusBadGateway, "origin service not configured")
			return
		}
		var unavailable *provider.ErrServiceUnavailable
		if errors.As(err, &unavailable) {
			writeError(w, http.StatusBadGateway, "origin service unavailable")
			return
		}
		r.logger.Error("cross-reference failed",
			"service", service, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "cross-reference failed")
		return
	}

	writeJSON(w, http.StatusOK, aggregateResponse{
		Match:      result.Record,
		Confidence: result.Confidence,
		ElapsedMS:  time.Since(start).Milliseconds(),
		Warnings:   result.Warnings,
	})
}

func isKnownService(name media.ServiceName) bool {
	for _, svc := range media.AllServiceNames() {
		if svc == name {
			return true
		}
	}
	return false
}
