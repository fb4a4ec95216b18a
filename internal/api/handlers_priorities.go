package api

import (
	"encoding/json"
	"net/http"

	"github.com/sydlexius/medley/internal/composite"
	"github.com/sydlexius/medley/internal/media"
)

var priorityKinds = map[media.Kind]bool{
	media.KindTrack:      true,
	media.KindMusicVideo: true,
	media.KindAlbum:      true,
	media.KindArtist:     true,
	media.KindKnowledge:  true,
}

// handleGetPriorities returns the effective priority table for a kind,
// defaults merged with any stored overrides.
func (r *Router) handleGetPriorities(w http.ResponseWriter, req *http.Request) {
	kind := media.Kind(req.PathValue("kind"))
	if !priorityKinds[kind] {
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	pri, err := r.providerSettings.Priorities(req.Context(), kind)
	if err != nil {
		r.logger.Error("loading priorities", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load priorities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "priorities": pri})
}

// handleSetPriorities stores a priority override for a kind.
func (r *Router) handleSetPriorities(w http.ResponseWriter, req *http.Request) {
	kind := media.Kind(req.PathValue("kind"))
	if !priorityKinds[kind] {
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	var pri composite.Priorities
	if err := json.NewDecoder(req.Body).Decode(&pri); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(pri.General) == 0 {
		writeError(w, http.StatusBadRequest, "general priority order is required")
		return
	}
	for _, svc := range pri.General {
		if !isKnownService(svc) {
			writeError(w, http.StatusBadRequest, "unknown service in priority order")
			return
		}
	}

	if err := r.providerSettings.SetPriorities(req.Context(), kind, pri); err != nil {
		r.logger.Error("storing priorities", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store priorities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handleResetPriorities removes a stored override so defaults apply again.
func (r *Router) handleResetPriorities(w http.ResponseWriter, req *http.Request) {
	kind := media.Kind(req.PathValue("kind"))
	if !priorityKinds[kind] {
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	if err := r.providerSettings.ResetPriorities(req.Context(), kind); err != nil {
		r.logger.Error("resetting priorities", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset priorities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
