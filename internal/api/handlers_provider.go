package api

import (
	"encoding/json"
	"net/http"

	"github.com/sydlexius/medley/internal/media"
	"github.com/sydlexius/medley/internal/provider"
)

// handleListProviders returns the status of all services and their API key
// configuration.
func (r *Router) handleListProviders(w http.ResponseWriter, req *http.Request) {
	statuses, err := r.providerSettings.ListKeyStatuses(req.Context())
	if err != nil {
		r.logger.Error("listing provider statuses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list providers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": statuses})
}

// handleSetProviderKey stores an encrypted API key for a service.
func (r *Router) handleSetProviderKey(w http.ResponseWriter, req *http.Request) {
	name := media.ServiceName(req.PathValue("name"))
	if !isKnownService(name) {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.APIKey == "" {
		writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	if err := r.providerSettings.SetAPIKey(req.Context(), name, body.APIKey); err != nil {
		r.logger.Error("setting provider API key", "provider", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save API key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handleDeleteProviderKey removes the API key for a service.
func (r *Router) handleDeleteProviderKey(w http.ResponseWriter, req *http.Request) {
	name := media.ServiceName(req.PathValue("name"))
	if !isKnownService(name) {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	if err := r.providerSettings.DeleteAPIKey(req.Context(), name); err != nil {
		r.logger.Error("deleting provider API key", "provider", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete API key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleTestProvider tests the connection to a service. An api_key in the
// body is used for the test without being persisted, so operators can
// validate a key before saving it.
func (r *Router) handleTestProvider(w http.ResponseWriter, req *http.Request) {
	name := media.ServiceName(req.PathValue("name"))
	p := r.providerRegistry.Get(name)
	if p == nil {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	testable, ok := p.(provider.TestableProvider)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "provider does not support connection testing"})
		return
	}

	ctx := req.Context()
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err == nil && body.APIKey != "" {
		ctx = provider.WithAPIKeyOverride(ctx, name, body.APIKey)
	}

	if err := testable.TestConnection(ctx); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
