package handlers

import (
	"net/http"
	"strings"
)

type authorizeRequest struct {
	APIKey string `json:"api_key"`
}

type authStatusResponse struct {
	Authorized bool `json:"authorized"`
}

func (a *App) AuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, authStatusResponse{Authorized: a.gate.IsAuthorized()})
}

// AuthAuthorize optionally stores a new API key and then asks the gate to
// authorize. An empty body retries with whatever key is already known.
func (a *App) AuthAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", msgInvalidPayload)
			return
		}
	}
	if key := strings.TrimSpace(req.APIKey); key != "" {
		if a.keys == nil {
			writeError(w, r, http.StatusServiceUnavailable, "storage_unavailable", msgStorageUnavailable)
			return
		}
		if err := a.keys.SetGeminiAPIKey(r.Context(), key); err != nil {
			a.logger.Error().Err(err).Msg("handlers: store api key failed")
			writeDomainError(w, r, err)
			return
		}
	}
	if err := a.gate.RequestAuthorization(r.Context()); err != nil {
		a.logger.Warn().Err(err).Msg("handlers: authorization failed")
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authStatusResponse{Authorized: true})
}
