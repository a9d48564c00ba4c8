// Package handlers exposes the generation sessions over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
	"genstudio/internal/session"
)

// ArtifactReader resolves stored artifact keys to bytes.
type ArtifactReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// KeyWriter persists an API key supplied by the user.
type KeyWriter interface {
	SetGeminiAPIKey(ctx context.Context, key string) error
}

type App struct {
	Image *Mode[domain.ImageParams]
	Video *Mode[domain.VideoParams]

	gate   session.Gate
	keys   KeyWriter
	logger *infra.Logger
}

type AppOptions struct {
	Image         Controller[domain.ImageParams]
	Video         Controller[domain.VideoParams]
	Gate          session.Gate
	Keys          KeyWriter
	Artifacts     ArtifactReader
	PublicBaseURL string
	Logger        *infra.Logger
}

func NewApp(opts AppOptions) *App {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	export := exporter{artifacts: opts.Artifacts, publicBaseURL: opts.PublicBaseURL, logger: logger}
	return &App{
		Image:  &Mode[domain.ImageParams]{ctrl: opts.Image, export: export, logger: logger},
		Video:  &Mode[domain.VideoParams]{ctrl: opts.Video, export: export, logger: logger},
		gate:   opts.Gate,
		keys:   opts.Keys,
		logger: logger,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, errCode, msg string) {
	writeJSON(w, code, errorResponse{Error: errCode, Message: middleware.Localize(r.Context(), msg)})
}

// writeDomainError maps a domain sentinel onto a status code.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPrompt):
		writeError(w, r, http.StatusBadRequest, "invalid_prompt", msgBlankPrompt)
	case errors.Is(err, domain.ErrAlreadyInProgress):
		writeError(w, r, http.StatusConflict, "in_progress", msgInProgress)
	case errors.Is(err, domain.ErrStorageUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "storage_unavailable", msgStorageUnavailable)
	case errors.Is(err, domain.ErrAuthDialogFailed):
		writeError(w, r, http.StatusUnauthorized, "authorization_failed", msgNoAPIKey)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal", msgInternal)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}
