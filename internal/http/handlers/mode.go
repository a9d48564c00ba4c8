package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
)

// Controller is the session surface one mode exposes over HTTP.
type Controller[P domain.Params] interface {
	Kind() domain.Kind
	State() domain.SessionState[P]
	SetDraft(params P) error
	SubmitAsync(ctx context.Context, params P) (<-chan error, error)
	Dismiss()
	ListHistory(ctx context.Context) []domain.Record[P]
	DeleteHistoryItem(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) error
}

// Mode serves the routes of one generation mode.
type Mode[P domain.Params] struct {
	ctrl   Controller[P]
	export exporter
	logger *infra.Logger
}

// Generate accepts a request and runs it in the background. Clients poll
// State for the outcome.
func (m *Mode[P]) Generate(w http.ResponseWriter, r *http.Request) {
	var params P
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", msgInvalidPayload)
		return
	}
	if _, err := m.ctrl.SubmitAsync(r.Context(), params); err != nil {
		writeDomainError(w, r, err)
		return
	}
	m.logger.Info().
		Str("kind", string(m.ctrl.Kind())).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Msg("handlers: generation accepted")
	writeJSON(w, http.StatusAccepted, m.localizedState(r))
}

func (m *Mode[P]) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.localizedState(r))
}

func (m *Mode[P]) Dismiss(w http.ResponseWriter, r *http.Request) {
	m.ctrl.Dismiss()
	writeJSON(w, http.StatusOK, m.localizedState(r))
}

func (m *Mode[P]) Draft(w http.ResponseWriter, r *http.Request) {
	var params P
	if err := decodeJSON(w, r, &params); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", msgInvalidPayload)
		return
	}
	if err := m.ctrl.SetDraft(params); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m.localizedState(r))
}

func (m *Mode[P]) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": m.ctrl.ListHistory(r.Context())})
}

func (m *Mode[P]) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := m.ctrl.ClearHistory(r.Context()); err != nil {
		m.logger.Error().Err(err).Str("kind", string(m.ctrl.Kind())).Msg("handlers: clear history failed")
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Mode[P]) DeleteHistoryItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", msgInvalidPayload)
		return
	}
	if err := m.ctrl.DeleteHistoryItem(r.Context(), id); err != nil {
		m.logger.Error().Err(err).Str("kind", string(m.ctrl.Kind())).Str("id", id).Msg("handlers: delete history item failed")
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Mode[P]) Export(w http.ResponseWriter, r *http.Request) {
	records := m.ctrl.ListHistory(r.Context())
	entries := exportEntries(r.Context(), m.export, records)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename="+string(m.ctrl.Kind())+"-history.zip")
	w.WriteHeader(http.StatusOK)
	if err := writeArchive(w, entries); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn().Err(err).Str("kind", string(m.ctrl.Kind())).Msg("handlers: export interrupted")
	}
}

func (m *Mode[P]) localizedState(r *http.Request) domain.SessionState[P] {
	state := m.ctrl.State()
	state.Error = middleware.Localize(r.Context(), state.Error)
	return state
}
