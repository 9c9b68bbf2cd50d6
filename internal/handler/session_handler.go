package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/freeeve/quiet-aggression/internal/auth"
	"github.com/freeeve/quiet-aggression/internal/model"
	"github.com/freeeve/quiet-aggression/internal/service"
)

// SessionHandler handles analysis session endpoints.
type SessionHandler struct {
	svc *service.AnalysisService
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(svc *service.AnalysisService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	clientID := auth.ClientIDFromContext(r.Context())
	var req struct {
		FEN string `json:"fen,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	state, err := h.svc.CreateSession(r.Context(), clientID, req.FEN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Move handles POST /api/v1/sessions/{id}/move. The optional "move" field
// carries the opponent's reply in UCI notation; the agent then decides and
// plays its own move, returned with full diagnostics.
func (h *SessionHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Move string `json:"move,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	decision, state, err := h.svc.Move(r.Context(), r.PathValue("id"), req.Move)
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, service.ErrIllegalMove):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrSessionOver):
		// Terminal positions still return the diagnostic bundle.
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decision": decision,
		"session":  state,
	})
}

// GetDecisions handles GET /api/v1/sessions/{id}/decisions?limit=N
func (h *SessionHandler) GetDecisions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	decisions, err := h.svc.RecentDecisions(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if decisions == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}

// CloseSession handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseSession(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGames handles GET /api/v1/games?limit=N
func (h *SessionHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := h.svc.ListGames(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if games == nil {
		games = []model.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

// GetGame handles GET /api/v1/games/{id} with the archived game's
// decision rows.
func (h *SessionHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, decisions, err := h.svc.ArchivedGame(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game":      game,
		"decisions": decisions,
	})
}
