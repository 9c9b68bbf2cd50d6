package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/quiet-aggression/internal/auth"
)

// AuthHandler issues service tokens for API clients.
type AuthHandler struct {
	jwtMgr *auth.JWTManager
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(jwtMgr *auth.JWTManager) *AuthHandler {
	return &AuthHandler{jwtMgr: jwtMgr}
}

// IssueToken handles POST /api/v1/auth/token. Callers are trusted services
// identifying themselves with a free-form client ID; network-level access
// control is assumed in front of this endpoint.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"client_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	token, err := h.jwtMgr.IssueToken(req.ClientID)
	if err != nil {
		log.Error().Err(err).Str("clientId", req.ClientID).Msg("Failed to issue token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, token)
}
