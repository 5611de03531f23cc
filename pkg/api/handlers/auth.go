package handlers

import (
	"net/http"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/api/auth"
)

// AuthHandler issues operator tokens. There is one operator identity; the
// password is verified against the bcrypt hash from the config
// (api.auth.password_hash, generated with `statekeep passwd`).
type AuthHandler struct {
	passwordHash string
	tokens       *auth.Service
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(passwordHash string, tokens *auth.Service) *AuthHandler {
	return &AuthHandler{passwordHash: passwordHash, tokens: tokens}
}

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	Password string `json:"password"`
}

// Token handles POST /auth/token - password in, access/refresh pair out.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := auth.VerifyPassword(h.passwordHash, req.Password); err != nil {
		logger.Warn("operator token request rejected", "remote_addr", r.RemoteAddr)
		Unauthorized(w, "Invalid password")
		return
	}

	pair, err := h.tokens.GenerateTokenPair()
	if err != nil {
		logger.Error("token generation failed", "error", err)
		InternalServerError(w, "Failed to generate tokens")
		return
	}

	logger.Info("operator token issued", "remote_addr", r.RemoteAddr)
	writeJSON(w, http.StatusOK, okResponse(pair))
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /auth/refresh - valid refresh token in, new pair out.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if _, err := h.tokens.ValidateRefreshToken(req.RefreshToken); err != nil {
		Unauthorized(w, "Invalid or expired refresh token")
		return
	}

	pair, err := h.tokens.GenerateTokenPair()
	if err != nil {
		logger.Error("token generation failed", "error", err)
		InternalServerError(w, "Failed to generate tokens")
		return
	}
	writeJSON(w, http.StatusOK, okResponse(pair))
}
