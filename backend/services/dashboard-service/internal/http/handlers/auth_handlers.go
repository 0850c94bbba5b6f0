package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/auth"
)

// AuthHandlers issue operator tokens.
type AuthHandlers struct {
	service *auth.Service
	logger  *zap.Logger
}

// NewAuthHandlers returns handler.
func NewAuthHandlers(service *auth.Service, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{service: service, logger: logger}
}

type loginRequest struct {
	Operator string `json:"operator"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.service.Login(r.Context(), req.Operator, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, session)
}
