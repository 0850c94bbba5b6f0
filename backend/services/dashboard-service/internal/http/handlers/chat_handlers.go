package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/chat"
)

// ChatHandlers expose chat sessions.
type ChatHandlers struct {
	service *chat.Service
	logger  *zap.Logger
}

// NewChatHandlers returns handler.
func NewChatHandlers(service *chat.Service, logger *zap.Logger) *ChatHandlers {
	return &ChatHandlers{service: service, logger: logger}
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	Reply      *chat.Message    `json:"reply"`
	Transcript *chat.Transcript `json:"transcript"`
}

// Create handles POST /api/chat/sessions.
func (h *ChatHandlers) Create(w http.ResponseWriter, r *http.Request) {
	transcript, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.logger.Error("create chat session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not start chat session")
		return
	}
	writeJSON(w, http.StatusCreated, transcript)
}

// Get handles GET /api/chat/sessions/{id}.
func (h *ChatHandlers) Get(w http.ResponseWriter, r *http.Request) {
	transcript, err := h.service.Transcript(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

// Send handles POST /api/chat/sessions/{id}/messages.
func (h *ChatHandlers) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := r.PathValue("id")
	reply, err := h.service.Send(r.Context(), sessionID, req.Text)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	transcript, err := h.service.Transcript(r.Context(), sessionID)
	if err != nil {
		h.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{Reply: reply, Transcript: transcript})
}

func (h *ChatHandlers) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "message is empty")
	case errors.Is(err, chat.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "chat session not found")
	default:
		h.logger.Error("chat request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, chat.ErrorReply)
	}
}
