package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spherical/pdf-viewer/internal/chat"
	"github.com/spherical/pdf-viewer/internal/observability"
)

// ChatHandler relays chat messages to the assistant backend.
type ChatHandler struct {
	logger    *observability.Logger
	responder chat.Responder
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(logger *observability.Logger, responder chat.Responder) *ChatHandler {
	return &ChatHandler{logger: logger, responder: responder}
}

type chatRequest struct {
	Message *string `json:"message"`
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == nil {
		writeError(w, http.StatusBadRequest, "No message provided", "")
		return
	}

	answer, err := h.responder.Ask(r.Context(), *req.Message)
	if errors.Is(err, chat.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "No message provided", "")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Chat request failed")
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}
