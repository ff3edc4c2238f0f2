package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"artico/internal/models"
	"artico/internal/upstream"
)

// ChatHandler forwards a chat history upstream and relays the event stream.
type ChatHandler struct {
	provider upstream.Provider
}

func NewChatHandler(provider upstream.Provider) *ChatHandler {
	return &ChatHandler{provider: provider}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("unexpected error in chat route")
		writeJSON(w, http.StatusInternalServerError, errorResp("An unexpected error occurred: "+err.Error()))
		return
	}

	logger.Debug().
		Str("provider", h.provider.Name()).
		Int("messages", len(req.Messages)).
		Msg("relaying chat request")

	stream, err := h.provider.StreamEvents(r.Context(), req.Messages)
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	relayStream(w, r, stream, http.Header{
		"Content-Type":  {"text/event-stream"},
		"Cache-Control": {"no-cache"},
		"Connection":    {"keep-alive"},
	})
}

func (h *ChatHandler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())

	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		logger.Error().
			Int("status", statusErr.StatusCode).
			Str("provider", statusErr.Provider).
			Msg("upstream rejected chat request")
		writeJSON(w, statusErr.StatusCode, errorResp(statusErr.Error()))
		return
	}

	logger.Error().Err(err).Msg("unexpected error in chat route")
	writeJSON(w, http.StatusInternalServerError, errorResp("An unexpected error occurred: "+err.Error()))
}
