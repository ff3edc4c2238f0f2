package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"artico/internal/models"
	"artico/internal/upstream"
)

// GenerateHandler streams an article for a single topic as plain text.
type GenerateHandler struct {
	provider upstream.Provider
}

func NewGenerateHandler(provider upstream.Provider) *GenerateHandler {
	return &GenerateHandler{provider: provider}
}

func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("error in /api/generate route")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	stream, err := h.provider.StreamText(r.Context(), []models.ChatMessage{
		{Role: models.RoleUser, Content: req.Topic},
	})
	if err != nil {
		logger.Error().Err(err).Str("provider", h.provider.Name()).Msg("error in /api/generate route")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	relayStream(w, r, stream, http.Header{
		"Content-Type":  {"text/plain; charset=utf-8"},
		"Cache-Control": {"no-cache"},
	})
}
