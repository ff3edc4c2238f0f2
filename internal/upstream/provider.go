// Package upstream opens streamed generations against hosted language-model
// APIs. Every provider hands back an io.ReadCloser so the relay can copy it
// to the caller without knowing where the bytes come from.
package upstream

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"artico/internal/config"
	"artico/internal/models"
)

// ArticleSystemPrompt steers providers that accept a system instruction when
// writing articles.
const ArticleSystemPrompt = "You are an expert writer capable of creating high-quality articles and blog posts on various topics."

// Provider opens one streamed generation per call.
type Provider interface {
	// Name is the display name used in error messages.
	Name() string
	// StreamText returns the generated text as a plain byte stream.
	StreamText(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error)
	// StreamEvents returns the generation framed as server-sent events.
	StreamEvents(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error)
}

// NewHTTPClient returns a client whose only deadline is the time allowed for
// upstream response headers. The body itself may stream for as long as the
// caller keeps reading.
func NewHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

// NewProviders builds the article and chat providers selected by cfg.
// Credentials are not checked here; a missing key surfaces as an upstream
// failure on the first request.
func NewProviders(cfg *config.Config, hc *http.Client) (article Provider, chat Provider, err error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderLangbase:
		article = NewLangbase(cfg.LangbaseBaseURL, cfg.LangbasePipePath, cfg.LangbaseArticleKey, hc)
		chat = NewLangbase(cfg.LangbaseBaseURL, cfg.LangbasePipePath, cfg.LangbaseChatKey, hc)
	case config.ProviderOpenAI:
		article = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, ArticleSystemPrompt, hc)
		chat = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, "", hc)
	case config.ProviderGemini:
		article = NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, ArticleSystemPrompt)
		chat = NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, "")
	default:
		return nil, nil, errors.Errorf("unknown provider %q", cfg.Provider)
	}
	return article, chat, nil
}
