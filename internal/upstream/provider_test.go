package upstream

import (
	"net/http"
	"testing"
	"time"

	"artico/internal/config"
	"artico/internal/models"
)

func TestNewProviders(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{"langbase", "Langbase", false},
		{"OpenAI", "OpenAI", false},
		{"gemini", "Gemini", false},
		{"cohere", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.provider, func(t *testing.T) {
			cfg := &config.Config{Provider: tc.provider, GeminiModel: "gemini-1.5-flash"}
			article, chat, err := NewProviders(cfg, http.DefaultClient)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for provider %q", tc.provider)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if article.Name() != tc.want || chat.Name() != tc.want {
				t.Fatalf("expected %s providers, got %s/%s", tc.want, article.Name(), chat.Name())
			}
		})
	}
}

func TestNewHTTPClient_SetsHeaderTimeout(t *testing.T) {
	hc := NewHTTPClient(3 * time.Second)
	transport, ok := hc.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", hc.Transport)
	}
	if transport.ResponseHeaderTimeout != 3*time.Second {
		t.Fatalf("expected 3s header timeout, got %s", transport.ResponseHeaderTimeout)
	}
	if hc.Timeout != 0 {
		t.Fatalf("overall client timeout would cut streams short: %s", hc.Timeout)
	}
}

func TestSplitConversation(t *testing.T) {
	messages := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "article text"},
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
	}

	instruction, history, last := splitConversation("be brief", messages)

	if instruction != "be brief\n\narticle text" {
		t.Fatalf("unexpected instruction: %q", instruction)
	}
	if last != "q2" {
		t.Fatalf("expected last message q2, got %q", last)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "model" {
		t.Fatalf("unexpected roles: %s, %s", history[0].Role, history[1].Role)
	}
}
