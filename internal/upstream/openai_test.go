package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"

	"artico/internal/models"
	"artico/internal/sse"
)

func newCompletionsServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_StreamEventsReencodesDeltas(t *testing.T) {
	var gotReq struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := newCompletionsServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range []string{"Hel", "lo"} {
			io.WriteString(w, sseChunk(c))
		}
		io.WriteString(w, "data: [DONE]\n\n")
	})

	o := NewOpenAI("sk-test", srv.URL+"/v1", "gpt-4-turbo", ArticleSystemPrompt, srv.Client())
	rc, err := o.StreamEvents(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}
	defer rc.Close()

	r := sse.NewReader(rc)
	var text string
	for {
		c, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decoding relayed events: %v", err)
		}
		text += c
	}

	if text != "Hello" {
		t.Fatalf("expected %q, got %q", "Hello", text)
	}
	if !gotReq.Stream || gotReq.Model != "gpt-4-turbo" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Content != "hi" {
		t.Fatalf("expected system prompt then user message, got %+v", gotReq.Messages)
	}
}

func TestOpenAI_StatusErrorPropagates(t *testing.T) {
	srv := newCompletionsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited","type":"requests"}}`)
	})

	o := NewOpenAI("sk-test", srv.URL+"/v1", "gpt-4-turbo", "", srv.Client())
	_, err := o.StreamText(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || statusErr.Body != "rate limited" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}
