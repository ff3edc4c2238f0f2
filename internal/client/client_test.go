package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"artico/internal/models"
	"artico/internal/sse"
	"artico/internal/upstream"
	"artico/internal/websocket"
)

// chunkServer writes each chunk as its own flushed write.
func chunkServer(t *testing.T, contentType string, chunks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		for _, c := range chunks {
			io.WriteString(w, c)
			w.(http.Flusher).Flush()
			time.Sleep(10 * time.Millisecond)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type recorder struct {
	mu     sync.Mutex
	chunks []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, s)
}

func (r *recorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.chunks, "")
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{`**Bold** "quoted"`, "Bold quoted"},
		{`***""*`, ""},
		{"it's - fine_ #1", "it's - fine_ #1"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := Clean(tc.in); got != tc.want {
			t.Fatalf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if strings.ContainsAny(Clean(tc.in), `*"`) {
			t.Fatalf("Clean(%q) left markup behind", tc.in)
		}
	}
}

func TestStream_CleansAndAccumulates(t *testing.T) {
	srv := chunkServer(t, "text/plain; charset=utf-8", "Hello", ` "*World*"`, "")
	c := New(srv.URL)

	var rec recorder
	if err := c.GenerateArticle(context.Background(), "topic", rec.add); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.joined(); got != "Hello World" {
		t.Fatalf("expected %q, got %q", "Hello World", got)
	}
}

func TestStream_SendsJSONBody(t *testing.T) {
	var got models.GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != GeneratePath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	if err := New(srv.URL+"/").GenerateArticle(context.Background(), "tidal pools", func(string) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Topic != "tidal pools" {
		t.Fatalf("expected topic to be forwarded, got %q", got.Topic)
	}
}

func TestStream_HoldsSplitMultibyteCharacters(t *testing.T) {
	euro := "€"
	srv := chunkServer(t, "text/plain; charset=utf-8", "price: "+euro[:1], euro[1:2], euro[2:]+"5")

	var rec recorder
	if err := New(srv.URL).GenerateArticle(context.Background(), "x", rec.add); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.joined(); got != "price: €5" {
		t.Fatalf("expected %q, got %q", "price: €5", got)
	}
	for _, c := range rec.chunks {
		if strings.ContainsRune(c, '�') {
			t.Fatalf("chunk %q contains a replacement character", c)
		}
	}
}

func TestStream_DecodesEventStream(t *testing.T) {
	var body strings.Builder
	sse.WriteDelta(&body, "Once ")
	sse.WriteDelta(&body, "upon a *time*")
	sse.WriteDone(&body)
	srv := chunkServer(t, "text/event-stream", body.String())

	var rec recorder
	err := New(srv.URL).Chat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, rec.add)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 2 {
		t.Fatalf("expected one callback per event, got %d", rec.count())
	}
	if got := rec.joined(); got != "Once upon a time" {
		t.Fatalf("expected %q, got %q", "Once upon a time", got)
	}
}

func TestStream_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"Langbase API error: 429 rate limited"}`)
	}))
	defer srv.Close()

	var rec recorder
	err := New(srv.URL).Chat(context.Background(), nil, rec.add)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !strings.Contains(statusErr.Message, "rate limited") {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
	if rec.count() != 0 {
		t.Fatalf("expected no callbacks, got %d", rec.count())
	}
}

func TestStream_TimeoutStopsCallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "first")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		io.WriteString(w, "late")
	}))
	defer srv.Close()

	var rec recorder
	start := time.Now()
	err := New(srv.URL, WithTimeout(100*time.Millisecond)).GenerateArticle(context.Background(), "x", rec.add)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}

	time.Sleep(50 * time.Millisecond)
	if got := rec.joined(); got != "first" {
		t.Fatalf("expected only the fragment received before the timeout, got %q", got)
	}
}

func TestStream_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	called := false
	err := New(url).GenerateArticle(context.Background(), "x", func(string) { called = true })
	if err == nil {
		t.Fatalf("expected an error")
	}
	if called {
		t.Fatalf("expected no callbacks")
	}
}

type wsProvider struct {
	chunks []string
	err    error
}

func (p *wsProvider) Name() string { return "Stub" }

func (p *wsProvider) StreamText(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	if p.err != nil {
		return nil, p.err
	}
	return io.NopCloser(strings.NewReader(strings.Join(p.chunks, ""))), nil
}

func (p *wsProvider) StreamEvents(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	return p.StreamText(ctx, messages)
}

func TestChatWS(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ChatWSPath, websocket.NewChatRelay(&wsProvider{chunks: []string{"**Hi** ", "there"}}, "*").HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var rec recorder
	c := New(srv.URL)
	err := c.ChatWS(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hello"}}, rec.add)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.joined(); got != "Hi there" {
		t.Fatalf("expected %q, got %q", "Hi there", got)
	}
}

func TestChatWS_ErrorFrame(t *testing.T) {
	provider := &wsProvider{err: &upstream.StatusError{Provider: "Langbase", StatusCode: 429, Body: "rate limited"}}
	mux := http.NewServeMux()
	mux.HandleFunc(ChatWSPath, websocket.NewChatRelay(provider, "*").HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	called := false
	err := New(srv.URL).ChatWS(context.Background(), nil, func(string) { called = true })

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !strings.Contains(statusErr.Message, "rate limited") {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
	if called {
		t.Fatalf("expected no callbacks")
	}
}

func TestWSURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8080/api/chat/ws": "ws://localhost:8080/api/chat/ws",
		"https://relay.example/api/chat/ws": "wss://relay.example/api/chat/ws",
	}
	for in, want := range tests {
		got, err := wsURL(in)
		if err != nil {
			t.Fatalf("wsURL(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("wsURL(%q) = %q, want %q", in, got, want)
		}
	}
}
