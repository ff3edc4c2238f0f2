package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"artico/internal/models"
	"artico/internal/sse"
)

const maxErrorBody = 64 << 10

// Langbase streams from a Langbase pipe. The pipe answers with
// OpenAI-compatible server-sent events.
type Langbase struct {
	endpoint string
	apiKey   string
	hc       *http.Client
}

func NewLangbase(baseURL, path, apiKey string, hc *http.Client) *Langbase {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Langbase{
		endpoint: strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		apiKey:   apiKey,
		hc:       hc,
	}
}

func (l *Langbase) Name() string { return "Langbase" }

type pipeRequest struct {
	Messages []models.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
}

// open sends the pipe request and returns the streaming body of a 2xx answer.
func (l *Langbase) open(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	payload, err := json.Marshal(pipeRequest{Messages: messages, Stream: true})
	if err != nil {
		return nil, errors.Wrap(err, "encoding pipe request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "creating pipe request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	log.Debug().
		Str("provider", "langbase").
		Str("endpoint", l.endpoint).
		Int("messages", len(messages)).
		Msg("sending request to Langbase API")

	resp, err := l.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling Langbase API")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("Langbase API error")
		return nil, &StatusError{
			Provider:   l.Name(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrNoStream
	}

	return resp.Body, nil
}

// StreamEvents returns the pipe's event stream untouched.
func (l *Langbase) StreamEvents(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	body, err := l.open(ctx, messages)
	if err != nil {
		cancel()
		return nil, err
	}
	return &bodyReader{ReadCloser: body, cancel: cancel}, nil
}

// StreamText decodes the pipe's events and returns only the content deltas.
func (l *Langbase) StreamText(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	body, err := l.open(ctx, messages)
	if err != nil {
		cancel()
		return nil, err
	}
	events := sse.NewReader(body)
	return textStream(cancel, events.Next, func() { body.Close() }), nil
}
