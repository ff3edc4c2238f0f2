// Package client consumes the relay's streaming endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"artico/internal/models"
	"artico/internal/sse"
)

const (
	DefaultTimeout = 20 * time.Second

	GeneratePath = "/api/generate"
	ChatPath     = "/api/chat"
	ChatWSPath   = "/api/chat/ws"

	readBufferSize = 4096
)

// StatusError is returned when the relay answers with a non-OK status or
// without a body. No chunk callback fires for such a response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("relay returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to one relay. Every call is bounded by Timeout.
type Client struct {
	baseURL string
	hc      *http.Client
	timeout time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the hard per-request timeout. Non-positive values keep
// the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      http.DefaultClient,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateArticle streams the article written for prompt.
func (c *Client) GenerateArticle(ctx context.Context, prompt string, onChunk func(string)) error {
	return c.Stream(ctx, GeneratePath, models.GenerateRequest{Topic: prompt}, onChunk)
}

// Chat streams the assistant reply to messages over HTTP.
func (c *Client) Chat(ctx context.Context, messages []models.ChatMessage, onChunk func(string)) error {
	return c.Stream(ctx, ChatPath, models.ChatRequest{Messages: messages}, onChunk)
}

// Stream posts body as JSON to path and hands every decoded fragment to
// onChunk as it arrives. Event-stream responses deliver one fragment per
// event. Fragments are passed through Clean.
//
// When the timeout elapses the request is aborted and no further callback
// fires. Fragments delivered before that stand.
func (c *Client) Stream(ctx context.Context, path string, body any, onChunk func(string)) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")

	logger := log.With().Str("path", path).Logger()

	resp, err := c.hc.Do(req)
	if err != nil {
		logger.Error().Err(err).Msg("relay request failed")
		return errors.Wrap(err, "requesting "+path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(msg)}
		logger.Error().Int("status", resp.StatusCode).Str("body", statusErr.Message).Msg("relay rejected request")
		return statusErr
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		logger.Error().Msg("relay response has no body")
		return &StatusError{StatusCode: resp.StatusCode, Message: "response has no body"}
	}

	deliver := func(fragment string) {
		if ctx.Err() != nil {
			return
		}
		onChunk(Clean(fragment))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		err = readEvents(resp.Body, deliver)
	} else {
		err = readText(resp.Body, deliver)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warn().Err(ctxErr).Msg("relay stream aborted")
			return errors.Wrap(ctxErr, "reading "+path)
		}
		logger.Error().Err(err).Msg("reading relay stream")
		return errors.Wrap(err, "reading "+path)
	}
	return nil
}

// readText decodes body as UTF-8, holding incomplete sequences until the
// rest of the character arrives.
func readText(body io.Reader, deliver func(string)) error {
	r := transform.NewReader(body, unicode.UTF8.NewDecoder())
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			deliver(string(buf[:n]))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func readEvents(body io.Reader, deliver func(string)) error {
	events := sse.NewReader(transform.NewReader(body, unicode.UTF8.NewDecoder()))
	for {
		content, err := events.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		deliver(content)
	}
}

// errorMessage pulls the error field out of a JSON error body and falls back
// to the raw text.
func errorMessage(body []byte) string {
	var resp models.ErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return strings.TrimSpace(string(body))
}
