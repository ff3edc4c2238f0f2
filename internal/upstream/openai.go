package upstream

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"artico/internal/models"
)

// OpenAI streams chat completions through the OpenAI API or any server that
// speaks its protocol.
type OpenAI struct {
	client *openai.Client
	model  string
	system string
}

func NewOpenAI(apiKey, baseURL, model, system string, hc *http.Client) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		system: system,
	}
}

func (o *OpenAI) Name() string { return "OpenAI" }

func (o *OpenAI) toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if o.system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: o.system,
		})
	}
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func (o *OpenAI) open(ctx context.Context, messages []models.ChatMessage) (deltaFunc, func(), error) {
	log.Debug().
		Str("provider", "openai").
		Str("model", o.model).
		Int("messages", len(messages)).
		Msg("sending request to OpenAI API")

	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: o.toOpenAIMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return nil, nil, o.wrapError(err)
	}

	next := func() (string, error) {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", o.wrapError(err)
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Delta.Content, nil
	}
	release := func() { _ = stream.Close() }

	return next, release, nil
}

// wrapError keeps the HTTP status of API failures so the relay can propagate it.
func (o *OpenAI) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &StatusError{Provider: o.Name(), StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &StatusError{Provider: o.Name(), StatusCode: reqErr.HTTPStatusCode, Body: body}
	}
	return errors.Wrap(err, "calling OpenAI API")
}

func (o *OpenAI) StreamText(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	next, release, err := o.open(ctx, messages)
	if err != nil {
		cancel()
		return nil, err
	}
	return textStream(cancel, next, release), nil
}

func (o *OpenAI) StreamEvents(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	next, release, err := o.open(ctx, messages)
	if err != nil {
		cancel()
		return nil, err
	}
	return eventStream(cancel, next, release), nil
}
