package upstream

import (
	"context"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"artico/internal/models"
)

// Gemini streams from Google's Gemini models. A client is created per
// request so a missing key only fails the request that needs it.
type Gemini struct {
	apiKey string
	model  string
	system string
}

func NewGemini(apiKey, model, system string) *Gemini {
	return &Gemini{
		apiKey: apiKey,
		model:  model,
		system: system,
	}
}

func (g *Gemini) Name() string { return "Gemini" }

// splitConversation maps messages onto Gemini chat history. System messages
// join the system instruction; the final message is the one sent.
func splitConversation(system string, messages []models.ChatMessage) (instruction string, history []*genai.Content, last string) {
	var sys []string
	if system != "" {
		sys = append(sys, system)
	}

	var turns []models.ChatMessage
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}

	if len(turns) > 0 {
		last = turns[len(turns)-1].Content
		turns = turns[:len(turns)-1]
	}

	for _, m := range turns {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	return strings.Join(sys, "\n\n"), history, last
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// wrapError keeps the HTTP status of API failures so the relay can propagate it.
func (g *Gemini) wrapError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code > 0 {
		return &StatusError{Provider: g.Name(), StatusCode: gErr.Code, Body: gErr.Message}
	}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPCode() > 0 {
		return &StatusError{Provider: g.Name(), StatusCode: apiErr.HTTPCode(), Body: apiErr.Error()}
	}
	return errors.Wrap(err, "calling Gemini API")
}

func (g *Gemini) open(ctx context.Context, messages []models.ChatMessage) (deltaFunc, func(), error) {
	instruction, history, last := splitConversation(g.system, messages)
	if last == "" && len(history) == 0 {
		return nil, nil, errors.New("no messages to send")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating Gemini client")
	}

	model := client.GenerativeModel(g.model)
	if instruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	}

	log.Debug().
		Str("provider", "gemini").
		Str("model", g.model).
		Int("history", len(history)).
		Msg("sending request to Gemini API")

	cs := model.StartChat()
	cs.History = history
	iter := cs.SendMessageStream(ctx, genai.Text(last))

	// The request goes out on the first Next; pull it here so status errors
	// surface before the relay commits to a streaming response.
	first, err := iter.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		client.Close()
		return nil, nil, g.wrapError(err)
	}
	finished := errors.Is(err, iterator.Done)

	next := func() (string, error) {
		if finished {
			return "", io.EOF
		}
		if first != nil {
			resp := first
			first = nil
			return extractText(resp), nil
		}
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			finished = true
			return "", io.EOF
		}
		if err != nil {
			return "", g.wrapError(err)
		}
		return extractText(resp), nil
	}
	release := func() { client.Close() }

	return next, release, nil
}

func (g *Gemini) StreamText(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	next, release, err := g.open(ctx, messages)
	if err != nil {
		cancel()
		return nil, err
	}
	return textStream(cancel, next, release), nil
}

func (g *Gemini) StreamEvents(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	next, release, err := g.open(ctx, messages)
	if err != nil {
		cancel()
		return nil, err
	}
	return eventStream(cancel, next, release), nil
}

