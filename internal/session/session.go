// Package session ties the article request and the follow-up chat together
// for one terminal user.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"artico/internal/conversation"
	"artico/internal/models"
)

var (
	ErrEmptyInput      = errors.New("input is empty")
	ErrBusy            = errors.New("a request is already in progress")
	ErrChatUnavailable = errors.New("chat is available once an article has been generated")
)

const articlePromptFormat = "Write a creative article about %s, with an interesting AI-generated title on top, " +
	"then a blank line, then the article content. Avoid repeating the exact user topic."

const articleContextPrefix = "The user has just read the following article. Answer their questions about it.\n\n"

// Streamer is the subset of the relay client a Session drives.
type Streamer interface {
	GenerateArticle(ctx context.Context, prompt string, onChunk func(string)) error
	Chat(ctx context.Context, messages []models.ChatMessage, onChunk func(string)) error
	ChatWS(ctx context.Context, messages []models.ChatMessage, onChunk func(string)) error
}

// Session allows one article request and one chat send in flight at a time.
type Session struct {
	client Streamer
	useWS  bool

	generating atomic.Bool
	sending    atomic.Bool
	chatReady  atomic.Bool

	mu      sync.RWMutex
	article strings.Builder

	conv *conversation.Conversation
}

// New returns a Session streaming through client. With useWS the chat
// replies use the WebSocket relay instead of the HTTP stream.
func New(client Streamer, useWS bool) *Session {
	return &Session{
		client: client,
		useWS:  useWS,
		conv:   conversation.New(),
	}
}

// ArticlePrompt builds the instruction sent for topic.
func ArticlePrompt(topic string) string {
	return fmt.Sprintf(articlePromptFormat, topic)
}

// GenerateArticle streams a fresh article about topic, handing each fragment
// to onChunk as it arrives. A previous article and its chat are discarded.
// Chat becomes available when the stream ends with any text, including
// partial text cut off by a timeout.
func (s *Session) GenerateArticle(ctx context.Context, topic string, onChunk func(string)) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrEmptyInput
	}
	if !s.generating.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.generating.Store(false)

	s.chatReady.Store(false)
	s.conv.Reset()
	s.mu.Lock()
	s.article.Reset()
	s.mu.Unlock()

	err := s.client.GenerateArticle(ctx, ArticlePrompt(topic), func(chunk string) {
		s.mu.Lock()
		s.article.WriteString(chunk)
		s.mu.Unlock()
		if onChunk != nil {
			onChunk(chunk)
		}
	})

	article := s.Article()
	if strings.TrimSpace(article) != "" {
		s.chatReady.Store(true)
	}
	if err != nil {
		log.Error().Err(err).Int("received", len(article)).Msg("article generation failed")
		return errors.Wrap(err, "generating article")
	}
	return nil
}

// Send appends input to the conversation and streams the assistant reply,
// calling onUpdate with a snapshot of the history after every fragment.
func (s *Session) Send(ctx context.Context, input string, onUpdate func([]models.ChatMessage)) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return ErrEmptyInput
	}
	if !s.chatReady.Load() {
		return ErrChatUnavailable
	}
	if !s.sending.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.sending.Store(false)

	s.conv.AppendUser(input)

	stream := s.client.Chat
	if s.useWS {
		stream = s.client.ChatWS
	}

	err := stream(ctx, s.history(), func(chunk string) {
		s.conv.ApplyAssistantChunk(chunk)
		if onUpdate != nil {
			onUpdate(s.conv.Messages())
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("chat reply failed")
		return errors.Wrap(err, "streaming reply")
	}
	return nil
}

// history is the conversation prefixed by the article as a system message.
func (s *Session) history() []models.ChatMessage {
	msgs := s.conv.Messages()
	article := s.Article()
	if strings.TrimSpace(article) == "" {
		return msgs
	}
	return append([]models.ChatMessage{{Role: models.RoleSystem, Content: articleContextPrefix + article}}, msgs...)
}

func (s *Session) Article() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.article.String()
}

func (s *Session) Messages() []models.ChatMessage { return s.conv.Messages() }

func (s *Session) ChatReady() bool { return s.chatReady.Load() }

// Loading reports whether an article or a reply is streaming.
func (s *Session) Loading() bool { return s.generating.Load() || s.sending.Load() }
