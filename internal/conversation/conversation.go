// Package conversation keeps the client-side chat history while a reply
// streams in.
package conversation

import (
	"strings"
	"sync"

	"artico/internal/models"
)

// TurnState reports whether an assistant reply is being accumulated.
type TurnState int

const (
	IdleTurn TurnState = iota
	OpenAssistantTurn
)

func (s TurnState) String() string {
	if s == OpenAssistantTurn {
		return "open-assistant-turn"
	}
	return "idle"
}

// Conversation is an ordered list of role-tagged messages. At most one
// trailing assistant message is open at a time.
type Conversation struct {
	mu       sync.RWMutex
	messages []models.ChatMessage
	reply    strings.Builder
	state    TurnState
}

func New() *Conversation {
	return &Conversation{}
}

// AppendUser closes any open assistant turn and records a user message.
func (c *Conversation) AppendUser(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, models.ChatMessage{Role: models.RoleUser, Content: content})
	c.reply.Reset()
	c.state = IdleTurn
}

// ApplyAssistantChunk extends the reply being streamed. The first chunk of a
// turn appends an assistant message; later chunks rewrite it with the
// running text.
func (c *Conversation) ApplyAssistantChunk(chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reply.WriteString(chunk)
	text := c.reply.String()

	if n := len(c.messages); n > 0 && c.messages[n-1].Role == models.RoleAssistant {
		c.messages[n-1].Content = text
	} else {
		c.messages = append(c.messages, models.ChatMessage{Role: models.RoleAssistant, Content: text})
	}
	c.state = OpenAssistantTurn
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []models.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) State() TurnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
	c.reply.Reset()
	c.state = IdleTurn
}
