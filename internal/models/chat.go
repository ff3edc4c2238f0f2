package models

// Role tags the author of a ChatMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// GenerateRequest is the payload sent to the article endpoint.
type GenerateRequest struct {
	Topic string `json:"topic"`
}

// ErrorResponse is the JSON body written when a relay request fails.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WebSocket frame types
const (
	WSTypeChunk = "chunk"
	WSTypeDone  = "done"
	WSTypeError = "error"
)

// WSMessage is a single frame sent by the chat WebSocket relay.
type WSMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  int    `json:"status,omitempty"`
}
