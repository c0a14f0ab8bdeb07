package nlp

import (
	"context"

	"github.com/soundprediction/medinsight/pkg/types"
)

// TokenFunc receives streamed text chunks in order. Returning an error stops
// the stream and that error is returned from Stream.
type TokenFunc func(chunk string) error

// Generator streams a completion for a conversation.
type Generator interface {
	Stream(ctx context.Context, messages []types.Message, onToken TokenFunc) error
}

// Client defines the interface for language model operations.
type Client interface {
	Generator

	// Chat sends a chat completion request and returns the full response.
	Chat(ctx context.Context, messages []types.Message) (*types.Response, error)

	// Close cleans up any resources.
	Close() error
}

const (
	// RoleSystem represents a system message.
	RoleSystem types.Role = "system"
	// RoleUser represents a user message.
	RoleUser types.Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant types.Role = "assistant"
)

// NewMessage creates a new message with the specified role and content.
func NewMessage(role types.Role, content string) types.Message {
	return types.Message{
		Role:    role,
		Content: content,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) types.Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) types.Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) types.Message {
	return NewMessage(RoleAssistant, content)
}
