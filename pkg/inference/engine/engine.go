package engine

import (
	"context"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/collector"
)

// Request is a single chat completion call: one model, one prompt.
type Request struct {
	Model    string                     `json:"model"`
	Messages []conversation.ChatMessage `json:"messages"`
	// Agent is the name of the speaking agent, if any. Only used for event metadata.
	Agent string `json:"agent,omitempty"`
}

// Engine represents a generation provider. Engines handle provider-specific
// logic for services like OpenAI. Events are published through all registered
// EventSinks during inference.
type Engine interface {
	// Complete runs a non-streaming completion. It returns nil when the
	// provider produced no message content.
	Complete(ctx context.Context, req Request) (*string, error)

	// Stream runs a streaming completion, relays every content delta to
	// onDelta in arrival order, and returns the full message text once the
	// provider signals completion.
	Stream(ctx context.Context, req Request, onDelta collector.AppendFunc) (string, error)
}
