package events

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Usage represents token usage information as reported by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens" mapstructure:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens" mapstructure:"output_tokens"`
}

// LLMInferenceData consolidates the inference metadata of one generation call.
type LLMInferenceData struct {
	Model  string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model,omitempty"`
	Stream bool   `json:"stream" yaml:"stream" mapstructure:"stream"`
	// PromptTokens is the local estimate of the prompt size, before sending.
	PromptTokens int     `json:"prompt_tokens,omitempty" yaml:"prompt_tokens,omitempty" mapstructure:"prompt_tokens,omitempty"`
	StopReason   *string `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty" mapstructure:"stop_reason,omitempty"`
	Usage        *Usage  `json:"usage,omitempty" yaml:"usage,omitempty" mapstructure:"usage,omitempty"`
	DurationMs   *int64  `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty" mapstructure:"duration_ms,omitempty"`
}

// EventMetadata contains all the information that is passed along with a
// watermill message, specific to one generation call.
type EventMetadata struct {
	LLMInferenceData
	ID    uuid.UUID `json:"message_id" yaml:"message_id" mapstructure:"message_id"`
	Agent string    `json:"agent,omitempty" yaml:"agent,omitempty" mapstructure:"agent"`
}

func NewEventMetadata(agent string, data LLMInferenceData) EventMetadata {
	return EventMetadata{
		LLMInferenceData: data,
		ID:               uuid.New(),
		Agent:            agent,
	}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.Agent != "" {
		e.Str("agent", em.Agent)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	e.Bool("stream", em.Stream)
	if em.PromptTokens > 0 {
		e.Int("prompt_tokens", em.PromptTokens)
	}
	if em.StopReason != nil && *em.StopReason != "" {
		e.Str("stop_reason", *em.StopReason)
	}
	if em.Usage != nil {
		e.Int("input_tokens", em.Usage.InputTokens)
		e.Int("output_tokens", em.Usage.OutputTokens)
	}
	if em.DurationMs != nil {
		e.Int64("duration_ms", *em.DurationMs)
	}
}
