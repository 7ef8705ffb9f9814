package settings

import (
	"github.com/huandu/go-clone"
)

const DefaultModel = "gpt-3.5-turbo"

type ChatSettings struct {
	// DefaultModel is used for agents that don't name a model.
	DefaultModel      *string  `yaml:"default_model,omitempty"`
	MaxResponseTokens *int     `yaml:"max_response_tokens,omitempty"`
	TopP              *float64 `yaml:"top_p,omitempty"`
	Temperature       *float64 `yaml:"temperature,omitempty"`
	Stop              []string `yaml:"stop,omitempty"`
}

func NewChatSettings() *ChatSettings {
	model := DefaultModel
	return &ChatSettings{
		DefaultModel: &model,
		Stop:         []string{},
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

// Model returns the default model, falling back to DefaultModel.
func (s *ChatSettings) Model() string {
	if s == nil || s.DefaultModel == nil || *s.DefaultModel == "" {
		return DefaultModel
	}
	return *s.DefaultModel
}
