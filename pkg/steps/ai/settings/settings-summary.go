package settings

import (
	"github.com/huandu/go-clone"
)

const (
	DefaultSummaryWindow = 15
	DefaultSummarySlack  = 10
)

// SummarySettings control when and how the chat history is condensed.
type SummarySettings struct {
	// Window is the number of most recent messages kept verbatim.
	Window int `yaml:"window"`
	// Slack is how far the history may grow past Window before summarizing.
	Slack int `yaml:"slack"`
	// Model used for the summary call. Empty means the chat default model.
	Model *string `yaml:"model,omitempty"`
}

func NewSummarySettings() *SummarySettings {
	return &SummarySettings{
		Window: DefaultSummaryWindow,
		Slack:  DefaultSummarySlack,
	}
}

func (s *SummarySettings) Clone() *SummarySettings {
	return clone.Clone(s).(*SummarySettings)
}
