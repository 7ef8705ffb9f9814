package conversation

import (
	"time"

	"github.com/huandu/go-clone"
)

// Agent is one participant of a multi-agent conversation. Colour, Avatar and
// Voice are display metadata carried through untouched.
type Agent struct {
	Name   string `json:"name" yaml:"name" jsonschema:"minLength=1"`
	Model  string `json:"model" yaml:"model"`
	Colour string `json:"colour,omitempty" yaml:"colour,omitempty"`
	Avatar string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Voice  string `json:"voice,omitempty" yaml:"voice,omitempty"`
	System string `json:"system" yaml:"system"`
}

// State is the conversation state a caller threads through successive turns.
// A nil or absent Summary means no summary has been produced yet.
type State struct {
	History []string `json:"history" yaml:"history" jsonschema:"minItems=1"`
	Summary *string  `json:"summary,omitempty" yaml:"summary" jsonschema:"nullable"`
	Agents  []Agent  `json:"agents" yaml:"agents" jsonschema:"minItems=1"`
}

func (s *State) Clone() *State {
	return clone.Clone(s).(*State)
}

// TurnResult is what one orchestrated turn hands back to the caller.
type TurnResult struct {
	History []string `json:"history" yaml:"history"`
	Summary *string  `json:"summary" yaml:"summary"`
}

// Snapshot is a persisted conversation, addressed by an opaque id.
type Snapshot struct {
	ID        string    `json:"id"`
	History   []string  `json:"history"`
	Agents    []Agent   `json:"agents"`
	Summary   *string   `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
