package summarizer

import (
	"context"
	"strings"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultWindow is the number of most recent messages kept verbatim.
	DefaultWindow = 15
	// DefaultSlack is how many messages past the window accumulate before a
	// new summary is generated.
	DefaultSlack = 10
)

const (
	summaryInstruction = "You maintain a running summary of a conversation between several agents. " +
		"Write a concise summary of the messages you are given. Keep who said what, decisions taken and open questions."
	previousSummaryIntro = "Extend this summary of the earlier conversation:"
	messageSeparator     = "\n\n"
)

// Result pairs the new running summary with the short-term tail of the history.
type Result struct {
	Summary *string
	History []conversation.ChatMessage
}

// ShouldSummarize is the trigger policy: summarize only once the history grew
// past window+slack messages, so summaries are regenerated in batches.
func ShouldSummarize(n, window, slack int) bool {
	return n > window+slack
}

type Summarizer struct {
	engine engine.Engine
	model  string
	window int
}

type Option func(*Summarizer)

func WithWindow(window int) Option {
	return func(s *Summarizer) {
		if window > 0 {
			s.window = window
		}
	}
}

func New(e engine.Engine, model string, options ...Option) *Summarizer {
	ret := &Summarizer{
		engine: e,
		model:  model,
		window: DefaultWindow,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (s *Summarizer) Window() int {
	return s.window
}

// Split returns the older prefix and the short-term tail of history. Both are
// fresh slices.
func (s *Summarizer) Split(history []conversation.ChatMessage) (older, tail []conversation.ChatMessage) {
	cut := len(history) - s.window
	if cut < 0 {
		cut = 0
	}
	older = append([]conversation.ChatMessage{}, history[:cut]...)
	tail = append([]conversation.ChatMessage{}, history[cut:]...)
	return older, tail
}

// Prompt builds the non-streaming request that condenses older.
func (s *Summarizer) Prompt(previous *string, older []conversation.ChatMessage) []conversation.ChatMessage {
	system := summaryInstruction
	if previous != nil && *previous != "" {
		system += "\n\n" + previousSummaryIntro + "\n" + *previous
	}
	return []conversation.ChatMessage{
		conversation.NewChatMessage(conversation.RoleSystem, system),
		conversation.NewChatMessage(conversation.RoleUser, strings.Join(conversation.Contents(older), messageSeparator)),
	}
}

// Summarize condenses everything but the last Window messages into a summary.
//
// When there is nothing older than the window, history is returned as is
// together with previous, and no generation call is made. history is never
// modified.
func (s *Summarizer) Summarize(ctx context.Context, previous *string, history []conversation.ChatMessage) (*Result, error) {
	older, tail := s.Split(history)
	if len(older) == 0 {
		return &Result{Summary: previous, History: tail}, nil
	}

	log.Debug().
		Int("older", len(older)).
		Int("kept", len(tail)).
		Bool("has_previous", previous != nil).
		Str("model", s.model).
		Msg("summarizing history")

	summary, err := s.engine.Complete(ctx, engine.Request{
		Model:    s.model,
		Messages: s.Prompt(previous, older),
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not summarize history")
	}

	return &Result{Summary: summary, History: tail}, nil
}
