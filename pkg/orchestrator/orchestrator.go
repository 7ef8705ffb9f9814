package orchestrator

import (
	"context"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/collector"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/summarizer"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SummaryDivider separates an agent's own system prompt from the running summary.
const SummaryDivider = "\n\n---\n\n"

const summaryNote = "Summary of the conversation so far:\n"

// InactiveAgents returns the names of all agents that authored a final message.
// Messages without directives never mark anyone inactive.
func InactiveAgents(history []string) map[string]struct{} {
	ret := map[string]struct{}{}
	for _, msg := range history {
		d := conversation.ParseDirectives(msg)
		if d.IsFinal() {
			ret[d.Author] = struct{}{}
		}
	}
	return ret
}

// ActiveRoster filters inactive agents out of agents, preserving order.
func ActiveRoster(agents []conversation.Agent, inactive map[string]struct{}) []conversation.Agent {
	ret := make([]conversation.Agent, 0, len(agents))
	for _, a := range agents {
		if _, ok := inactive[a.Name]; ok {
			continue
		}
		ret = append(ret, a)
	}
	return ret
}

// SelectSpeaker picks the first active agent addressed by the target of the
// last message, falling back to the first active agent. It returns false when
// no agent is active.
func SelectSpeaker(active []conversation.Agent, history []string) (conversation.Agent, bool) {
	if len(active) == 0 {
		return conversation.Agent{}, false
	}
	if len(history) > 0 {
		d := conversation.ParseDirectives(history[len(history)-1])
		for _, a := range active {
			if d.Addresses(a.Name) {
				return a, true
			}
		}
	}
	return active[0], true
}

// BuildChatHistory maps history onto alternating user/assistant roles,
// anchored so that the most recent message is always a user message.
func BuildChatHistory(history []string) []conversation.ChatMessage {
	ret := make([]conversation.ChatMessage, len(history))
	for i, msg := range history {
		role := conversation.RoleUser
		if (len(history)-1-i)%2 == 1 {
			role = conversation.RoleAssistant
		}
		ret[i] = conversation.NewChatMessage(role, msg)
	}
	return ret
}

// SystemPrompt is the agent's system prompt, with the running summary appended
// after a divider when there is one.
func SystemPrompt(agent conversation.Agent, summary *string) string {
	if summary == nil || *summary == "" {
		return agent.System
	}
	return agent.System + SummaryDivider + summaryNote + *summary
}

type Orchestrator struct {
	engine     engine.Engine
	summarizer *summarizer.Summarizer
	window     int
	slack      int
}

type Option func(*Orchestrator)

// WithSlack sets how far the history may grow past the summary window.
func WithSlack(slack int) Option {
	return func(o *Orchestrator) {
		if slack >= 0 {
			o.slack = slack
		}
	}
}

func New(e engine.Engine, s *summarizer.Summarizer, options ...Option) *Orchestrator {
	ret := &Orchestrator{
		engine:     e,
		summarizer: s,
		window:     s.Window(),
		slack:      summarizer.DefaultSlack,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Turn runs one conversation turn: it picks the next speaker, summarizes the
// history if it grew too long, and streams the speaker's message through
// onDelta.
//
// If every agent is final, Turn returns the input history and summary as they
// are without calling the engine.
func (o *Orchestrator) Turn(ctx context.Context, state conversation.State, onDelta collector.AppendFunc) (*conversation.TurnResult, error) {
	active := ActiveRoster(state.Agents, InactiveAgents(state.History))
	speaker, ok := SelectSpeaker(active, state.History)
	if !ok {
		log.Info().Int("agents", len(state.Agents)).Msg("no active agents left, conversation is over")
		return &conversation.TurnResult{History: state.History, Summary: state.Summary}, nil
	}

	chatHistory := BuildChatHistory(state.History)
	summary := state.Summary

	if summarizer.ShouldSummarize(len(chatHistory), o.window, o.slack) {
		res, err := o.summarizer.Summarize(ctx, summary, chatHistory)
		if err != nil {
			return nil, err
		}
		chatHistory = res.History
		summary = res.Summary
	}

	messages := make([]conversation.ChatMessage, 0, len(chatHistory)+1)
	messages = append(messages, conversation.NewChatMessage(conversation.RoleSystem, SystemPrompt(speaker, summary)))
	messages = append(messages, chatHistory...)

	log.Debug().
		Str("speaker", speaker.Name).
		Str("model", speaker.Model).
		Int("active", len(active)).
		Int("messages", len(messages)).
		Msg("generating turn")

	text, err := o.engine.Stream(ctx, engine.Request{
		Model:    speaker.Model,
		Messages: messages,
		Agent:    speaker.Name,
	}, onDelta)
	if err != nil {
		return nil, errors.Wrapf(err, "could not generate message for %s", speaker.Name)
	}

	history := append(conversation.Contents(chatHistory), text)
	return &conversation.TurnResult{History: history, Summary: summary}, nil
}
