package server

import (
	"context"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/collector"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/orchestrator"
	"github.com/go-go-golems/parley/pkg/stream"
	"github.com/go-go-golems/parley/pkg/summarizer"
)

const DefaultCompleteSystemPrompt = "You are a helpful assistant. Answer in a few sentences."

// SummarizeInput is the input of the summarize operation.
type SummarizeInput struct {
	History []string `json:"history"`
	Summary *string  `json:"summary,omitempty" jsonschema:"nullable"`
}

// CompleteInput is the input of the complete operation: a single-agent
// completion of query, after history.
type CompleteInput struct {
	Query   string   `json:"query" jsonschema:"minLength=1"`
	History []string `json:"history"`
	System  string   `json:"system,omitempty"`
	Model   string   `json:"model,omitempty"`
}

var (
	ChatOperation      = stream.NewDescriptor[conversation.State, conversation.TurnResult]("chat")
	SummarizeOperation = stream.NewDescriptor[SummarizeInput, conversation.TurnResult]("summarize")
	CompleteOperation  = stream.NewDescriptor[CompleteInput, string]("complete")
)

func chatResolver(o *orchestrator.Orchestrator) stream.ResolverFunc[conversation.State, conversation.TurnResult] {
	return func(ctx context.Context, in conversation.State, onDelta collector.AppendFunc) (conversation.TurnResult, error) {
		res, err := o.Turn(ctx, in, onDelta)
		if err != nil {
			return conversation.TurnResult{}, err
		}
		return *res, nil
	}
}

func summarizeResolver(s *summarizer.Summarizer) stream.ResolverFunc[SummarizeInput, conversation.TurnResult] {
	return func(ctx context.Context, in SummarizeInput, _ collector.AppendFunc) (conversation.TurnResult, error) {
		res, err := s.Summarize(ctx, in.Summary, orchestrator.BuildChatHistory(in.History))
		if err != nil {
			return conversation.TurnResult{}, err
		}
		return conversation.TurnResult{
			History: conversation.Contents(res.History),
			Summary: res.Summary,
		}, nil
	}
}

func completeResolver(e engine.Engine, defaultModel string) stream.ResolverFunc[CompleteInput, string] {
	return func(ctx context.Context, in CompleteInput, onDelta collector.AppendFunc) (string, error) {
		system := in.System
		if system == "" {
			system = DefaultCompleteSystemPrompt
		}
		model := in.Model
		if model == "" {
			model = defaultModel
		}

		// history alternates from the start, the query always comes last as user
		messages := []conversation.ChatMessage{conversation.NewChatMessage(conversation.RoleSystem, system)}
		for i, msg := range in.History {
			role := conversation.RoleUser
			if i%2 == 1 {
				role = conversation.RoleAssistant
			}
			messages = append(messages, conversation.NewChatMessage(role, msg))
		}
		messages = append(messages, conversation.NewChatMessage(conversation.RoleUser, in.Query))

		return e.Stream(ctx, engine.Request{Model: model, Messages: messages}, onDelta)
	}
}
