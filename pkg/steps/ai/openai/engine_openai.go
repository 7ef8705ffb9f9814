package openai

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/inference"
	"github.com/go-go-golems/parley/pkg/inference/collector"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// OpenAIEngine implements engine.Engine on the OpenAI chat completions API.
type OpenAIEngine struct {
	settings *settings.StepSettings
	config   *inference.Config
	client   *go_openai.Client
}

var _ engine.Engine = (*OpenAIEngine)(nil)

// NewOpenAIEngine creates the engine and its client from the given settings.
func NewOpenAIEngine(ss *settings.StepSettings, options ...inference.Option) (*OpenAIEngine, error) {
	config, err := inference.NewConfigFromOptions(options...)
	if err != nil {
		return nil, err
	}

	client, err := MakeClient(ss)
	if err != nil {
		return nil, err
	}

	return &OpenAIEngine{
		settings: ss,
		config:   config,
		client:   client,
	}, nil
}

func (e *OpenAIEngine) publishEvent(event events.Event) {
	e.config.Publish(event)
}

func (e *OpenAIEngine) metadata(req *go_openai.ChatCompletionRequest, r engine.Request) events.EventMetadata {
	return events.NewEventMetadata(r.Agent, events.LLMInferenceData{
		Model:        req.Model,
		Stream:       req.Stream,
		PromptTokens: CountPromptTokens(req.Model, r.Messages),
	})
}

func finishMetadata(metadata *events.EventMetadata, start time.Time) {
	d := time.Since(start).Milliseconds()
	metadata.DurationMs = &d
}

// Complete runs a single non-streaming completion.
func (e *OpenAIEngine) Complete(ctx context.Context, r engine.Request) (*string, error) {
	req, err := MakeCompletionRequest(e.settings, r, false)
	if err != nil {
		return nil, err
	}

	metadata := e.metadata(req, r)
	log.Debug().Object("meta", metadata).Int("num_messages", len(req.Messages)).Msg("OpenAI completion started")
	e.publishEvent(events.NewStartEvent(metadata))
	start := time.Now()

	resp, err := e.client.CreateChatCompletion(ctx, *req)
	finishMetadata(&metadata, start)
	if err != nil {
		if ctx.Err() != nil {
			e.publishEvent(events.NewInterruptEvent(metadata, ""))
			return nil, ctx.Err()
		}
		log.Error().Err(err).Msg("OpenAI completion request failed")
		e.publishEvent(events.NewErrorEvent(metadata, err))
		return nil, errors.Wrap(err, "openai completion failed")
	}

	metadata.Usage = &events.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	if len(resp.Choices) == 0 {
		log.Warn().Object("meta", metadata).Msg("OpenAI completion returned no choices")
		e.publishEvent(events.NewFinalEvent(metadata, ""))
		return nil, nil
	}

	choice := resp.Choices[0]
	if choice.FinishReason != "" {
		reason := string(choice.FinishReason)
		metadata.StopReason = &reason
	}
	e.publishEvent(events.NewFinalEvent(metadata, choice.Message.Content))

	if choice.Message.Content == "" {
		return nil, nil
	}
	content := choice.Message.Content
	return &content, nil
}

// streamSource adapts a go-openai stream to a collector.Source. The provider
// stream reports io.EOF both for its [DONE] line and for a body that was cut
// short; done tells the two apart.
type streamSource struct {
	stream     *go_openai.ChatCompletionStream
	done       func() bool
	stopReason *string
	chunks     int
}

func (s *streamSource) Recv() (collector.Chunk, error) {
	response, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		if s.done != nil && !s.done() {
			return collector.Chunk{}, io.EOF
		}
		return collector.DoneChunk(), nil
	}
	if err != nil {
		return collector.Chunk{}, err
	}
	s.chunks++

	if len(response.Choices) == 0 {
		return collector.Chunk{}, nil
	}
	choice := response.Choices[0]
	if choice.FinishReason != "" {
		reason := string(choice.FinishReason)
		s.stopReason = &reason
	}
	if choice.Delta.Content == "" {
		return collector.Chunk{}, nil
	}
	return collector.ContentChunk(choice.Delta.Content), nil
}

// Stream runs a streaming completion. Deltas are relayed to onDelta and
// published as partial completion events.
func (e *OpenAIEngine) Stream(ctx context.Context, r engine.Request, onDelta collector.AppendFunc) (string, error) {
	req, err := MakeCompletionRequest(e.settings, r, true)
	if err != nil {
		return "", err
	}

	metadata := e.metadata(req, r)
	log.Debug().Object("meta", metadata).Int("num_messages", len(req.Messages)).Msg("OpenAI stream started")
	e.publishEvent(events.NewStartEvent(metadata))
	start := time.Now()

	streamCtx, tracker := withDoneTracker(ctx)
	stream, err := e.client.CreateChatCompletionStream(streamCtx, *req)
	if err != nil {
		finishMetadata(&metadata, start)
		if ctx.Err() != nil {
			e.publishEvent(events.NewInterruptEvent(metadata, ""))
			return "", ctx.Err()
		}
		log.Error().Err(err).Msg("OpenAI streaming request failed")
		e.publishEvent(events.NewErrorEvent(metadata, err))
		return "", errors.Wrap(err, "openai stream failed")
	}
	defer stream.Close()

	src := &streamSource{stream: stream, done: tracker.Seen}
	var sb strings.Builder
	message, err := collector.Collect(ctx, src, func(delta string) error {
		sb.WriteString(delta)
		e.publishEvent(events.NewPartialCompletionEvent(metadata, delta, sb.String()))
		if onDelta != nil {
			return onDelta(delta)
		}
		return nil
	})
	finishMetadata(&metadata, start)
	metadata.StopReason = src.stopReason

	if err != nil {
		if ctx.Err() != nil {
			log.Debug().Int("chunks_received", src.chunks).Msg("OpenAI streaming cancelled by context")
			e.publishEvent(events.NewInterruptEvent(metadata, sb.String()))
			return "", ctx.Err()
		}
		log.Error().Err(err).Int("chunks_received", src.chunks).Msg("OpenAI stream receive failed")
		e.publishEvent(events.NewErrorEvent(metadata, err))
		return "", err
	}

	log.Debug().Int("chunks_received", src.chunks).Int("length", len(message)).Msg("OpenAI stream completed")
	e.publishEvent(events.NewFinalEvent(metadata, message))
	return message, nil
}
