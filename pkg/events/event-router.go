package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/helpers"
)

// TopicChat is the topic engines publish their chat events on.
const TopicChat = "chat"

// ChatEventHandler receives typed chat events dispatched by the router.
type ChatEventHandler interface {
	HandleStart(ctx context.Context, e *EventPartialCompletionStart) error
	HandlePartialCompletion(ctx context.Context, e *EventPartialCompletion) error
	HandleFinal(ctx context.Context, e *EventFinal) error
	HandleError(ctx context.Context, e *EventError) error
	HandleInterrupt(ctx context.Context, e *EventInterrupt) error
}

type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	verbose    bool
	out        io.Writer
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
		if verbose {
			r.logger = helpers.NewWatermill(log.Logger)
		}
	}
}

// WithOutput sets where DumpRawEvents writes to. Defaults to stdout.
func WithOutput(w io.Writer) EventRouterOption {
	return func(r *EventRouter) {
		r.out = w
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
		out:    os.Stdout,
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}

	ret.router = router

	return ret, nil
}

// Close closes the publisher first so pending publishes fail fast, then the router.
func (e *EventRouter) Close() error {
	log.Debug().Msg("Closing publisher")
	if err := e.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close pubsub")
	}

	log.Debug().Msg("Closing router")
	if err := e.router.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close router")
		return err
	}
	log.Debug().Msg("Router closed")

	return nil
}

func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

// AddChatEventHandler registers handler for all chat events published on topic.
func (e *EventRouter) AddChatEventHandler(name string, topic string, handler ChatEventHandler) {
	e.AddHandler(name, topic, createChatDispatchHandler(handler))
}

func createChatDispatchHandler(handler ChatEventHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			// one bad message must not stop the router
			log.Error().Err(err).Str("message_id", msg.UUID).Str("payload", string(msg.Payload)).
				Msg("Failed to parse chat event from message payload")
			return nil
		}

		ctx := msg.Context()
		switch ev := e.(type) {
		case *EventPartialCompletionStart:
			return handler.HandleStart(ctx, ev)
		case *EventPartialCompletion:
			return handler.HandlePartialCompletion(ctx, ev)
		case *EventFinal:
			return handler.HandleFinal(ctx, ev)
		case *EventError:
			return handler.HandleError(ctx, ev)
		case *EventInterrupt:
			return handler.HandleInterrupt(ctx, ev)
		default:
			log.Warn().Str("message_id", msg.UUID).Str("event_type", string(e.Type())).Msg("Unhandled chat event type")
		}
		return nil
	}
}

// LogEvents logs every chat event through zerolog. Partial completions are
// logged at trace level, everything else at debug.
func LogEvents(msg *message.Message) error {
	defer msg.Ack()

	e, err := NewEventFromJson(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("could not decode event")
		return nil
	}

	level := zerolog.DebugLevel
	if e.Type() == EventTypePartialCompletion {
		level = zerolog.TraceLevel
	}
	ev := log.WithLevel(level).Str("seq", msg.Metadata.Get(MetadataKeySequenceNumber))
	if m, ok := e.(zerolog.LogObjectMarshaler); ok {
		ev = ev.Object("event", m)
	}
	ev.Msg("chat event")
	return nil
}

func (e *EventRouter) DumpRawEvents(msg *message.Message) error {
	defer msg.Ack()

	var s map[string]interface{}
	err := json.Unmarshal(msg.Payload, &s)
	if err != nil {
		return err
	}
	if !e.verbose {
		if meta, ok := s["meta"].(map[string]interface{}); ok {
			s["id"] = meta["message_id"]
			s["agent"] = meta["agent"]
		}
		delete(s, "meta")
	}
	s_, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, string(s_))
	return err
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) IsRunning() bool {
	return e.router.IsRunning()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}
