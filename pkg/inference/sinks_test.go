package inference

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []events.Event
	err    error
}

func (r *recordingSink) PublishEvent(event events.Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestWatermillSinkNumbersEvents(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	defer func() {
		_ = pubSub.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := pubSub.Subscribe(ctx, events.TopicChat)
	require.NoError(t, err)

	sink := NewWatermillSink(pubSub, events.TopicChat)
	meta := events.NewEventMetadata("A", events.LLMInferenceData{Model: "m", Stream: true})
	require.NoError(t, sink.PublishEvent(events.NewStartEvent(meta)))
	require.NoError(t, sink.PublishEvent(events.NewPartialCompletionEvent(meta, "Hel", "Hel")))
	require.NoError(t, sink.PublishEvent(events.NewFinalEvent(meta, "Hello")))

	// gochannel delivers from one goroutine per message, so arrival order is not publish order
	received := map[string]events.EventType{}
	for i := 0; i < 3; i++ {
		select {
		case msg := <-msgs:
			msg.Ack()
			e, err := events.NewEventFromJson(msg.Payload)
			require.NoError(t, err)
			assert.Equal(t, string(e.Type()), msg.Metadata.Get(events.MetadataKeyEventType))
			received[msg.Metadata.Get(events.MetadataKeySequenceNumber)] = e.Type()
		case <-time.After(time.Second):
			t.Fatalf("event %d was not delivered", i)
		}
	}

	assert.Equal(t, map[string]events.EventType{
		"0": events.EventTypeStart,
		"1": events.EventTypePartialCompletion,
		"2": events.EventTypeFinal,
	}, received)
}

func TestConfigPublishReachesEverySink(t *testing.T) {
	failing := &recordingSink{err: errors.New("full")}
	ok := &recordingSink{}

	config, err := NewConfigFromOptions(WithSink(failing), WithSink(ok), WithSink(NewNullSink()))
	require.NoError(t, err)
	require.Len(t, config.EventSinks, 3)

	config.Publish(events.NewFinalEvent(events.NewEventMetadata("A", events.LLMInferenceData{}), "done"))
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)
}

func TestNilSinkIsRejected(t *testing.T) {
	_, err := NewConfigFromOptions(WithSink(NewNullSink()), WithSink(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event sink is nil")
}
