package inference

import (
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Option func(*Config) error

// Config is what an engine publishes its events to.
type Config struct {
	EventSinks []EventSink
}

func NewConfig() *Config {
	return &Config{}
}

// NewConfigFromOptions builds a Config, stopping at the first failing option.
func NewConfigFromOptions(options ...Option) (*Config, error) {
	c := NewConfig()
	for _, o := range options {
		if err := o(c); err != nil {
			return nil, errors.Wrap(err, "invalid engine option")
		}
	}
	return c, nil
}

// WithSink adds sink after the ones already registered.
func WithSink(sink EventSink) Option {
	return func(c *Config) error {
		if sink == nil {
			return errors.New("event sink is nil")
		}
		c.EventSinks = append(c.EventSinks, sink)
		return nil
	}
}

// Publish hands event to every sink in registration order. A failing sink is
// logged and skipped; inference never stops because an event was lost.
func (c *Config) Publish(event events.Event) {
	for _, s := range c.EventSinks {
		if err := s.PublishEvent(event); err != nil {
			log.Warn().Err(err).
				Str("event_type", string(event.Type())).
				Str("agent", event.Metadata().Agent).
				Msg("failed to publish event")
		}
	}
}
