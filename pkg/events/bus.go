// Package events carries session change notifications from the controller to
// whoever renders them, over an in-memory or Redis Streams watermill pub/sub.
package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/rupeshbug/sec-policy-lens/pkg/redisstream"
	"github.com/rupeshbug/sec-policy-lens/pkg/session"
)

const Topic = "sec-policy-lens.session"

type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	closer     func() error
	logger     zerolog.Logger
}

// NewBus returns a Redis Streams backed bus when s.Enabled, and an in-memory
// go-channel bus otherwise.
func NewBus(ctx context.Context, s redisstream.Settings, logger zerolog.Logger) (*Bus, error) {
	wl := NewWatermillLogger(logger)
	if !s.Enabled {
		return NewInMemoryBus(wl, logger), nil
	}

	ps, err := redisstream.Build(s, wl)
	if err != nil {
		return nil, err
	}
	if err := ps.EnsureGroupAtTail(ctx, Topic, s.Group); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return &Bus{
		publisher:  ps.Publisher,
		subscriber: ps.Subscriber,
		closer:     ps.Close,
		logger:     logger,
	}, nil
}

func NewInMemoryBus(wl watermill.LoggerAdapter, logger zerolog.Logger) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wl)
	return &Bus{
		publisher:  ch,
		subscriber: ch,
		closer:     ch.Close,
		logger:     logger,
	}
}

// Publish encodes ev and publishes it on Topic.
func (b *Bus) Publish(ev session.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode session event")
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("type", string(ev.Type))
	if err := b.publisher.Publish(Topic, msg); err != nil {
		return errors.Wrap(err, "publish session event")
	}
	return nil
}

// Listener adapts the bus to session.Controller.Subscribe. Publish failures
// are logged and dropped: rendering is best effort, the session is not.
func (b *Bus) Listener() session.Listener {
	return func(ev session.Event) {
		if err := b.Publish(ev); err != nil {
			b.logger.Warn().Err(err).Str("event", string(ev.Type)).Msg("could not publish session event")
		}
	}
}

func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	ch, err := b.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to session events")
	}
	return ch, nil
}

// Run subscribes and hands every message to handler until ctx is done or
// the subscription closes. Messages are acked after the handler returns,
// nacked if it fails.
func (b *Bus) Run(ctx context.Context, handler func(*message.Message) error) error {
	ch, err := b.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := handler(msg); err != nil {
				b.logger.Warn().Err(err).Str("uuid", msg.UUID).Msg("session event handler failed")
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// Decode reads a session event back out of a bus message.
func Decode(msg *message.Message) (session.Event, error) {
	var ev session.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return session.Event{}, errors.Wrap(err, "decode session event")
	}
	return ev, nil
}
