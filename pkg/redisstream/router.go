package redisstream

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PubSub bundles a Redis Streams publisher and subscriber sharing one client.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	client     *redis.Client
}

// Build connects to Redis and returns a publisher plus a subscriber bound to
// the configured consumer group.
func Build(s Settings, logger watermill.LoggerAdapter) (*PubSub, error) {
	if !s.Enabled {
		return nil, errors.New("redis transport is disabled")
	}
	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "create redis publisher")
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, errors.Wrap(err, "create redis subscriber")
	}

	return &PubSub{Publisher: pub, Subscriber: sub, client: client}, nil
}

// EnsureGroupAtTail creates the consumer group for a given stream at the tail ($) if it doesn't exist.
// This prevents a new UI from replaying events of earlier sessions.
func (p *PubSub) EnsureGroupAtTail(ctx context.Context, stream, group string) error {
	err := p.client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		// Ignore BUSYGROUP errors (group already exists)
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create consumer group %s on %s", group, stream)
	}
	log.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}

func (p *PubSub) Close() error {
	var first error
	for _, c := range []interface{ Close() error }{p.Publisher, p.Subscriber, p.client} {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
