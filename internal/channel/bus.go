// SPDX-License-Identifier: MIT

package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Envelope is one message received from a subscription.
type Envelope struct {
	Channel string
	Payload []byte
}

// Bus publishes and subscribes on the Redis fanout channels.
type Bus struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewBus wraps an existing Redis client.
func NewBus(client *redis.Client, logger zerolog.Logger) *Bus {
	return &Bus{client: client, logger: logger}
}

// Publish JSON-encodes v and publishes it on the named channel.
func (b *Bus) Publish(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a pattern subscription and forwards messages until ctx is
// cancelled. The returned channel is closed when the subscription ends.
func (b *Bus) Subscribe(ctx context.Context, patterns ...string) (<-chan Envelope, error) {
	sub := b.client.PSubscribe(ctx, patterns...)

	// Force the subscription onto the wire before returning so callers
	// never miss messages published right after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %v: %w", patterns, err)
	}

	out := make(chan Envelope, 64)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Envelope{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
