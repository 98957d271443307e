package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const channelPrefix = "appointments:"

// Relay carries appointment events between instances over redis pub/sub.
// Every instance, the publishing one included, applies events from its
// subscription, so all hubs patch their views the same way.
type Relay struct {
	client *redis.Client
	hub    *Hub
	logger zerolog.Logger
}

func NewRelay(client *redis.Client, hub *Hub, logger zerolog.Logger) *Relay {
	return &Relay{client: client, hub: hub, logger: logger}
}

// Channel returns the pub/sub channel of tenant.
func Channel(tenant string) string {
	return channelPrefix + tenant
}

// Publish sends ev to every subscribed instance.
func (r *Relay) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, Channel(ev.Tenant), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe listens on every tenant channel. It returns once the subscription
// is confirmed and delivers events to the hub until ctx ends.
func (r *Relay) Subscribe(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to appointment events: %w", err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.handle(msg)
			}
		}
	}()
	r.logger.Info().Str("pattern", channelPrefix+"*").Msg("appointment relay subscribed")
	return nil
}

func (r *Relay) handle(msg *redis.Message) {
	var ev Event
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		r.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("ignoring malformed appointment event")
		return
	}
	if tenant := strings.TrimPrefix(msg.Channel, channelPrefix); ev.Tenant != tenant {
		r.logger.Warn().Str("channel", msg.Channel).Str("tenant", ev.Tenant).Msg("event tenant does not match its channel")
		return
	}
	r.hub.Apply(ev)
}
