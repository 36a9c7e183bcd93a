package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// MatchBus is the change-notification channel for match documents. Every
// writer publishes the match id after a successful write; subscribers re-read
// the document and react. The bus carries no payload on purpose: the document
// in Mongo is the single source of truth and subscribers must never trust a
// stale in-memory copy.
type MatchBus interface {
	Publish(ctx context.Context, matchID string) error
	Subscribe(ctx context.Context, matchID string) Subscription
}

// Subscription yields one signal per remote change until closed.
type Subscription interface {
	Changes() <-chan struct{}
	Close() error
}

type matchBus struct {
	client *redis.Client
}

// NewMatchBus creates a Redis pub/sub backed match bus.
func NewMatchBus(client *redis.Client) MatchBus {
	return &matchBus{client: client}
}

func (b *matchBus) channel(matchID string) string {
	return fmt.Sprintf("match:%s:changes", matchID)
}

func (b *matchBus) Publish(ctx context.Context, matchID string) error {
	return b.client.Publish(ctx, b.channel(matchID), "1").Err()
}

func (b *matchBus) Subscribe(ctx context.Context, matchID string) Subscription {
	pubsub := b.client.Subscribe(ctx, b.channel(matchID))
	sub := &subscription{
		pubsub:  pubsub,
		changes: make(chan struct{}, 8),
	}
	go sub.pump()
	return sub
}

type subscription struct {
	pubsub  *redis.PubSub
	changes chan struct{}
}

func (s *subscription) pump() {
	defer close(s.changes)
	for range s.pubsub.Channel() {
		select {
		case s.changes <- struct{}{}:
		default:
			// A pending signal already covers this change.
		}
	}
}

func (s *subscription) Changes() <-chan struct{} {
	return s.changes
}

func (s *subscription) Close() error {
	return s.pubsub.Close()
}
