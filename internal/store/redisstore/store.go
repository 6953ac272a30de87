package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MessageFeed is the pub/sub channel carrying inserted chat messages.
const MessageFeed = "chatdesk:messages:inserted"

type Store struct {
	client *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Close() error { return s.client.Close() }

// PublishInserted fans an inserted message row out to all subscribers.
func (s *Store) PublishInserted(ctx context.Context, payload []byte) error {
	return s.client.Publish(ctx, MessageFeed, payload).Err()
}

// SubscribeInserted opens the long-lived feed subscription. The caller owns
// the returned PubSub and must Close it on teardown.
func (s *Store) SubscribeInserted(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, MessageFeed)
}

func resetKey(token string) string { return "pwreset:" + token }

func (s *Store) SetResetToken(ctx context.Context, token string, userID uint64, ttl time.Duration) error {
	return s.client.Set(ctx, resetKey(token), fmt.Sprintf("%d", userID), ttl).Err()
}

func (s *Store) GetResetToken(ctx context.Context, token string) (uint64, error) {
	v, err := s.client.Get(ctx, resetKey(token)).Uint64()
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Store) DeleteResetToken(ctx context.Context, token string) error {
	return s.client.Del(ctx, resetKey(token)).Err()
}
