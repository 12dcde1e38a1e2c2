package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
)

// RedisStore keeps each notification under its own key and maintains the
// user and role feeds as sorted sets scored by creation time. Live
// subscribers are served over pub/sub channels keyed the same way.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func notificationKey(id string) string {
	return fmt.Sprintf("notif:%s", id)
}

func userFeedKey(userID string) string {
	return fmt.Sprintf("feed:user:%s", userID)
}

func roleFeedKey(role string) string {
	return fmt.Sprintf("feed:role:%s", role)
}

func userChannel(userID string) string {
	return fmt.Sprintf("notify:user:%s", userID)
}

func roleChannel(role string) string {
	return fmt.Sprintf("notify:role:%s", role)
}

func (s *RedisStore) Create(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := s.client.Set(ctx, notificationKey(n.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	score := float64(n.CreatedAt.UnixNano())
	if n.UserID != "" {
		if err := s.client.ZAdd(ctx, userFeedKey(n.UserID), redis.Z{Score: score, Member: n.ID}).Err(); err != nil {
			return fmt.Errorf("redis zadd user feed failed: %w", err)
		}
		if err := s.client.Publish(ctx, userChannel(n.UserID), data).Err(); err != nil {
			return fmt.Errorf("redis publish failed: %w", err)
		}
	}
	if n.Role != "" {
		if err := s.client.ZAdd(ctx, roleFeedKey(n.Role), redis.Z{Score: score, Member: n.ID}).Err(); err != nil {
			return fmt.Errorf("redis zadd role feed failed: %w", err)
		}
		if err := s.client.Publish(ctx, roleChannel(n.Role), data).Err(); err != nil {
			return fmt.Errorf("redis publish failed: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	return s.listFeed(ctx, userFeedKey(userID), limit)
}

func (s *RedisStore) ListByRole(ctx context.Context, role string, limit int) ([]domain.Notification, error) {
	return s.listFeed(ctx, roleFeedKey(role), limit)
}

func (s *RedisStore) listFeed(ctx context.Context, feedKey string, limit int) ([]domain.Notification, error) {
	ids, err := s.client.ZRevRange(ctx, feedKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = notificationKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	notifications := make([]domain.Notification, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // entry expired between zrevrange and mget
		}
		var n domain.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("unmarshal notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func (s *RedisStore) MarkRead(ctx context.Context, id string) error {
	data, err := s.client.Get(ctx, notificationKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}

	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unmarshal notification: %w", err)
	}
	n.Read = true

	updated, err := json.Marshal(&n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.client.Set(ctx, notificationKey(id), updated, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) SubscribeUser(ctx context.Context, userID string) (<-chan domain.Notification, error) {
	return s.subscribe(ctx, userChannel(userID))
}

func (s *RedisStore) SubscribeRole(ctx context.Context, role string) (<-chan domain.Notification, error) {
	return s.subscribe(ctx, roleChannel(role))
}

func (s *RedisStore) subscribe(ctx context.Context, channel string) (<-chan domain.Notification, error) {
	pubsub := s.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan domain.Notification)
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var n domain.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
