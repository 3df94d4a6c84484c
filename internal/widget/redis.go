package widget

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"expensesync/internal/core"
)

// RedisSlot keeps the snapshot in Redis for deployments where publisher and
// reader do not share a filesystem. SET replaces the whole value, which
// preserves the old-or-new-never-partial guarantee.
type RedisSlot struct {
	client *redis.Client
	key    string
}

var _ Slot = (*RedisSlot)(nil)

func NewRedisSlot(client *redis.Client, userID string) *RedisSlot {
	return &RedisSlot{
		client: client,
		key:    fmt.Sprintf("%s:%s", Namespace, userID),
	}
}

func (s *RedisSlot) Publish(ctx context.Context, snap core.WidgetSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set widget slot: %w", err)
	}
	return nil
}

func (s *RedisSlot) Load(ctx context.Context) (core.WidgetSnapshot, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return core.EmptyWidgetSnapshot(), false, nil
	}
	if err != nil {
		return core.EmptyWidgetSnapshot(), false, fmt.Errorf("get widget slot: %w", err)
	}
	var snap core.WidgetSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.EmptyWidgetSnapshot(), false, fmt.Errorf("decode widget slot: %w", err)
	}
	return snap, true, nil
}
