package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/healthbook/healthbook/internal/models"
)

// DefaultRedisURL is used when no memory store URL is configured.
const DefaultRedisURL = "redis://localhost:6379/0"

// chatKeyPrefix namespaces conversation logs in the shared Redis keyspace.
const chatKeyPrefix = "chat:"

// RedisManager persists conversation logs as per-user Redis lists, so memory
// survives process restarts. List operations are atomic per key; the
// orchestrator additionally serializes read-modify-write sequences per user.
type RedisManager struct {
	client *redis.Client
}

// NewRedisManager connects to Redis at the given URL (DefaultRedisURL when
// empty) and verifies the connection.
func NewRedisManager(ctx context.Context, url string) (*RedisManager, error) {
	if url == "" {
		url = DefaultRedisURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	slog.Debug("Redis conversation memory ready", "addr", opts.Addr, "db", opts.DB)
	return &RedisManager{client: client}, nil
}

// Append adds a turn to the user's list.
func (m *RedisManager) Append(ctx context.Context, userID string, turn models.Turn) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	if err := m.client.RPush(ctx, chatKeyPrefix+userID, data).Err(); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Recent returns the most recent n turns in chronological order.
func (m *RedisManager) Recent(ctx context.Context, userID string, n int) ([]models.Turn, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	raw, err := m.client.LRange(ctx, chatKeyPrefix+userID, int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent turns: %w", err)
	}
	turns := make([]models.Turn, 0, len(raw))
	for _, item := range raw {
		var turn models.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			slog.Warn("skipping undecodable conversation turn", "error", err, "user_id", userID)
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Clear removes the user's list only. Other users' logs and unrelated keys
// in the same Redis instance are untouched.
func (m *RedisManager) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	if err := m.client.Del(ctx, chatKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	slog.Info("conversation memory cleared", "user_id", userID)
	return nil
}

// Close releases the Redis connection.
func (m *RedisManager) Close() error {
	return m.client.Close()
}
