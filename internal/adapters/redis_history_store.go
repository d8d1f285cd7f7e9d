package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ManYouOriginal/ChatTest/internal/models"

	"github.com/go-redis/redis"
)

// RedisHistoryStore keeps each conversation as a redis list, trimmed to the
// newest limit entries on every append.
type RedisHistoryStore struct {
	client *redis.Client
	limit  int64
}

func NewRedisHistoryStore(client *redis.Client, limit int) *RedisHistoryStore {
	if limit <= 0 {
		limit = 100
	}
	return &RedisHistoryStore{client: client, limit: int64(limit)}
}

func historyKey(chatKey string) string {
	return "chat:" + chatKey + ":messages"
}

func (s *RedisHistoryStore) Append(ctx context.Context, chatKey string, message models.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	key := historyKey(chatKey)
	if err := s.client.RPush(key, data).Err(); err != nil {
		return err
	}
	return s.client.LTrim(key, -s.limit, -1).Err()
}

func (s *RedisHistoryStore) Range(ctx context.Context, chatKey string) ([]models.Message, error) {
	entries, err := s.client.LRange(historyKey(chatKey), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(entries))
	for _, entry := range entries {
		var message models.Message
		if err := json.Unmarshal([]byte(entry), &message); err != nil {
			return nil, fmt.Errorf("failed to decode stored message: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}
