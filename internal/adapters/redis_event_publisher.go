package adapters

import (
	"context"
	"encoding/json"

	"github.com/ManYouOriginal/ChatTest/internal/models"

	"github.com/go-redis/redis"
)

// RedisEventPublisher pushes every stored message onto a pub/sub channel for
// external consumers. Subscribers that miss a publish miss it; there is no
// replay.
type RedisEventPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisEventPublisher(client *redis.Client, channel string) *RedisEventPublisher {
	if channel == "" {
		channel = "chat_messages"
	}
	return &RedisEventPublisher{client: client, channel: channel}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, message models.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return p.client.Publish(p.channel, string(data)).Err()
}
