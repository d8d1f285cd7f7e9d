package adapters

import (
	"context"

	"github.com/ManYouOriginal/ChatTest/internal/models"

	"github.com/go-redis/redis"
)

const onlineUsersKey = "online_users"

// RedisPresenceStore keeps the online set in a redis set and nicknames in
// per-user hashes. Every operation is a single-key atomic command.
type RedisPresenceStore struct {
	client *redis.Client
}

func NewRedisPresenceStore(client *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{client: client}
}

func userKey(userID string) string {
	return "user:" + userID
}

func (s *RedisPresenceStore) MarkOnline(ctx context.Context, userID string) error {
	return s.client.SAdd(onlineUsersKey, userID).Err()
}

func (s *RedisPresenceStore) MarkOffline(ctx context.Context, userID string) error {
	return s.client.SRem(onlineUsersKey, userID).Err()
}

func (s *RedisPresenceStore) SetNickname(ctx context.Context, userID, nickname string) error {
	return s.client.HSet(userKey(userID), "nickname", nickname).Err()
}

func (s *RedisPresenceStore) Nickname(ctx context.Context, userID string) (string, error) {
	nickname, err := s.client.HGet(userKey(userID), "nickname").Result()
	if err == redis.Nil || (err == nil && nickname == "") {
		return models.DefaultNickname(userID), nil
	}
	if err != nil {
		return "", err
	}
	return nickname, nil
}

func (s *RedisPresenceStore) ListOnline(ctx context.Context) ([]models.User, error) {
	ids, err := s.client.SMembers(onlineUsersKey).Result()
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		nickname, err := s.Nickname(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, models.User{ID: id, Nickname: nickname, Online: true})
	}
	return users, nil
}
