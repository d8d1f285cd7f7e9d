package adapters

import (
	"context"
	"time"

	"github.com/ManYouOriginal/ChatTest/internal/models"
	"github.com/ManYouOriginal/ChatTest/internal/ports"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
)

// RedisGroupDirectory stores group metadata in a hash and both membership
// indices as sets. Duplicate group names are allowed; ids are what identify
// a group.
type RedisGroupDirectory struct {
	client *redis.Client
}

func NewRedisGroupDirectory(client *redis.Client) *RedisGroupDirectory {
	return &RedisGroupDirectory{client: client}
}

func groupKey(groupID string) string {
	return "group:" + groupID
}

func groupMembersKey(groupID string) string {
	return "group:" + groupID + ":members"
}

func userGroupsKey(userID string) string {
	return "user:" + userID + ":groups"
}

func (d *RedisGroupDirectory) CreateGroup(ctx context.Context, name, creatorID string, memberIDs []string) (string, error) {
	groupID := uuid.New().String()

	err := d.client.HMSet(groupKey(groupID), map[string]interface{}{
		"name":       name,
		"creator":    creatorID,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}).Err()
	if err != nil {
		return "", err
	}

	if err := d.AddMember(ctx, groupID, creatorID); err != nil {
		return "", err
	}
	for _, memberID := range memberIDs {
		if err := d.AddMember(ctx, groupID, memberID); err != nil {
			return "", err
		}
	}
	return groupID, nil
}

func (d *RedisGroupDirectory) AddMember(ctx context.Context, groupID, userID string) error {
	if err := d.client.SAdd(groupMembersKey(groupID), userID).Err(); err != nil {
		return err
	}
	return d.client.SAdd(userGroupsKey(userID), groupID).Err()
}

func (d *RedisGroupDirectory) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	return d.client.SMembers(groupMembersKey(groupID)).Result()
}

func (d *RedisGroupDirectory) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	return d.client.SMembers(userGroupsKey(userID)).Result()
}

func (d *RedisGroupDirectory) Metadata(ctx context.Context, groupID string) (*models.Group, error) {
	fields, err := d.client.HGetAll(groupKey(groupID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ports.ErrGroupNotFound
	}

	group := &models.Group{
		ID:      groupID,
		Name:    fields["name"],
		Creator: fields["creator"],
	}
	if createdAt, err := time.Parse(time.RFC3339, fields["created_at"]); err == nil {
		group.CreatedAt = createdAt
	}
	return group, nil
}
