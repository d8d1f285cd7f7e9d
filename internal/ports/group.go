package ports

import (
	"context"
	"errors"

	"github.com/ManYouOriginal/ChatTest/internal/models"
)

var ErrGroupNotFound = errors.New("group not found")

// GroupDirectory keeps the bidirectional group membership index. Both sides
// of the index are updated together by every mutation.
type GroupDirectory interface {
	// CreateGroup generates a fresh group id and adds the creator to the
	// member set if absent.
	CreateGroup(ctx context.Context, name, creatorID string, memberIDs []string) (string, error)
	AddMember(ctx context.Context, groupID, userID string) error
	MembersOf(ctx context.Context, groupID string) ([]string, error)
	GroupsOf(ctx context.Context, userID string) ([]string, error)
	// Metadata returns ErrGroupNotFound for an unknown group id.
	Metadata(ctx context.Context, groupID string) (*models.Group, error)
}
