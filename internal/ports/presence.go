package ports

import (
	"context"

	"github.com/ManYouOriginal/ChatTest/internal/models"
)

// PresenceStore holds the online set and the nickname directory. Operations
// are per-key atomic in the backing store; no cross-key transactions are
// assumed anywhere in the core.
type PresenceStore interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
	SetNickname(ctx context.Context, userID, nickname string) error
	Nickname(ctx context.Context, userID string) (string, error)
	ListOnline(ctx context.Context) ([]models.User, error)
}
