package ports

import (
	"context"

	"github.com/ManYouOriginal/ChatTest/internal/models"
)

// HistoryStore is an append-only, size-bounded message log per conversation
// key. Append drops the oldest entries beyond the cap (sliding window);
// Range returns retained messages oldest first, an empty slice for a key
// that was never written.
type HistoryStore interface {
	Append(ctx context.Context, chatKey string, message models.Message) error
	Range(ctx context.Context, chatKey string) ([]models.Message, error)
}
