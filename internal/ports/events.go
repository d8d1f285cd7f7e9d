package ports

import (
	"context"

	"github.com/ManYouOriginal/ChatTest/internal/models"
)

// EventPublisher fans stored messages out to interested external consumers.
// Publishing is fire-and-forget; a failure never blocks routing.
type EventPublisher interface {
	Publish(ctx context.Context, message models.Message) error
}
