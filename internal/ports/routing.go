package ports

import (
	"context"

	"github.com/ManYouOriginal/ChatTest/internal/models"
)

// Conn is the transport handle owned by the registry for the lifetime of a
// connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dispatcher interprets one inbound frame per call with no state between
// calls. Failures are logged inside Dispatch, never surfaced to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, senderID string, frame []byte)
}

// Deliverer is the delivery side of the connection registry. Send reports
// best-effort delivery; false means no live connection or a transport
// failure, and is never retried.
type Deliverer interface {
	Send(userID string, envelope models.Envelope) bool
	Broadcast(envelope models.Envelope)
	IsConnected(userID string) bool
}
