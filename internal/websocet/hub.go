package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ManYouOriginal/ChatTest/internal/models"
	"github.com/ManYouOriginal/ChatTest/internal/ports"

	"github.com/gorilla/websocket"
)

// Gauge tracks the number of live connections. prometheus.Gauge satisfies it.
type Gauge interface {
	Inc()
	Dec()
}

type Client struct {
	Registry *Registry
	Conn     ports.Conn
	Send     chan []byte
	UserID   string

	closed bool // send channel closed; guarded by Registry.mu
	done   bool // lifecycle cleanup ran; guarded by Registry.mu
}

func NewClient(registry *Registry, conn ports.Conn, userID string) *Client {
	return &Client{
		Registry: registry,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		UserID:   userID,
	}
}

// Registry owns every live client connection. The clients map is the only
// process-local shared mutable state in the routing core; every access goes
// through mu, which is never held across a blocking transport write.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client

	presence ports.PresenceStore
	router   ports.Dispatcher
	logger   *slog.Logger
	gauge    Gauge
}

func NewRegistry(presence ports.PresenceStore, logger *slog.Logger) *Registry {
	return &Registry{
		clients:  make(map[string]*Client),
		presence: presence,
		logger:   logger,
	}
}

// SetDispatcher wires the message router in after construction; the router
// needs the registry for delivery, so the two are connected in two phases.
func (r *Registry) SetDispatcher(router ports.Dispatcher) {
	r.router = router
}

func (r *Registry) SetConnectionGauge(gauge Gauge) {
	r.gauge = gauge
}

// Connect installs a client as the single live connection for its user id.
// An existing connection for the same user is evicted and closed first, so
// the registry never holds two connections for one user. Everyone currently
// registered, the new client included, gets a fresh users_online envelope.
func (r *Registry) Connect(ctx context.Context, client *Client) {
	r.mu.Lock()
	old := r.clients[client.UserID]
	if old != nil {
		r.detachLocked(old)
	}
	r.clients[client.UserID] = client
	count := len(r.clients)
	r.mu.Unlock()

	if old != nil {
		old.Conn.Close()
		r.logger.Info("replaced existing connection", "userID", client.UserID)
	} else if r.gauge != nil {
		r.gauge.Inc()
	}

	if err := r.presence.MarkOnline(ctx, client.UserID); err != nil {
		r.logger.Error("failed to mark user online", "userID", client.UserID, "error", err)
	}

	r.broadcastUsers(ctx)
	r.logger.Info("client connected", "userID", client.UserID, "online", count)
}

// Unregister runs the disconnect cleanup for a specific client exactly once,
// no matter how many paths race into it (peer close, forced replacement,
// send-failure eviction). If a newer connection has taken over the user id,
// presence is left untouched.
func (r *Registry) Unregister(ctx context.Context, client *Client) {
	r.mu.Lock()
	if client.done {
		r.mu.Unlock()
		return
	}
	client.done = true
	current, ok := r.clients[client.UserID]
	replaced := ok && current != client
	r.detachLocked(client)
	count := len(r.clients)
	r.mu.Unlock()

	client.Conn.Close()

	if replaced {
		return
	}

	if r.gauge != nil {
		r.gauge.Dec()
	}
	if err := r.presence.MarkOffline(ctx, client.UserID); err != nil {
		r.logger.Error("failed to mark user offline", "userID", client.UserID, "error", err)
	}

	r.broadcastUsers(ctx)
	r.logger.Info("client disconnected", "userID", client.UserID, "online", count)
}

// Disconnect removes the live connection for a user id, if any. Safe to call
// for users that are not connected.
func (r *Registry) Disconnect(ctx context.Context, userID string) {
	r.mu.Lock()
	client := r.clients[userID]
	r.mu.Unlock()

	if client == nil {
		return
	}
	r.Unregister(ctx, client)
}

// Send attempts best-effort delivery to the user's live connection. A false
// return means the user has no connection or the connection could not accept
// the write; in the latter case the stale connection is evicted so future
// sends fail fast. There is no retry.
func (r *Registry) Send(userID string, envelope models.Envelope) bool {
	data, err := json.Marshal(envelope)
	if err != nil {
		r.logger.Error("failed to marshal envelope", "action", envelope.Action, "error", err)
		return false
	}

	r.mu.Lock()
	client, ok := r.clients[userID]
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("user not connected", "userID", userID, "action", envelope.Action)
		return false
	}

	if !r.push(client, data) {
		r.evict(client)
		return false
	}
	return true
}

// Broadcast delivers to a snapshot of the connections registered at call
// time. Clients that connect mid-broadcast may or may not receive it; that
// race is accepted. Failed deliveries are evicted after the loop, never
// mid-iteration.
func (r *Registry) Broadcast(envelope models.Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		r.logger.Error("failed to marshal envelope", "action", envelope.Action, "error", err)
		return
	}

	r.mu.Lock()
	snapshot := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		snapshot = append(snapshot, client)
	}
	r.mu.Unlock()

	var stale []*Client
	for _, client := range snapshot {
		if !r.push(client, data) {
			stale = append(stale, client)
		}
	}
	for _, client := range stale {
		r.evict(client)
	}
}

func (r *Registry) IsConnected(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[userID]
	return ok
}

// push hands a frame to the client's write pump without ever blocking. The
// lock covers the channel send so it cannot race a concurrent close.
func (r *Registry) push(client *Client, data []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client.closed {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

func (r *Registry) evict(client *Client) {
	r.mu.Lock()
	r.detachLocked(client)
	r.mu.Unlock()

	client.Conn.Close()
	r.logger.Warn("evicted unresponsive connection", "userID", client.UserID)
}

func (r *Registry) detachLocked(client *Client) {
	if client.closed {
		return
	}
	client.closed = true
	if current, ok := r.clients[client.UserID]; ok && current == client {
		delete(r.clients, client.UserID)
	}
	close(client.Send)
}

// broadcastUsers pushes the current online list to every registered
// connection after any presence change.
func (r *Registry) broadcastUsers(ctx context.Context) {
	users, err := r.presence.ListOnline(ctx)
	if err != nil {
		r.logger.Error("failed to list online users", "error", err)
		return
	}
	r.Broadcast(models.Envelope{Action: "users_online", Payload: users})
}

// ReadPump feeds every inbound frame into the dispatcher. It exits when the
// peer disconnects or the connection is closed from our side, and always runs
// the disconnect cleanup on the way out.
func (c *Client) ReadPump() {
	defer c.Registry.Unregister(context.Background(), c)

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.Registry.logger.Error("websocket read error", "userID", c.UserID, "error", err)
			}
			break
		}

		if c.Registry.router != nil {
			c.Registry.router.Dispatch(context.Background(), c.UserID, frame)
		}
	}
}

// WritePump drains the send channel onto the transport. The channel is
// closed by the registry on eviction, which terminates the pump.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
