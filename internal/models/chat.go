package models

import "time"

const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

// Envelope is the framing shared by every payload on a websocket connection.
type Envelope struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload,omitempty"`
}

// Message is immutable once created. SenderNickname is resolved lazily at
// read time and never persisted with the message.
type Message struct {
	ID             string    `json:"id"`
	ChatID         string    `json:"chat_id,omitempty"`
	GroupID        string    `json:"group_id,omitempty"`
	SenderID       string    `json:"sender_id"`
	SenderNickname string    `json:"sender_nickname,omitempty"`
	TargetUserID   string    `json:"target_user_id,omitempty"`
	Content        string    `json:"content"`
	ChatType       string    `json:"chat_type"`
	CreatedAt      time.Time `json:"created_at"`
}

type Group struct {
	ID        string    `json:"group_id"`
	Name      string    `json:"name"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	Members   []string  `json:"members,omitempty"`
}
