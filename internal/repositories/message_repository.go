package repositories

import (
	"context"
	"database/sql"

	"github.com/ManYouOriginal/ChatTest/internal/models"
)

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id             TEXT PRIMARY KEY,
	chat_key       TEXT NOT NULL,
	chat_id        TEXT NOT NULL DEFAULT '',
	group_id       TEXT NOT NULL DEFAULT '',
	target_user_id TEXT NOT NULL DEFAULT '',
	sender_id      TEXT NOT NULL,
	content        TEXT NOT NULL,
	chat_type      TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_key ON messages (chat_key, created_at)`

type MessageRepository struct {
	db    *sql.DB
	limit int
}

func NewMessageRepository(db *sql.DB, limit int) (*MessageRepository, error) {
	if limit <= 0 {
		limit = 100
	}
	if _, err := db.Exec(createMessagesTable); err != nil {
		return nil, err
	}
	return &MessageRepository{db: db, limit: limit}, nil
}

func (r *MessageRepository) Append(ctx context.Context, chatKey string, message models.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_key, chat_id, group_id, target_user_id, sender_id, content, chat_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		message.ID, chatKey, message.ChatID, message.GroupID, message.TargetUserID,
		message.SenderID, message.Content, message.ChatType, message.CreatedAt)
	if err != nil {
		return err
	}

	// sliding window: keep only the newest entries for the conversation
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE chat_key = $1 AND id NOT IN (
			SELECT id FROM messages WHERE chat_key = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		)`, chatKey, r.limit)
	return err
}

func (r *MessageRepository) Range(ctx context.Context, chatKey string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, chat_id, group_id, target_user_id, sender_id, content, chat_type, created_at
		 FROM messages WHERE chat_key = $1
		 ORDER BY created_at ASC, id ASC`, chatKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		err := rows.Scan(&message.ID, &message.ChatID, &message.GroupID, &message.TargetUserID,
			&message.SenderID, &message.Content, &message.ChatType, &message.CreatedAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}
