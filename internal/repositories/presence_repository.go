package repositories

import (
	"context"
	"database/sql"

	"github.com/ManYouOriginal/ChatTest/internal/models"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id       TEXT PRIMARY KEY,
	nickname TEXT NOT NULL DEFAULT '',
	online   BOOLEAN NOT NULL DEFAULT FALSE
)`

type PresenceRepository struct {
	db *sql.DB
}

func NewPresenceRepository(db *sql.DB) (*PresenceRepository, error) {
	if _, err := db.Exec(createUsersTable); err != nil {
		return nil, err
	}
	return &PresenceRepository{db: db}, nil
}

func (r *PresenceRepository) MarkOnline(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, online) VALUES ($1, TRUE)
		 ON CONFLICT (id) DO UPDATE SET online = TRUE`, userID)
	return err
}

func (r *PresenceRepository) MarkOffline(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET online = FALSE WHERE id = $1`, userID)
	return err
}

func (r *PresenceRepository) SetNickname(ctx context.Context, userID, nickname string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, nickname) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET nickname = EXCLUDED.nickname`, userID, nickname)
	return err
}

func (r *PresenceRepository) Nickname(ctx context.Context, userID string) (string, error) {
	var nickname string
	err := r.db.QueryRowContext(ctx, `SELECT nickname FROM users WHERE id = $1`, userID).Scan(&nickname)
	if err == sql.ErrNoRows || (err == nil && nickname == "") {
		return models.DefaultNickname(userID), nil
	}
	if err != nil {
		return "", err
	}
	return nickname, nil
}

func (r *PresenceRepository) ListOnline(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, nickname FROM users WHERE online`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Nickname); err != nil {
			return nil, err
		}
		if user.Nickname == "" {
			user.Nickname = models.DefaultNickname(user.ID)
		}
		user.Online = true
		users = append(users, user)
	}
	return users, rows.Err()
}
