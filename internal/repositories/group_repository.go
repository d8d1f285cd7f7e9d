package repositories

import (
	"context"
	"database/sql"

	"github.com/ManYouOriginal/ChatTest/internal/models"
	"github.com/ManYouOriginal/ChatTest/internal/ports"

	"github.com/google/uuid"
)

const createGroupTables = `
CREATE TABLE IF NOT EXISTS groups (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	creator_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL,
	user_id  TEXT NOT NULL,
	UNIQUE (group_id, user_id)
)`

type GroupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) (*GroupRepository, error) {
	if _, err := db.Exec(createGroupTables); err != nil {
		return nil, err
	}
	return &GroupRepository{db: db}, nil
}

func (r *GroupRepository) CreateGroup(ctx context.Context, name, creatorID string, memberIDs []string) (string, error) {
	groupID := uuid.New().String()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, creator_id) VALUES ($1, $2, $3)`,
		groupID, name, creatorID)
	if err != nil {
		return "", err
	}

	if err := r.AddMember(ctx, groupID, creatorID); err != nil {
		return "", err
	}
	for _, memberID := range memberIDs {
		if err := r.AddMember(ctx, groupID, memberID); err != nil {
			return "", err
		}
	}
	return groupID, nil
}

func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, groupID, userID)
	return err
}

func (r *GroupRepository) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	return r.queryIDs(ctx, `SELECT user_id FROM group_members WHERE group_id = $1`, groupID)
}

func (r *GroupRepository) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	return r.queryIDs(ctx, `SELECT group_id FROM group_members WHERE user_id = $1`, userID)
}

func (r *GroupRepository) queryIDs(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *GroupRepository) Metadata(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{ID: groupID}
	err := r.db.QueryRowContext(ctx,
		`SELECT name, creator_id, created_at FROM groups WHERE id = $1`, groupID).
		Scan(&group.Name, &group.Creator, &group.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ports.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return group, nil
}
