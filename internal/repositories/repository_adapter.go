package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ManYouOriginal/ChatTest/app/config"

	_ "github.com/lib/pq"
)

// RepositoryAdapter bundles the relational variants of the three store
// ports behind one postgres connection pool.
type RepositoryAdapter struct {
	db *sql.DB

	Presence *PresenceRepository
	Groups   *GroupRepository
	History  *MessageRepository
}

func NewRepositoryAdapter(cfg config.DatabaseConfig, historyLimit int, logger *slog.Logger) (*RepositoryAdapter, error) {
	connection := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)

	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	presence, err := NewPresenceRepository(db)
	if err != nil {
		return nil, err
	}
	groups, err := NewGroupRepository(db)
	if err != nil {
		return nil, err
	}
	history, err := NewMessageRepository(db, historyLimit)
	if err != nil {
		return nil, err
	}

	logger.Info("relational store initialized", "host", cfg.Host, "dbname", cfg.DBName)

	return &RepositoryAdapter{db: db, Presence: presence, Groups: groups, History: history}, nil
}

func (r *RepositoryAdapter) HealthCheck(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *RepositoryAdapter) Close() error {
	return r.db.Close()
}
