package database

import (
	"context"
	"fmt"
)

// schema is idempotent; Migrate may run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id       BIGINT PRIMARY KEY,
		chat_id       BIGINT NOT NULL DEFAULT 0,
		resume_id     TEXT NOT NULL DEFAULT '',
		access_token  TEXT,
		refresh_token TEXT,
		expires_at    TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id BIGINT NOT NULL,
		key     TEXT NOT NULL,
		value   TEXT NOT NULL,
		PRIMARY KEY (user_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS queues (
		user_id    BIGINT PRIMARY KEY,
		pos        INTEGER NOT NULL DEFAULT 0,
		payload    JSONB NOT NULL DEFAULT '[]'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the tables the backend needs.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// truncate empties every table. Used by tests.
func (r *Repository) truncate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "TRUNCATE users, user_settings, queues")
	return err
}
