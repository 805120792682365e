package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres storage backend.
type Repository struct {
	db *pgxpool.Pool
}

func ConnectDB(ctx context.Context, connString string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour

	// Transaction-mode poolers (PgBouncer, Supabase) cannot hold prepared statements.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &Repository{db: pool}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		r.db.Close()
	}
	return nil
}

// ---------------- SETTINGS ----------------

func (r *Repository) Get(ctx context.Context, userID int64, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(ctx, "SELECT value FROM user_settings WHERE user_id = $1 AND key = $2", userID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Repository) Set(ctx context.Context, userID int64, key string, value *string) error {
	if err := setSetting(ctx, r.db, userID, key, value); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func setSetting(ctx context.Context, db querier, userID int64, key string, value *string) error {
	if value == nil {
		_, err := db.Exec(ctx, "DELETE FROM user_settings WHERE user_id = $1 AND key = $2", userID, key)
		return err
	}
	_, err := db.Exec(ctx, `
		INSERT INTO user_settings (user_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, key)
		DO UPDATE SET value = EXCLUDED.value`, userID, key, *value)
	return err
}

// Update serializes writers of one user on the users row, so a toggle on a
// key that does not exist yet cannot race with another insert.
func (r *Repository) Update(ctx context.Context, userID int64, key string, fn storage.UpdateFunc) (string, error) {
	var result string
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "INSERT INTO users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "SELECT 1 FROM users WHERE user_id = $1 FOR UPDATE", userID); err != nil {
			return err
		}

		var current string
		ok := true
		err := tx.QueryRow(ctx, "SELECT value FROM user_settings WHERE user_id = $1 AND key = $2", userID, key).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			ok = false
		} else if err != nil {
			return err
		}

		next := fn(current, ok)
		if next != nil {
			result = *next
		}
		return setSetting(ctx, tx, userID, key, next)
	})
	if err != nil {
		return "", fmt.Errorf("failed to update setting %s: %w", key, err)
	}
	return result, nil
}

func (r *Repository) All(ctx context.Context, userID int64) (map[string]string, error) {
	rows, err := r.db.Query(ctx, "SELECT key, value FROM user_settings WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// ---------------- QUEUE ----------------

func (r *Repository) Replace(ctx context.Context, userID int64, items []models.Vacancy) error {
	if items == nil {
		items = []models.Vacancy{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO queues (user_id, pos, payload)
		VALUES ($1, 0, $2::jsonb)
		ON CONFLICT (user_id)
		DO UPDATE SET pos = 0, payload = EXCLUDED.payload`, userID, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}
	return nil
}

// Next advances the cursor and reads the item in a single statement. The
// WHERE clause keeps the cursor from moving past the end.
func (r *Repository) Next(ctx context.Context, userID int64) (*models.Vacancy, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `
		UPDATE queues SET pos = pos + 1
		WHERE user_id = $1 AND pos < jsonb_array_length(payload)
		RETURNING payload -> (pos - 1)`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to advance queue: %w", err)
	}

	var v models.Vacancy
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode queued vacancy: %w", err)
	}
	return &v, nil
}

func (r *Repository) Peek(ctx context.Context, userID int64, limit int) ([]models.Vacancy, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT elem
		FROM queues, jsonb_array_elements(payload) WITH ORDINALITY AS t(elem, idx)
		WHERE user_id = $1 AND idx > pos
		ORDER BY idx
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to peek queue: %w", err)
	}
	defer rows.Close()

	var out []models.Vacancy
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan queued vacancy: %w", err)
		}
		var v models.Vacancy
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode queued vacancy: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repository) Cursor(ctx context.Context, userID int64) (int, int, bool, error) {
	var cursor, total int
	err := r.db.QueryRow(ctx, "SELECT pos, jsonb_array_length(payload) FROM queues WHERE user_id = $1", userID).Scan(&cursor, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to read queue cursor: %w", err)
	}
	return cursor, total, true, nil
}

func (r *Repository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM queues WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// ---------------- USERS ----------------

func (r *Repository) SaveChat(ctx context.Context, userID, chatID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (user_id, chat_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET chat_id = EXCLUDED.chat_id`, userID, chatID)
	if err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

func (r *Repository) User(ctx context.Context, userID int64) (*models.User, error) {
	var (
		u         = models.User{ID: userID}
		access    *string
		refresh   *string
		expiresAt *time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT chat_id, resume_id, access_token, refresh_token, expires_at
		FROM users WHERE user_id = $1`, userID).
		Scan(&u.ChatID, &u.ResumeID, &access, &refresh, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if access != nil {
		u.Token = &models.Token{AccessToken: *access}
		if refresh != nil {
			u.Token.RefreshToken = *refresh
		}
		if expiresAt != nil {
			u.Token.ExpiresAt = expiresAt.UTC()
		}
	}
	return &u, nil
}

func (r *Repository) SaveToken(ctx context.Context, userID int64, token models.Token) error {
	var expiresAt *time.Time
	if !token.ExpiresAt.IsZero() {
		expiresAt = &token.ExpiresAt
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (user_id, access_token, refresh_token, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET access_token = EXCLUDED.access_token,
		              refresh_token = EXCLUDED.refresh_token,
		              expires_at = EXCLUDED.expires_at`,
		userID, token.AccessToken, token.RefreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (r *Repository) SetResume(ctx context.Context, userID int64, resumeID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (user_id, resume_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET resume_id = EXCLUDED.resume_id`, userID, resumeID)
	if err != nil {
		return fmt.Errorf("failed to set resume: %w", err)
	}
	return nil
}

func (r *Repository) Authorized(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, "SELECT user_id FROM users WHERE coalesce(access_token, '') <> '' ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list authorized users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ storage.Backend = (*Repository)(nil)
