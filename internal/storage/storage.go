// Package storage defines the persistence ports of the bot: the per-user
// settings table, the vacancy queue and the user/credential table.
package storage

import (
	"context"
	"errors"

	"go-hh-autoreply/internal/models"
)

// ErrNotFound is returned when a user record does not exist.
var ErrNotFound = errors.New("not found")

// UpdateFunc computes the new value of a key from its current value. Returning
// nil deletes the key.
type UpdateFunc func(current string, ok bool) *string

// SettingsStore is the per-user key/value table keyed by (user, key).
type SettingsStore interface {
	Get(ctx context.Context, userID int64, key string) (string, bool, error)
	// Set stores value under key; a nil value deletes the key.
	Set(ctx context.Context, userID int64, key string, value *string) error
	// Update performs an atomic read-modify-write of a single key and returns
	// the stored value ("" when deleted).
	Update(ctx context.Context, userID int64, key string, fn UpdateFunc) (string, error)
	All(ctx context.Context, userID int64) (map[string]string, error)
}

// QueueStore keeps one ordered, cursor-addressed list of vacancies per user.
type QueueStore interface {
	// Replace discards any previous queue and stores items with cursor 0.
	Replace(ctx context.Context, userID int64, items []models.Vacancy) error
	// Next returns items[cursor] and advances the cursor. It returns nil when
	// the queue is exhausted or does not exist.
	Next(ctx context.Context, userID int64) (*models.Vacancy, error)
	// Peek returns up to limit items starting at the cursor without advancing it.
	Peek(ctx context.Context, userID int64, limit int) ([]models.Vacancy, error)
	// Cursor reports the cursor and the queue length; ok is false when no queue exists.
	Cursor(ctx context.Context, userID int64) (cursor, total int, ok bool, err error)
	Clear(ctx context.Context, userID int64) error
}

// UserStore keeps the chat address, default resume and credential of each user.
type UserStore interface {
	SaveChat(ctx context.Context, userID, chatID int64) error
	// User returns ErrNotFound for unknown users.
	User(ctx context.Context, userID int64) (*models.User, error)
	// SaveToken stores the credential and leaves the default resume untouched.
	SaveToken(ctx context.Context, userID int64, token models.Token) error
	SetResume(ctx context.Context, userID int64, resumeID string) error
	// Authorized lists users that have a stored credential.
	Authorized(ctx context.Context) ([]int64, error)
}

// Backend bundles the three stores of one storage engine.
type Backend interface {
	SettingsStore
	QueueStore
	UserStore
	Close() error
}

// Str returns a pointer to s, for SettingsStore.Set.
func Str(s string) *string {
	return &s
}

// GetPending returns the field currently awaiting free-text input, "" when idle.
func GetPending(ctx context.Context, s SettingsStore, userID int64) (models.Field, error) {
	v, ok, err := s.Get(ctx, userID, models.KeyPending)
	if err != nil || !ok {
		return "", err
	}
	return models.Field(v), nil
}

// SetPending overwrites the pending marker; an empty field clears it.
func SetPending(ctx context.Context, s SettingsStore, userID int64, field models.Field) error {
	if field == "" {
		return s.Set(ctx, userID, models.KeyPending, nil)
	}
	return s.Set(ctx, userID, models.KeyPending, Str(string(field)))
}
