// Package redisstore is the Redis storage backend.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go-hh-autoreply/internal/config"
	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"
)

const (
	keyPrefix        = "hh:"
	authorizedSetKey = keyPrefix + "users:authorized"

	// maxTxRetries bounds the optimistic WATCH loop in Update.
	maxTxRetries = 64
)

func settingsKey(userID int64) string { return fmt.Sprintf("%ssettings:%d", keyPrefix, userID) }
func itemsKey(userID int64) string { return fmt.Sprintf("%squeue:%d:items", keyPrefix, userID) }
func cursorKey(userID int64) string { return fmt.Sprintf("%squeue:%d:cursor", keyPrefix, userID) }
func userKey(userID int64) string { return fmt.Sprintf("%suser:%d", keyPrefix, userID) }

// nextScript returns items[cursor] and bumps the cursor, or nil when the
// queue is missing or exhausted.
var nextScript = redis.NewScript(`
local c = redis.call('GET', KEYS[2])
if not c then
	return false
end
c = tonumber(c)
local n = redis.call('LLEN', KEYS[1])
if c >= n then
	return false
end
local item = redis.call('LINDEX', KEYS[1], c)
redis.call('SET', KEYS[2], c + 1)
return item
`)

// NewClient builds a go-redis client from config.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Store implements storage.Backend on top of a Redis client.
type Store struct {
	rdb *redis.Client
}

// New wraps rdb and checks that the server answers.
func New(ctx context.Context, rdb *redis.Client) (*Store, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s.rdb != nil {
		return s.rdb.Close()
	}
	return nil
}

// ---------------- SETTINGS ----------------

func (s *Store) Get(ctx context.Context, userID int64, key string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, settingsKey(userID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, userID int64, key string, value *string) error {
	var err error
	if value == nil {
		err = s.rdb.HDel(ctx, settingsKey(userID), key).Err()
	} else {
		err = s.rdb.HSet(ctx, settingsKey(userID), key, *value).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, userID int64, key string, fn storage.UpdateFunc) (string, error) {
	hkey := settingsKey(userID)
	var result string

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, hkey, key).Result()
		ok := true
		if errors.Is(err, redis.Nil) {
			ok = false
		} else if err != nil {
			return err
		}

		next := fn(current, ok)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.HDel(ctx, hkey, key)
				return nil
			}
			pipe.HSet(ctx, hkey, key, *next)
			return nil
		})
		if err == nil {
			result = ""
			if next != nil {
				result = *next
			}
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, hkey)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return "", fmt.Errorf("failed to update setting %s: %w", key, err)
	}
	return "", fmt.Errorf("failed to update setting %s: too much contention", key)
}

func (s *Store) All(ctx context.Context, userID int64) (map[string]string, error) {
	out, err := s.rdb.HGetAll(ctx, settingsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return out, nil
}

// ---------------- QUEUE ----------------

func (s *Store) Replace(ctx context.Context, userID int64, items []models.Vacancy) error {
	values := make([]any, 0, len(items))
	for _, v := range items {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode vacancy %s: %w", v.ID, err)
		}
		values = append(values, raw)
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, itemsKey(userID))
		if len(values) > 0 {
			pipe.RPush(ctx, itemsKey(userID), values...)
		}
		pipe.Set(ctx, cursorKey(userID), 0, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}
	return nil
}

func (s *Store) Next(ctx context.Context, userID int64) (*models.Vacancy, error) {
	raw, err := nextScript.Run(ctx, s.rdb, []string{itemsKey(userID), cursorKey(userID)}).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to advance queue: %w", err)
	}
	var v models.Vacancy
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to decode queued vacancy: %w", err)
	}
	return &v, nil
}

func (s *Store) Peek(ctx context.Context, userID int64, limit int) ([]models.Vacancy, error) {
	if limit <= 0 {
		return nil, nil
	}
	cursor, _, ok, err := s.Cursor(ctx, userID)
	if err != nil || !ok {
		return nil, err
	}
	raws, err := s.rdb.LRange(ctx, itemsKey(userID), int64(cursor), int64(cursor+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to peek queue: %w", err)
	}
	out := make([]models.Vacancy, 0, len(raws))
	for _, raw := range raws {
		var v models.Vacancy
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("failed to decode queued vacancy: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) Cursor(ctx context.Context, userID int64) (int, int, bool, error) {
	var (
		cursorCmd *redis.StringCmd
		lenCmd    *redis.IntCmd
	)
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		cursorCmd = pipe.Get(ctx, cursorKey(userID))
		lenCmd = pipe.LLen(ctx, itemsKey(userID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, false, fmt.Errorf("failed to read queue cursor: %w", err)
	}
	cursor, err := cursorCmd.Int()
	if errors.Is(err, redis.Nil) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to read queue cursor: %w", err)
	}
	return cursor, int(lenCmd.Val()), true, nil
}

func (s *Store) Clear(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, itemsKey(userID), cursorKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// ---------------- USERS ----------------

func (s *Store) SaveChat(ctx context.Context, userID, chatID int64) error {
	if err := s.rdb.HSet(ctx, userKey(userID), "chat_id", chatID).Err(); err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

func (s *Store) User(ctx context.Context, userID int64) (*models.User, error) {
	fields, err := s.rdb.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}

	u := &models.User{ID: userID, ResumeID: fields["resume_id"]}
	if raw := fields["chat_id"]; raw != "" {
		u.ChatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse chat id: %w", err)
		}
	}
	if access := fields["access_token"]; access != "" {
		u.Token = &models.Token{AccessToken: access, RefreshToken: fields["refresh_token"]}
		if raw := fields["expires_at"]; raw != "" {
			u.Token.ExpiresAt, err = time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return nil, fmt.Errorf("failed to parse token expiry: %w", err)
			}
		}
	}
	return u, nil
}

func (s *Store) SaveToken(ctx context.Context, userID int64, token models.Token) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, userKey(userID),
			"access_token", token.AccessToken,
			"refresh_token", token.RefreshToken,
		)
		if token.ExpiresAt.IsZero() {
			pipe.HDel(ctx, userKey(userID), "expires_at")
		} else {
			pipe.HSet(ctx, userKey(userID), "expires_at", token.ExpiresAt.UTC().Format(time.RFC3339Nano))
		}
		if token.AccessToken != "" {
			pipe.SAdd(ctx, authorizedSetKey, userID)
		} else {
			pipe.SRem(ctx, authorizedSetKey, userID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *Store) SetResume(ctx context.Context, userID int64, resumeID string) error {
	if err := s.rdb.HSet(ctx, userKey(userID), "resume_id", resumeID).Err(); err != nil {
		return fmt.Errorf("failed to set resume: %w", err)
	}
	return nil
}

func (s *Store) Authorized(ctx context.Context) ([]int64, error) {
	members, err := s.rdb.SMembers(ctx, authorizedSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list authorized users: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse user id %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

var _ storage.Backend = (*Store)(nil)
