// Package dedup remembers which vacancies a user already responded to, so a
// scheduled auto-reply run does not apply twice.
package dedup

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go-hh-autoreply/internal/models"
)

const (
	cacheFile = "responded.json"
	// retention is how long a response is remembered.
	retention = 30 * 24 * time.Hour
)

type seenEntry struct {
	Key       string `json:"key"`
	Timestamp int64  `json:"timestamp"`
}

type ResponseCache struct {
	mu       sync.Mutex
	filePath string
	seen     map[string]int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewResponseCache creates or loads the cache stored in cacheDir.
func NewResponseCache(cacheDir string, logger *slog.Logger) (*ResponseCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	rc := &ResponseCache{
		filePath: filepath.Join(cacheDir, cacheFile),
		seen:     make(map[string]int64),
		logger:   logger,
		now:      time.Now,
	}
	rc.load()
	return rc, nil
}

func key(userID int64, vacancyID string) string {
	return fmt.Sprintf("%d:%s", userID, vacancyID)
}

// Seen reports whether user already responded to vacancyID.
func (rc *ResponseCache) Seen(userID int64, vacancyID string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	ts, ok := rc.seen[key(userID, vacancyID)]
	return ok && rc.fresh(ts)
}

func (rc *ResponseCache) fresh(ts int64) bool {
	return ts > rc.now().Add(-retention).UnixMilli()
}

// Add records responses and persists the cache when it changed.
func (rc *ResponseCache) Add(userID int64, vacancyIDs ...string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := rc.now().UnixMilli()
	changed := false
	for _, id := range vacancyIDs {
		k := key(userID, id)
		if ts, ok := rc.seen[k]; !ok || !rc.fresh(ts) {
			rc.seen[k] = now
			changed = true
		}
	}
	if changed {
		rc.save()
	}
}

// Filter drops vacancies the user already responded to, keeping order.
func (rc *ResponseCache) Filter(userID int64, items []models.Vacancy) []models.Vacancy {
	out := make([]models.Vacancy, 0, len(items))
	for _, v := range items {
		if !rc.Seen(userID, v.ID) {
			out = append(out, v)
		}
	}
	return out
}

// load reads the cache from disk, dropping expired entries.
func (rc *ResponseCache) load() {
	data, err := os.ReadFile(rc.filePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			rc.logger.Warn("failed to read response cache", "path", rc.filePath, "error", err)
		}
		return
	}

	var entries []seenEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		rc.logger.Warn("failed to parse response cache", "path", rc.filePath, "error", err)
		return
	}

	loaded := 0
	for _, e := range entries {
		if rc.fresh(e.Timestamp) {
			rc.seen[e.Key] = e.Timestamp
			loaded++
		}
	}
	rc.logger.Info("response cache loaded", "entries", loaded, "expired", len(entries)-loaded)
}

// save writes the current cache to disk. Caller holds mu.
func (rc *ResponseCache) save() {
	entries := make([]seenEntry, 0, len(rc.seen))
	for k, ts := range rc.seen {
		if rc.fresh(ts) {
			entries = append(entries, seenEntry{Key: k, Timestamp: ts})
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		rc.logger.Warn("failed to marshal response cache", "error", err)
		return
	}
	tmp := rc.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		rc.logger.Warn("failed to write response cache", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, rc.filePath); err != nil {
		rc.logger.Warn("failed to replace response cache", "path", rc.filePath, "error", err)
	}
}
