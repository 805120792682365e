package dedup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-hh-autoreply/internal/models"
)

func TestAddSeenAndPersist(t *testing.T) {
	dir := t.TempDir()
	rc, err := NewResponseCache(dir, nil)
	require.NoError(t, err)

	assert.False(t, rc.Seen(1, "100"))
	rc.Add(1, "100", "101")
	assert.True(t, rc.Seen(1, "100"))
	assert.False(t, rc.Seen(2, "100"), "entries are per user")

	reloaded, err := NewResponseCache(dir, nil)
	require.NoError(t, err)
	assert.True(t, reloaded.Seen(1, "101"))
}

func TestFilterKeepsOrder(t *testing.T) {
	rc, err := NewResponseCache(t.TempDir(), nil)
	require.NoError(t, err)
	rc.Add(1, "b")

	out := rc.Filter(1, []models.Vacancy{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)
}

func TestExpiredEntriesAreForgotten(t *testing.T) {
	dir := t.TempDir()
	rc, err := NewResponseCache(dir, nil)
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rc.now = func() time.Time { return start }
	rc.Add(1, "old")

	rc.now = func() time.Time { return start.Add(31 * 24 * time.Hour) }
	assert.False(t, rc.Seen(1, "old"))
}

func TestCorruptFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFile), []byte("{not json"), 0o644))

	rc, err := NewResponseCache(dir, nil)
	require.NoError(t, err)
	assert.False(t, rc.Seen(1, "x"))
}
