package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"go-hh-autoreply/internal/config"
	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"
	"go-hh-autoreply/internal/storage/storagetest"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(context.Background(), NewClient(config.RedisConfig{Address: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		s, _ := newStore(t)
		return s
	})
}

func TestStoreKeyLayout(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, 10, "keyword", storage.Str("golang")))
	require.NoError(t, s.Replace(ctx, 10, []models.Vacancy{{ID: "1"}, {ID: "2"}}))
	_, err := s.Next(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, s.SaveToken(ctx, 10, models.Token{AccessToken: "tok"}))

	require.Equal(t, "golang", mr.HGet("hh:settings:10", "keyword"))
	cursor, err := mr.Get("hh:queue:10:cursor")
	require.NoError(t, err)
	require.Equal(t, "1", cursor)
	items, err := mr.List("hh:queue:10:items")
	require.NoError(t, err)
	require.Len(t, items, 2)
	ok, err := mr.SIsMember("hh:users:authorized", "10")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), NewClient(config.RedisConfig{Address: addr}))
	require.Error(t, err)
}
