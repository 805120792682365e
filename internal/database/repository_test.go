package database

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"go-hh-autoreply/internal/storage"
	"go-hh-autoreply/internal/storage/storagetest"
)

func TestRepositoryConformance(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	repo, err := ConnectDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.Migrate(ctx))

	storagetest.Run(t, func(t *testing.T) storage.Backend {
		require.NoError(t, repo.truncate(ctx))
		return repo
	})
}
