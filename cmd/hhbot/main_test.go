package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommandMasksSecrets(t *testing.T) {
	for _, k := range []string{"TELEGRAM_BOT_TOKEN", "HH_CLIENT_ID", "HH_CLIENT_SECRET", "GROQ_API_KEY", "STORAGE_BACKEND", "DATABASE_URL", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  bot_token: "123:very-secret"
hh:
  client_id: app
  client_secret: hh-secret
storage:
  backend: memory
`), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--config", path})
	require.NoError(t, root.Execute())

	assert.NotContains(t, out.String(), "very-secret")
	assert.NotContains(t, out.String(), "hh-secret")
	assert.Contains(t, out.String(), "client_id: app")
}

func TestAutoReplyRequiresUser(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"autoreply"})
	assert.ErrorContains(t, root.Execute(), "--user is required")
}
