package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-hh-autoreply/internal/config"
)

func TestTemplateClient(t *testing.T) {
	c := NewTemplateClient("")
	letter, err := c.GenerateCoverLetter(context.Background(), "Go", "Go dev")
	require.NoError(t, err)
	assert.Equal(t, DefaultLetter, letter)

	custom, err := NewTemplateClient("Привет").GenerateCoverLetter(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "Привет", custom)
}

func TestNewPicksProvider(t *testing.T) {
	c, err := New(config.AIConfig{Provider: "template"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &templateClient{}, c)

	c, err = New(config.AIConfig{Provider: "groq", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &groqClient{}, c)

	_, err = New(config.AIConfig{Provider: "gpt-2"}, nil)
	require.Error(t, err)
}

func TestGroqClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req groqRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Contains(t, req.Messages[1].Content, "Писать на Go")
			assert.Contains(t, req.Messages[1].Content, "5 лет Go")
		}

		io.WriteString(w, `{"choices":[{"message":{"content":"\"Здравствуйте! Готов обсудить.\""}}]}`)
	}))
	defer srv.Close()

	c := NewGroqClient("key", "test-model", srv.URL+"/v1", srv.Client(), nil)
	letter, err := c.GenerateCoverLetter(context.Background(), "Писать на Go", "5 лет Go")
	require.NoError(t, err)
	assert.Equal(t, "Здравствуйте! Готов обсудить.", letter)
}

func TestGroqClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`, "429"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"api error", http.StatusOK, `{"error":{"message":"bad model"}}`, "bad model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewGroqClient("key", "", srv.URL, srv.Client(), nil)
			_, err := c.GenerateCoverLetter(context.Background(), "a", "b")
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestCleanLetter(t *testing.T) {
	assert.Equal(t, "Текст", cleanLetter("```text\nТекст\n```"))
	assert.Equal(t, "Текст", cleanLetter("  «Текст» "))
	assert.Equal(t, "Просто текст", cleanLetter("Просто текст"))
}
