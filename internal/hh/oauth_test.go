package hh

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-hh-autoreply/internal/config"
	"go-hh-autoreply/internal/models"
)

func newTestOAuth(t *testing.T, h http.HandlerFunc) *OAuth {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOAuth(config.HHConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURI:  "https://bot.example.com/oauth/callback",
		AuthURL:      "https://hh.ru/oauth/authorize",
		TokenURL:     srv.URL + "/oauth/token",
		UserAgent:    testUA,
		Timeout:      5 * time.Second,
	})
}

func TestAuthURLCarriesState(t *testing.T) {
	o := newTestOAuth(t, func(http.ResponseWriter, *http.Request) {})
	u, err := url.Parse(o.AuthURL("12345"))
	require.NoError(t, err)

	assert.Equal(t, "hh.ru", u.Host)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "12345", q.Get("state"))
	assert.Equal(t, "https://bot.example.com/oauth/callback", q.Get("redirect_uri"))
}

func TestExchange(t *testing.T) {
	o := newTestOAuth(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUA, r.Header.Get("HH-User-Agent"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"acc","token_type":"bearer","refresh_token":"ref","expires_in":1209600}`)
	})

	tok, err := o.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "acc", tok.AccessToken)
	assert.Equal(t, "ref", tok.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), tok.ExpiresAt, time.Minute)
}

func TestRefresh(t *testing.T) {
	o := newTestOAuth(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-ref", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"new-acc","token_type":"bearer","expires_in":3600}`)
	})

	tok, err := o.Refresh(context.Background(), models.Token{AccessToken: "old", RefreshToken: "old-ref"})
	require.NoError(t, err)
	assert.Equal(t, "new-acc", tok.AccessToken)
	assert.Equal(t, "old-ref", tok.RefreshToken, "refresh token kept when not rotated")

	_, err = o.Refresh(context.Background(), models.Token{AccessToken: "x"})
	require.Error(t, err)
}
