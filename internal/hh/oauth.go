package hh

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"go-hh-autoreply/internal/config"
	"go-hh-autoreply/internal/models"
)

// OAuth performs the authorization-code flow against hh.ru.
type OAuth struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

func NewOAuth(cfg config.HHConfig) *OAuth {
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewTransport(cfg.UserAgent, nil),
		},
	}
}

// context routes oauth2's token requests through the header-stamping client.
func (o *OAuth) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

// AuthURL is the link the user opens to grant access; state comes back in
// the callback unchanged.
func (o *OAuth) AuthURL(state string) string {
	return o.cfg.AuthCodeURL(state)
}

func (o *OAuth) Exchange(ctx context.Context, code string) (models.Token, error) {
	tok, err := o.cfg.Exchange(o.context(ctx), code)
	if err != nil {
		return models.Token{}, fmt.Errorf("oauth code exchange failed: %w", err)
	}
	return fromOAuth(tok), nil
}

// Refresh trades the refresh token for a new pair.
func (o *OAuth) Refresh(ctx context.Context, t models.Token) (models.Token, error) {
	if t.RefreshToken == "" {
		return models.Token{}, fmt.Errorf("oauth refresh: no refresh token")
	}
	src := o.cfg.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: t.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return models.Token{}, fmt.Errorf("oauth refresh failed: %w", err)
	}
	out := fromOAuth(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = t.RefreshToken
	}
	return out, nil
}

func fromOAuth(t *oauth2.Token) models.Token {
	return models.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}
}
