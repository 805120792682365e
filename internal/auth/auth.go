// Package auth owns the per-user hh.ru credential: issuing authorization
// links, completing the OAuth callback and keeping access tokens fresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"
)

var (
	ErrNotAuthorized = errors.New("user is not authorized on hh.ru")
	ErrBadState      = errors.New("invalid oauth state")
)

// expirySkew refreshes tokens slightly before they expire.
const expirySkew = time.Minute

// publicAccess is the hh.ru access type of a resume visible to every employer.
const publicAccess = "everyone"

type OAuthFlow interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (models.Token, error)
	Refresh(ctx context.Context, t models.Token) (models.Token, error)
}

type ResumeLister interface {
	Resumes(ctx context.Context, token string) ([]models.Resume, error)
}

type Service struct {
	users   storage.UserStore
	oauth   OAuthFlow
	resumes ResumeLister
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(users storage.UserStore, oauth OAuthFlow, resumes ResumeLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, oauth: oauth, resumes: resumes, logger: logger, now: time.Now}
}

// AuthURL returns the authorization link for user; the callback carries the
// user id back in state.
func (s *Service) AuthURL(userID int64) string {
	return s.oauth.AuthURL(strconv.FormatInt(userID, 10))
}

// Authorized reports whether the user has a stored credential.
func (s *Service) Authorized(ctx context.Context, userID int64) (bool, error) {
	u, err := s.users.User(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Authorized(), nil
}

// AccessToken returns a usable access token, refreshing it when expired.
func (s *Service) AccessToken(ctx context.Context, userID int64) (string, error) {
	u, err := s.users.User(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrNotAuthorized
	}
	if err != nil {
		return "", err
	}
	if !u.Authorized() {
		return "", ErrNotAuthorized
	}

	tok := *u.Token
	if !tok.Expired(s.now().Add(expirySkew)) {
		return tok.AccessToken, nil
	}
	if tok.RefreshToken == "" {
		return "", ErrNotAuthorized
	}

	fresh, err := s.oauth.Refresh(ctx, tok)
	if err != nil {
		return "", fmt.Errorf("token refresh for user %d: %w", userID, err)
	}
	if err := s.users.SaveToken(ctx, userID, fresh); err != nil {
		return "", err
	}
	s.logger.Info("hh token refreshed", "user_id", userID)
	return fresh.AccessToken, nil
}

// Completion is the outcome of an OAuth callback.
type Completion struct {
	UserID  int64
	ChatID  int64
	Resumes []models.Resume
	// Selected is set when a default resume was chosen automatically.
	Selected *models.Resume
}

// Complete exchanges the code, stores the credential and picks a default
// resume when the choice is obvious. A failed resume listing does not undo
// the authorization.
func (s *Service) Complete(ctx context.Context, code, state string) (Completion, error) {
	userID, err := strconv.ParseInt(state, 10, 64)
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %q", ErrBadState, state)
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return Completion{}, err
	}
	if err := s.users.SaveToken(ctx, userID, tok); err != nil {
		return Completion{}, err
	}

	c := Completion{UserID: userID}
	if u, err := s.users.User(ctx, userID); err == nil {
		c.ChatID = u.ChatID
	}

	resumes, err := s.resumes.Resumes(ctx, tok.AccessToken)
	if err != nil {
		s.logger.Warn("listing resumes after authorization failed", "user_id", userID, "error", err)
		return c, nil
	}
	c.Resumes = resumes

	if pick, ok := pickDefault(resumes); ok {
		if err := s.users.SetResume(ctx, userID, pick.ID); err != nil {
			return c, err
		}
		c.Selected = &pick
	}
	return c, nil
}

// pickDefault selects the only resume, or the only public one among several.
func pickDefault(resumes []models.Resume) (models.Resume, bool) {
	if len(resumes) == 1 {
		return resumes[0], true
	}
	var public []models.Resume
	for _, r := range resumes {
		if r.Access == publicAccess {
			public = append(public, r)
		}
	}
	if len(public) == 1 {
		return public[0], true
	}
	return models.Resume{}, false
}

// SetResume records the user's default resume.
func (s *Service) SetResume(ctx context.Context, userID int64, resumeID string) error {
	return s.users.SetResume(ctx, userID, resumeID)
}
