// Package autoreply applies to vacancies on the user's behalf in bounded,
// test-gated batches.
package autoreply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"go-hh-autoreply/internal/metrics"
	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"
)

var (
	ErrNoResume     = errors.New("no default resume selected")
	ErrTestRequired = errors.New("vacancy requires a test")
)

// DefaultMaxReplies bounds one batch when no limit is configured.
const DefaultMaxReplies = 10

// StatusSent marks a successful response in an Outcome.
const StatusSent = "sent"

type Source int

const (
	// SourceSearch runs a fresh search with the user's filters.
	SourceSearch Source = iota
	// SourceQueue takes the unread part of the browse queue.
	SourceQueue
)

func (s Source) String() string {
	if s == SourceQueue {
		return "queue"
	}
	return "search"
}

type Credentials interface {
	AccessToken(ctx context.Context, userID int64) (string, error)
}

type Board interface {
	Search(ctx context.Context, token string, params url.Values) ([]models.Vacancy, error)
	Vacancy(ctx context.Context, token, id string) (models.Vacancy, error)
	Respond(ctx context.Context, token, resumeID, vacancyID, message string) error
	Resume(ctx context.Context, token, id string) (models.Resume, error)
}

type LetterGenerator interface {
	GenerateCoverLetter(ctx context.Context, jobDescription, resumeSummary string) (string, error)
}

// Notifier shows the user each vacancy being applied to.
type Notifier interface {
	NotifyVacancy(ctx context.Context, userID int64, v models.Vacancy) error
}

type FilterSource interface {
	Collect(ctx context.Context, userID int64) (url.Values, error)
}

// SeenSet remembers responses across runs.
type SeenSet interface {
	Filter(userID int64, items []models.Vacancy) []models.Vacancy
	Add(userID int64, vacancyIDs ...string)
}

type Deps struct {
	Credentials Credentials
	Users       storage.UserStore
	Queue       storage.QueueStore
	Filters     FilterSource
	Board       Board
	Letters     LetterGenerator
	// Notifier and Seen are optional.
	Notifier Notifier
	Seen     SeenSet
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Options struct {
	MaxReplies int
	// ResumeSummary overrides the summary built from the hh.ru resume.
	ResumeSummary string
}

type Service struct {
	Deps
	opts Options
}

func NewService(deps Deps, opts Options) *Service {
	if opts.MaxReplies <= 0 {
		opts.MaxReplies = DefaultMaxReplies
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{Deps: deps, opts: opts}
}

type session struct {
	userID   int64
	token    string
	resumeID string
	summary  string
	logger   *slog.Logger
}

func (s *Service) open(ctx context.Context, userID int64) (*session, error) {
	token, err := s.Credentials.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	u, err := s.Users.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.ResumeID == "" {
		return nil, ErrNoResume
	}

	sess := &session{
		userID:   userID,
		token:    token,
		resumeID: u.ResumeID,
		summary:  s.opts.ResumeSummary,
		logger:   s.Logger.With("user_id", userID, "run_id", uuid.NewString()),
	}
	if sess.summary == "" {
		r, err := s.Board.Resume(ctx, token, u.ResumeID)
		if err != nil {
			sess.logger.Warn("resume lookup failed, letter will go without a summary", "resume_id", u.ResumeID, "error", err)
		} else {
			sess.summary = r.Summary()
		}
	}
	return sess, nil
}

func (s *Service) candidates(ctx context.Context, sess *session, src Source) ([]models.Vacancy, error) {
	switch src {
	case SourceQueue:
		// Over-fetch so the seen filter can still fill the batch.
		return s.Queue.Peek(ctx, sess.userID, s.opts.MaxReplies*3)
	default:
		params, err := s.Filters.Collect(ctx, sess.userID)
		if err != nil {
			return nil, err
		}
		return s.Board.Search(ctx, sess.token, params)
	}
}

// Run applies to up to MaxReplies candidates in order. Vacancies that
// require a test are skipped without a record; any other per-candidate
// failure becomes an error outcome and the batch goes on.
func (s *Service) Run(ctx context.Context, userID int64, src Source) ([]models.Outcome, error) {
	sess, err := s.open(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.candidates(ctx, sess, src)
	if err != nil {
		return nil, fmt.Errorf("collecting %s candidates: %w", src, err)
	}
	if s.Seen != nil {
		items = s.Seen.Filter(userID, items)
	}
	if len(items) > s.opts.MaxReplies {
		items = items[:s.opts.MaxReplies]
	}
	sess.logger.Info("auto-reply batch started", "source", src.String(), "candidates", len(items))

	outcomes := make([]models.Outcome, 0, len(items))
	for _, v := range items {
		if v.HasTest {
			s.Metrics.IncOutcome("skipped")
			sess.logger.Info("skipping vacancy with a test", "vacancy_id", v.ID)
			continue
		}

		if s.Notifier != nil {
			if err := s.Notifier.NotifyVacancy(ctx, userID, v); err != nil {
				sess.logger.Warn("vacancy notification failed", "vacancy_id", v.ID, "error", err)
			}
		}

		if err := s.apply(ctx, sess, v); err != nil {
			outcomes = append(outcomes, models.Outcome{VacancyID: v.ID, Error: OutcomeError(err)})
			continue
		}
		outcomes = append(outcomes, models.Outcome{VacancyID: v.ID, Status: StatusSent})
	}

	sess.logger.Info("auto-reply batch finished", "outcomes", len(outcomes))
	return outcomes, nil
}

// RespondOne applies to a single vacancy, e.g. from the browse card.
func (s *Service) RespondOne(ctx context.Context, userID int64, vacancyID string) error {
	sess, err := s.open(ctx, userID)
	if err != nil {
		return err
	}
	v, err := s.Board.Vacancy(ctx, sess.token, vacancyID)
	if err != nil {
		return fmt.Errorf("fetching vacancy %s: %w", vacancyID, err)
	}
	if v.HasTest {
		s.Metrics.IncOutcome("skipped")
		return ErrTestRequired
	}
	return s.apply(ctx, sess, v)
}

// apply generates the letter and submits the response.
func (s *Service) apply(ctx context.Context, sess *session, v models.Vacancy) error {
	letter, err := s.Letters.GenerateCoverLetter(ctx, describe(v), sess.summary)
	if err != nil {
		s.Metrics.IncOutcome("failed")
		sess.logger.Error("cover letter generation failed", "vacancy_id", v.ID, "error", err)
		return &StageError{Stage: "cover letter", Err: err}
	}

	if err := s.Board.Respond(ctx, sess.token, sess.resumeID, v.ID, letter); err != nil {
		s.Metrics.IncOutcome("failed")
		sess.logger.Error("response failed", "vacancy_id", v.ID, "error", err)
		return &StageError{Stage: "respond", Err: err}
	}

	if s.Seen != nil {
		s.Seen.Add(sess.userID, v.ID)
	}
	s.Metrics.IncOutcome("sent")
	sess.logger.Info("response sent", "vacancy_id", v.ID)
	return nil
}

func describe(v models.Vacancy) string {
	desc := v.Description()
	if desc == "" {
		desc = "Описание отсутствует"
	}
	return v.Name + "\n" + desc
}

// StageError tells which step of the per-candidate pipeline failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// OutcomeError is the short, user-safe text of a per-candidate failure.
// Provider bodies stay in the logs.
func OutcomeError(err error) string {
	var r interface{ Reason() string }
	reason := ""
	if errors.As(err, &r) {
		reason = r.Reason()
	}
	var se *StageError
	if errors.As(err, &se) {
		if reason != "" {
			return se.Stage + ": " + reason
		}
		return se.Stage + " failed"
	}
	if reason != "" {
		return reason
	}
	return "failed"
}
