// Package scheduler runs auto-reply periodically for every authorized user.
// It assumes a single bot process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"go-hh-autoreply/internal/auth"
	"go-hh-autoreply/internal/autoreply"
	"go-hh-autoreply/internal/models"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Users interface {
	Authorized(ctx context.Context) ([]int64, error)
}

type Runner interface {
	Run(ctx context.Context, userID int64, src autoreply.Source) ([]models.Outcome, error)
}

type Reporter interface {
	NotifyOutcomes(ctx context.Context, userID int64, outcomes []models.Outcome) error
}

// Summary counts one pass over all users.
type Summary struct {
	Users   int
	Sent    int
	Failed  int
	Skipped int
}

type Scheduler struct {
	users    Users
	runner   Runner
	reporter Reporter
	logger   *slog.Logger
	schedule string
	// UserTimeout bounds one user's run.
	UserTimeout time.Duration
	cron        *cron.Cron
}

// New validates the schedule (standard five fields or a descriptor such as
// "@every 1h"). Reporter may be nil.
func New(schedule string, users Users, runner Runner, reporter Reporter, logger *slog.Logger) (*Scheduler, error) {
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		users:       users,
		runner:      runner,
		reporter:    reporter,
		logger:      logger,
		schedule:    schedule,
		UserTimeout: 5 * time.Minute,
	}, nil
}

// RunOnce performs one auto-reply pass. Users without a default resume are
// skipped; other per-user failures are logged and do not stop the pass.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	ids, err := s.users.Authorized(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list authorized users: %w", err)
	}

	var sum Summary
	for _, id := range ids {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Users++
		outcomes, err := s.runUser(ctx, id)
		switch {
		case errors.Is(err, autoreply.ErrNoResume), errors.Is(err, auth.ErrNotAuthorized):
			sum.Skipped++
			s.logger.Info("scheduled auto-reply skipped", "user_id", id, "reason", err)
			continue
		case err != nil:
			sum.Skipped++
			s.logger.Warn("scheduled auto-reply failed", "user_id", id, "error", err)
			continue
		}

		for _, o := range outcomes {
			if o.OK() {
				sum.Sent++
			} else {
				sum.Failed++
			}
		}
		if s.reporter != nil && len(outcomes) > 0 {
			if err := s.reporter.NotifyOutcomes(ctx, id, outcomes); err != nil {
				s.logger.Warn("auto-reply summary not delivered", "user_id", id, "error", err)
			}
		}
	}
	s.logger.Info("scheduled auto-reply pass finished",
		"users", sum.Users, "sent", sum.Sent, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

func (s *Scheduler) runUser(ctx context.Context, userID int64) ([]models.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.UserTimeout)
	defer cancel()
	return s.runner.Run(ctx, userID, autoreply.SourceSearch)
}

// Start runs passes on schedule until ctx is done. Overlapping passes are
// skipped.
func (s *Scheduler) Start(ctx context.Context) {
	logger := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	// Validated in New.
	_, _ = s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled auto-reply pass failed", "error", err)
		}
	})
	s.cron.Start()
	s.logger.Info("auto-reply scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.logger.Info("auto-reply scheduler stopped")
	}()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
