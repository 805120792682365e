package main

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"go-hh-autoreply/internal/ai"
	"go-hh-autoreply/internal/auth"
	"go-hh-autoreply/internal/autoreply"
	"go-hh-autoreply/internal/config"
	"go-hh-autoreply/internal/database"
	"go-hh-autoreply/internal/dedup"
	"go-hh-autoreply/internal/filter"
	"go-hh-autoreply/internal/hh"
	"go-hh-autoreply/internal/logutil"
	"go-hh-autoreply/internal/metrics"
	"go-hh-autoreply/internal/redisstore"
	"go-hh-autoreply/internal/storage"
	"go-hh-autoreply/internal/telegram"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	store     storage.Backend
	hh        *hh.Client
	auth      *auth.Service
	filters   *filter.Accumulator
	autoReply *autoreply.Service

	// Set only when a bot token is configured.
	tg       *tgbotapi.BotAPI
	notifier *telegram.Notifier
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logutil.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	a.store, err = openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	a.hh = hh.NewClient(cfg.HH, a.metrics)
	a.auth = auth.NewService(a.store, hh.NewOAuth(cfg.HH), a.hh, logger.With("component", "auth"))
	a.filters = filter.NewAccumulator(a.store, a.hh, logger.With("component", "filter"))

	letters, err := ai.New(cfg.AI, a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Telegram.BotToken != "" {
		a.tg, err = telegram.NewAPI(cfg.Telegram)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.notifier = telegram.NewNotifier(a.tg, a.store, a.metrics, logger.With("component", "telegram"))
		logger.Info("telegram bot authorized", "username", a.tg.Self.UserName)
	}

	deps := autoreply.Deps{
		Credentials: a.auth,
		Users:       a.store,
		Queue:       a.store,
		Filters:     a.filters,
		Board:       a.hh,
		Letters:     letters,
		Metrics:     a.metrics,
		Logger:      logger.With("component", "autoreply"),
	}
	if a.notifier != nil {
		deps.Notifier = a.notifier
	}
	if path := cfg.AutoReply.SeenCachePath; path != "" {
		seen, err := dedup.NewResponseCache(path, logger.With("component", "dedup"))
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Seen = seen
	}
	a.autoReply = autoreply.NewService(deps, autoreply.Options{
		MaxReplies:    cfg.AutoReply.MaxReplies,
		ResumeSummary: cfg.AutoReply.ResumeSummary,
	})
	return a, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing storage failed", "error", err)
	}
}

// openStorage selects the backend named in the config. Postgres tables are
// created on connect.
func openStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case "postgres":
		repo, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		logger.Info("storage ready", "backend", "postgres")
		return repo, nil
	case "redis":
		store, err := redisstore.New(ctx, redisstore.NewClient(cfg.Redis))
		if err != nil {
			return nil, err
		}
		logger.Info("storage ready", "backend", "redis", "addr", cfg.Redis.Address)
		return store, nil
	case "memory", "":
		logger.Warn("using in-memory storage; state is lost on restart")
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
