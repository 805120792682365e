package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"go-hh-autoreply/internal/dispatcher"
	"go-hh-autoreply/internal/scheduler"
	"go-hh-autoreply/internal/server"
	"go-hh-autoreply/internal/telegram"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: HTTP server, Telegram updates and the auto-reply schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireBot(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger
	d := dispatcher.New(dispatcher.Deps{
		Settings:  a.store,
		Queue:     a.store,
		Users:     a.store,
		Filters:   a.filters,
		Auth:      a.auth,
		Board:     a.hh,
		AutoReply: a.autoReply,
		Metrics:   a.metrics,
		Logger:    logger.With("component", "dispatcher"),
	})
	bot := telegram.NewBot(a.tg, d, a.metrics, logger.With("component", "telegram"))

	if url := a.cfg.Telegram.WebhookURL; url != "" {
		if err := telegram.RegisterWebhook(a.tg, url, a.cfg.Telegram.WebhookSecret); err != nil {
			return err
		}
		logger.Info("telegram webhook registered", "url", url)
	} else {
		if err := telegram.DropWebhook(a.tg); err != nil {
			return err
		}
		go bot.Poll(ctx, a.tg)
	}

	if expr := a.cfg.AutoReply.Schedule; expr != "" {
		sched, err := scheduler.New(expr, a.store, a.autoReply, a.notifier, logger.With("component", "scheduler"))
		if err != nil {
			return err
		}
		sched.Start(ctx)
	}

	if a.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(a.cfg.Server, a.cfg.Telegram.WebhookSecret, server.Deps{
		Auth:      a.auth,
		Updates:   bot,
		Notifier:  a.notifier,
		AutoReply: a.autoReply,
		Metrics:   a.metrics,
		Logger:    logger.With("component", "http"),
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
