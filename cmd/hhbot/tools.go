package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"go-hh-autoreply/internal/ai"
	"go-hh-autoreply/internal/autoreply"
	"go-hh-autoreply/internal/database"
	"go-hh-autoreply/internal/metrics"
)

func newAutoReplyCmd() *cobra.Command {
	var (
		userID    int64
		fromQueue bool
	)
	cmd := &cobra.Command{
		Use:   "autoreply",
		Short: "Run one auto-reply batch for a user and print the outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return errors.New("--user is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			src := autoreply.SourceSearch
			if fromQueue {
				src = autoreply.SourceQueue
			}
			outcomes, err := a.autoReply.Run(cmd.Context(), userID, src)
			if err != nil {
				return err
			}
			if a.notifier != nil && len(outcomes) > 0 {
				if err := a.notifier.NotifyOutcomes(cmd.Context(), userID, outcomes); err != nil {
					a.logger.Warn("summary not delivered", "error", err)
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(outcomes)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user id.")
	cmd.Flags().BoolVar(&fromQueue, "queue", false, "Take candidates from the browse queue instead of a fresh search.")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			repo, err := database.ConnectDB(cmd.Context(), cfg.Storage.DatabaseURL)
			if err != nil {
				return err
			}
			defer repo.Close()
			if err := repo.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ schema is up to date")
			return nil
		},
	}
}

func newLetterCmd() *cobra.Command {
	var description, resume string
	cmd := &cobra.Command{
		Use:   "letter",
		Short: "Generate a cover letter with the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if resume == "" {
				resume = cfg.AutoReply.ResumeSummary
			}
			client, err := ai.New(cfg.AI, metrics.New())
			if err != nil {
				return err
			}
			letter, err := client.GenerateCoverLetter(cmd.Context(), description, resume)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), letter)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "Golang-разработчик, PostgreSQL, Redis, Kubernetes", "Vacancy description.")
	cmd.Flags().StringVar(&resume, "resume", "", "Resume summary (defaults to autoreply.resume_summary).")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg.Redacted()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

