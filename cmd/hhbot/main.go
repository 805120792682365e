package main

import (
	"os"

	"github.com/spf13/cobra"

	"go-hh-autoreply/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hhbot",
		Short:         "Telegram bot that searches hh.ru and responds to vacancies",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", config.DefaultPath, "Config file path (optional).")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAutoReplyCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newLetterCmd())
	cmd.AddCommand(newConfigCmd())
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
