// Package cmd implements the alerts-engine CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/langcorps/alerts-engine/internal/config"
	"github.com/langcorps/alerts-engine/internal/store"
	"github.com/langcorps/alerts-engine/pkg/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "alerts-engine",
		Short: "Alert engine for the language school operations platform",
		Long: "alerts-engine watches coordinators, teachers, students, and study\n" +
			"groups for conditions operators should attend to (overdue leave,\n" +
			"unanswered group offers, stale onboarding) and surfaces them as\n" +
			"alerts, resolving them automatically when the condition clears.",
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
}

func initEnv() {
	viper.SetEnvPrefix("ALERTS")
	viper.AutomaticEnv()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format)
}

// dsn returns the connection string, preferring the ALERTS_DATABASE_URL
// environment variable over the config file.
func dsn(cfg *config.Config) string {
	if url := viper.GetString("database_url"); url != "" {
		return url
	}
	return cfg.Database.DSN()
}

func openStore(ctx context.Context, cfg *config.Config) (*store.PostgresStore, error) {
	s, err := store.NewPostgresStore(ctx, dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return s, nil
}
