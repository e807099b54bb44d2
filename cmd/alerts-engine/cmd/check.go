package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langcorps/alerts-engine/internal/alerts"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single alert check and exit",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := setupLogger(cfg)

	ctx := context.Background()
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	engine := alerts.NewEngine(s, alerts.WithLogger(log))
	sum, err := engine.RunCheck(ctx)
	if err != nil {
		return fmt.Errorf("running alert check: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), sum.String())
	return nil
}
