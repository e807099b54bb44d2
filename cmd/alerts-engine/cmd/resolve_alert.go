package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func resolveAlertCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "resolve-alert <alert-id>",
		Short:   "Resolve an active alert by hand",
		Args:    cobra.ExactArgs(1),
		Example: `  alerts-engine resolve-alert 6d9f1b2e-6f0a-4c8e-9a3f-2a1b3c4d5e6f`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.ResolveAlerts(ctx, []string{args[0]}, time.Now().UTC())
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("no active alert with id %s", args[0])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Resolved alert %s.\n", args[0])
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(resolveAlertCmd())
}
