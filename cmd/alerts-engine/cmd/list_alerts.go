package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func listAlertsCmd() *cobra.Command {
	var (
		all   bool
		limit int
	)

	c := &cobra.Command{
		Use:   "list-alerts",
		Short: "List alerts, newest first",
		Example: `  alerts-engine list-alerts
  alerts-engine list-alerts --all --limit 200`,
		RunE: func(_ *cobra.Command, _ []string) error {
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

			alerts, err := s.ListAlerts(ctx, !all, limit)
			if err != nil {
				return err
			}
			if len(alerts) == 0 {
				fmt.Println("No alerts found.")
				return nil
			}
			return printAlertsTable(alerts)
		},
	}

	c.Flags().BoolVar(&all, "all", false, "include resolved alerts")
	c.Flags().IntVar(&limit, "limit", 100, "maximum rows to print")

	return c
}

func runsCmd() *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "runs",
		Short: "Show recent alert check runs",
		RunE: func(_ *cobra.Command, _ []string) error {
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

			runs, err := s.ListCheckRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No check runs found.")
				return nil
			}
			return printCheckRunsTable(runs)
		},
	}

	c.Flags().IntVar(&limit, "limit", 20, "maximum rows to print")

	return c
}

func init() {
	rootCmd.AddCommand(listAlertsCmd())
	rootCmd.AddCommand(runsCmd())
}
