package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/langcorps/alerts-engine/internal/store"
	domain "github.com/langcorps/alerts-engine/pkg/types"
)

func createAlertCmd() *cobra.Command {
	var details string

	c := &cobra.Command{
		Use:   "create-alert <kind>.<id> <alert_kind>",
		Short: "Create an alert for an entity by hand",
		Args:  cobra.ExactArgs(2),
		Example: `  alerts-engine create-alert teacher.42 teacher_no_group_45_days
  alerts-engine create-alert coordinator.7 overdue_on_leave --details "reported by ops"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParseEntityRef(args[0])
			if err != nil {
				return err
			}

			alertKind := domain.AlertKind(args[1])
			if !alertKind.Valid() {
				return fmt.Errorf("unknown alert kind %q", alertKind)
			}
			if want := domain.AlertKindEntity[alertKind]; want != ref.Kind {
				return fmt.Errorf("alert kind %q applies to %s, not %s", alertKind, want, ref.Kind)
			}

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

			if _, err := s.GetEntityStatus(ctx, ref.Kind, ref.ID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%s does not exist", ref.String())
				}
				return err
			}

			a := &domain.Alert{
				EntityKind: ref.Kind,
				EntityID:   ref.ID,
				Kind:       alertKind,
				Details:    details,
				CreatedAt:  time.Now().UTC(),
			}
			created, err := s.CreateAlert(ctx, a)
			if err != nil {
				return err
			}
			if !created {
				return fmt.Errorf("%s already has an active %s alert", ref.String(), alertKind)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created alert %s (%s for %s).\n", a.ID, alertKind, ref.String())
			return nil
		},
	}

	c.Flags().StringVar(&details, "details", "", "free-form alert details")

	return c
}

func init() {
	rootCmd.AddCommand(createAlertCmd())
}
