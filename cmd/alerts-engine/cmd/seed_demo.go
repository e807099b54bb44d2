package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/langcorps/alerts-engine/internal/alerts"
	"github.com/langcorps/alerts-engine/internal/store"
	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// demoAlertKinds picks one representative alert kind per entity kind.
var demoAlertKinds = map[domain.EntityKind]domain.AlertKind{
	domain.KindCoordinator: domain.AlertOverdueOnLeave,
	domain.KindTeacher:     domain.AlertTeacherNoGroup45Days,
	domain.KindStudent:     domain.AlertStudentNoGroup30Days,
	domain.KindGroup:       domain.AlertGroupPendingOverdue,
}

func seedDemoAlertsCmd() *cobra.Command {
	var (
		auto bool
		sync bool
		ids  = map[domain.EntityKind]*int64{
			domain.KindCoordinator: new(int64),
			domain.KindTeacher:     new(int64),
			domain.KindStudent:     new(int64),
			domain.KindGroup:       new(int64),
		}
	)

	c := &cobra.Command{
		Use:   "seed-demo-alerts",
		Short: "Create one demo alert per entity kind",
		Long: "Creates a representative alert for each entity kind, either for\n" +
			"explicitly given entity ids or, with --auto, for the first row of\n" +
			"each entity table. Intended for demos and manual testing.",
		Example: `  alerts-engine seed-demo-alerts --auto
  alerts-engine seed-demo-alerts --teacher-id 42 --student-id 7 --sync`,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			created := 0
			for _, kind := range domain.EntityKinds {
				id := *ids[kind]
				if auto {
					id, err = s.FirstEntityID(ctx, kind)
					if errors.Is(err, store.ErrNotFound) {
						log.Warn("no rows to seed", "entity_kind", kind)
						continue
					}
					if err != nil {
						return err
					}
				}
				if id == 0 {
					continue
				}

				a := &domain.Alert{
					EntityKind: kind,
					EntityID:   id,
					Kind:       demoAlertKinds[kind],
					Details:    fmt.Sprintf("demo alert seeded for %s %d", kind, id),
					CreatedAt:  time.Now().UTC(),
				}
				ok, err := s.CreateAlert(ctx, a)
				if err != nil {
					return fmt.Errorf("seeding alert for %s.%d: %w", kind, id, err)
				}
				if !ok {
					log.Info("alert already active, skipping", "entity_kind", kind, "entity_id", id)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s for %s.%d (%s).\n", a.Kind, kind, id, a.ID)
				created++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d demo alerts.\n", created)

			if sync {
				engine := alerts.NewEngine(s, alerts.WithLogger(log))
				sum, err := engine.RunCheck(ctx)
				if err != nil {
					return fmt.Errorf("running alert check: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), sum.String())
			}
			return nil
		},
	}

	c.Flags().BoolVar(&auto, "auto", false, "seed against the first row of each entity table")
	c.Flags().BoolVar(&sync, "sync", false, "run a full alert check after seeding")
	c.Flags().Int64Var(ids[domain.KindCoordinator], "coordinator-id", 0, "coordinator to seed an alert for")
	c.Flags().Int64Var(ids[domain.KindTeacher], "teacher-id", 0, "teacher to seed an alert for")
	c.Flags().Int64Var(ids[domain.KindStudent], "student-id", 0, "student to seed an alert for")
	c.Flags().Int64Var(ids[domain.KindGroup], "group-id", 0, "study group to seed an alert for")

	return c
}

func init() {
	rootCmd.AddCommand(seedDemoAlertsCmd())
}
