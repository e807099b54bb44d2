package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/langcorps/alerts-engine/internal/store"
	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// parseAgo parses an operator-friendly relative duration such as
// "3 days", "2 weeks", "36 hours", or "15 minutes".
func parseAgo(s string) (time.Duration, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 2 {
		return 0, fmt.Errorf("want %q, got %q", "<n> days|weeks|hours|minutes", s)
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad count %q in %q", fields[0], s)
	}

	var unit time.Duration
	switch strings.TrimSuffix(fields[1], "s") {
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "hour":
		unit = time.Hour
	case "minute":
		unit = time.Minute
	default:
		return 0, fmt.Errorf("bad unit %q in %q", fields[1], s)
	}

	return time.Duration(n) * unit, nil
}

func createLogCmd(kind domain.EntityKind) *cobra.Command {
	var (
		ago     string
		comment string
	)

	c := &cobra.Command{
		Use:   fmt.Sprintf("create-%s-log <id> <event_type>", kind),
		Short: fmt.Sprintf("Append a backdated log event for a %s", kind),
		Args:  cobra.ExactArgs(2),
		Example: fmt.Sprintf(`  alerts-engine create-%s-log 42 %s --ago "3 weeks"`,
			kind, domain.EventTypesByKind[kind][0]),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("bad %s id %q", kind, args[0])
			}

			eventType := args[1]
			if !domain.KnownEventType(kind, eventType) {
				return fmt.Errorf("unknown %s event type %q (valid: %s)",
					kind, eventType, strings.Join(domain.EventTypesByKind[kind], ", "))
			}

			back, err := parseAgo(ago)
			if err != nil {
				return fmt.Errorf("parsing --ago: %w", err)
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

			if _, err := s.GetEntityStatus(ctx, kind, id); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%s.%d does not exist", kind, id)
				}
				return err
			}

			e := &domain.LogEvent{
				EntityKind: kind,
				EntityID:   id,
				EventType:  eventType,
				OccurredAt: time.Now().UTC().Add(-back),
				Comment:    comment,
			}
			if err := s.InsertLogEvent(ctx, e); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged %s for %s.%d at %s.\n",
				eventType, kind, id, e.OccurredAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	c.Flags().StringVar(&ago, "ago", "0 days", `how far in the past, e.g. "3 weeks"`)
	c.Flags().StringVar(&comment, "comment", "", "free-form comment")

	return c
}

func init() {
	for _, kind := range domain.EntityKinds {
		rootCmd.AddCommand(createLogCmd(kind))
	}
}
