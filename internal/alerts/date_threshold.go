package alerts

import (
	"context"
	"fmt"
	"time"

	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// DateThresholdParams parameterize the date-threshold strategy: alert when
// an entity in one status value has had no event of one kind within the
// period, measured from the entity's most recent such event. Entities that
// never had the event are excluded.
type DateThresholdParams struct {
	EntityKind domain.EntityKind
	Field      domain.StatusField
	Status     string
	Event      string
	Period     time.Duration
	AlertKind  domain.AlertKind
}

func (p DateThresholdParams) validate() error {
	if err := validateKinds(p.EntityKind, p.AlertKind); err != nil {
		return err
	}
	if p.Status == "" {
		return fmt.Errorf("status value is required")
	}
	if !domain.KnownEventType(p.EntityKind, p.Event) {
		return fmt.Errorf("unknown %s event type %q", p.EntityKind, p.Event)
	}
	if p.Period <= 0 {
		return fmt.Errorf("period must be positive, got %s", p.Period)
	}
	return nil
}

type dateThresholdHandler struct {
	base
	name   string
	params DateThresholdParams
}

func (h *dateThresholdHandler) Name() string           { return h.name }
func (h *dateThresholdHandler) Kind() domain.AlertKind { return h.params.AlertKind }

func (h *dateThresholdHandler) Detect(ctx context.Context) (int, error) {
	p := h.params

	entities, err := h.store.ListEntitiesInStatus(ctx, p.EntityKind, p.Field, p.Status)
	if err != nil {
		return 0, fmt.Errorf("listing %s in status %s: %w", p.EntityKind, p.Status, err)
	}
	if len(entities) == 0 {
		return 0, nil
	}

	latest, err := h.store.LatestEventTimes(ctx, p.EntityKind, []string{p.Event})
	if err != nil {
		return 0, fmt.Errorf("querying latest %s events: %w", p.Event, err)
	}

	cutoff := h.now.Add(-p.Period)

	var overdue []int64
	eventAt := make(map[int64]time.Time)
	for _, e := range entities {
		at, ok := latest[e.ID]
		if !ok || at.After(cutoff) {
			continue
		}
		overdue = append(overdue, e.ID)
		eventAt[e.ID] = at
	}

	active, err := h.store.FindActiveAlerts(ctx, p.EntityKind, overdue, p.AlertKind)
	if err != nil {
		return 0, fmt.Errorf("finding active %s alerts: %w", p.AlertKind, err)
	}

	var candidates []*domain.Alert
	for _, id := range overdue {
		if active[id] {
			continue
		}
		candidates = append(candidates, &domain.Alert{
			EntityKind: p.EntityKind,
			EntityID:   id,
			Kind:       p.AlertKind,
			CreatedAt:  h.now,
			Details: fmt.Sprintf("%s %d last had %s on %s (over %d days ago)",
				p.EntityKind, id, p.Event,
				eventAt[id].Format("2006-01-02"), periodDays(p.Period)),
		})
	}

	return h.createAlerts(ctx, candidates), nil
}

// Resolve re-checks only the status. An entity that stays in the status
// keeps its alert open even if a later event of the same kind appears.
func (h *dateThresholdHandler) Resolve(ctx context.Context) (int, error) {
	p := h.params
	return h.resolveWhereStatusChanged(ctx, p.EntityKind, p.Field, p.Status, p.AlertKind)
}
