package alerts

import (
	"context"
	"fmt"
	"time"

	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// StatusSinceParams parameterize the status-since strategy: alert when an
// entity has sat in one status value for longer than the period, measured
// from status_since.
type StatusSinceParams struct {
	EntityKind domain.EntityKind
	Field      domain.StatusField
	Status     string
	Period     time.Duration
	AlertKind  domain.AlertKind
}

func (p StatusSinceParams) validate() error {
	if err := validateKinds(p.EntityKind, p.AlertKind); err != nil {
		return err
	}
	if p.Status == "" {
		return fmt.Errorf("status value is required")
	}
	if p.Period <= 0 {
		return fmt.Errorf("period must be positive, got %s", p.Period)
	}
	return nil
}

type statusSinceHandler struct {
	base
	name   string
	params StatusSinceParams
}

func (h *statusSinceHandler) Name() string           { return h.name }
func (h *statusSinceHandler) Kind() domain.AlertKind { return h.params.AlertKind }

func (h *statusSinceHandler) Detect(ctx context.Context) (int, error) {
	p := h.params

	entities, err := h.store.ListEntitiesInStatus(ctx, p.EntityKind, p.Field, p.Status)
	if err != nil {
		return 0, fmt.Errorf("listing %s in status %s: %w", p.EntityKind, p.Status, err)
	}

	cutoff := h.now.Add(-p.Period)

	var overdue []domain.EntityStatus
	ids := make([]int64, 0, len(entities))
	for _, e := range entities {
		if e.StatusSince == nil {
			// Cannot form details without the date; skip the anomaly.
			continue
		}
		if e.StatusSince.After(cutoff) {
			continue
		}
		overdue = append(overdue, e)
		ids = append(ids, e.ID)
	}

	active, err := h.store.FindActiveAlerts(ctx, p.EntityKind, ids, p.AlertKind)
	if err != nil {
		return 0, fmt.Errorf("finding active %s alerts: %w", p.AlertKind, err)
	}

	var candidates []*domain.Alert
	for _, e := range overdue {
		if active[e.ID] {
			continue
		}
		candidates = append(candidates, &domain.Alert{
			EntityKind: p.EntityKind,
			EntityID:   e.ID,
			Kind:       p.AlertKind,
			CreatedAt:  h.now,
			Details: fmt.Sprintf("%s %d has had %s %q since %s (over %d days)",
				p.EntityKind, e.ID, p.Field, p.Status,
				e.StatusSince.Format("2006-01-02"), periodDays(p.Period)),
		})
	}

	return h.createAlerts(ctx, candidates), nil
}

func (h *statusSinceHandler) Resolve(ctx context.Context) (int, error) {
	p := h.params
	return h.resolveWhereStatusChanged(ctx, p.EntityKind, p.Field, p.Status, p.AlertKind)
}
