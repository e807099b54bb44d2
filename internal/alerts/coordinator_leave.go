package alerts

import (
	"context"
	"fmt"
	"time"

	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// CoordinatorLeaveParams parameterize the coordinator leave strategy. It is
// status-since over project_status = on_leave, kept separate because the
// details line reports the date of the coordinator's latest gone_on_leave
// event rather than status_since.
type CoordinatorLeaveParams struct {
	Period    time.Duration
	AlertKind domain.AlertKind
}

func (p CoordinatorLeaveParams) validate() error {
	if err := validateKinds(domain.KindCoordinator, p.AlertKind); err != nil {
		return err
	}
	if p.Period <= 0 {
		return fmt.Errorf("period must be positive, got %s", p.Period)
	}
	return nil
}

type coordinatorLeaveHandler struct {
	base
	name   string
	params CoordinatorLeaveParams
}

func (h *coordinatorLeaveHandler) Name() string           { return h.name }
func (h *coordinatorLeaveHandler) Kind() domain.AlertKind { return h.params.AlertKind }

func (h *coordinatorLeaveHandler) Detect(ctx context.Context) (int, error) {
	p := h.params

	entities, err := h.store.ListEntitiesInStatus(
		ctx, domain.KindCoordinator, domain.ProjectStatus, domain.StatusOnLeave,
	)
	if err != nil {
		return 0, fmt.Errorf("listing coordinators on leave: %w", err)
	}

	leaveDates, err := h.store.LatestEventTimes(
		ctx, domain.KindCoordinator, []string{domain.EventGoneOnLeave},
	)
	if err != nil {
		return 0, fmt.Errorf("querying gone_on_leave events: %w", err)
	}

	cutoff := h.now.Add(-p.Period)

	var overdue []domain.EntityStatus
	ids := make([]int64, 0, len(entities))
	for _, e := range entities {
		if e.StatusSince == nil || e.StatusSince.After(cutoff) {
			continue
		}
		overdue = append(overdue, e)
		ids = append(ids, e.ID)
	}

	active, err := h.store.FindActiveAlerts(ctx, domain.KindCoordinator, ids, p.AlertKind)
	if err != nil {
		return 0, fmt.Errorf("finding active %s alerts: %w", p.AlertKind, err)
	}

	var candidates []*domain.Alert
	for _, e := range overdue {
		if active[e.ID] {
			continue
		}
		// Prefer the leave event date in the details; fall back to
		// status_since when the log has no leave event.
		since := *e.StatusSince
		if at, ok := leaveDates[e.ID]; ok {
			since = at
		}
		candidates = append(candidates, &domain.Alert{
			EntityKind: domain.KindCoordinator,
			EntityID:   e.ID,
			Kind:       p.AlertKind,
			CreatedAt:  h.now,
			Details: fmt.Sprintf("coordinator %d has been on leave since %s (over %d days)",
				e.ID, since.Format("2006-01-02"), periodDays(p.Period)),
		})
	}

	return h.createAlerts(ctx, candidates), nil
}

func (h *coordinatorLeaveHandler) Resolve(ctx context.Context) (int, error) {
	return h.resolveWhereStatusChanged(
		ctx, domain.KindCoordinator, domain.ProjectStatus,
		domain.StatusOnLeave, h.params.AlertKind,
	)
}
