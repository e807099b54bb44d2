package alerts

import (
	"context"
	"fmt"
	"time"

	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// PendingResponseParams parameterize the pending-response strategy: alert
// when an entity received a trigger event (an offer, a request) more than
// the period ago, no response event followed it, and the entity is still in
// a status consistent with waiting.
type PendingResponseParams struct {
	EntityKind       domain.EntityKind
	TriggerEvent     string
	ResponseEvents   []string
	QualifyingStatus string
	Period           time.Duration
	AlertKind        domain.AlertKind
}

func (p PendingResponseParams) validate() error {
	if err := validateKinds(p.EntityKind, p.AlertKind); err != nil {
		return err
	}
	if !domain.KnownEventType(p.EntityKind, p.TriggerEvent) {
		return fmt.Errorf("unknown %s event type %q", p.EntityKind, p.TriggerEvent)
	}
	if len(p.ResponseEvents) == 0 {
		return fmt.Errorf("at least one response event type is required")
	}
	for _, t := range p.ResponseEvents {
		if !domain.KnownEventType(p.EntityKind, t) {
			return fmt.Errorf("unknown %s event type %q", p.EntityKind, t)
		}
	}
	if p.QualifyingStatus == "" {
		return fmt.Errorf("qualifying status is required")
	}
	if p.Period <= 0 {
		return fmt.Errorf("period must be positive, got %s", p.Period)
	}
	return nil
}

type pendingResponseHandler struct {
	base
	name   string
	params PendingResponseParams
}

func (h *pendingResponseHandler) Name() string           { return h.name }
func (h *pendingResponseHandler) Kind() domain.AlertKind { return h.params.AlertKind }

// overdueEntities computes the set of entities whose latest trigger event is
// older than the period, unanswered, and whose status still qualifies.
// Detect and Resolve share this so resolution closes exactly the alerts
// whose entity left the set.
func (h *pendingResponseHandler) overdueEntities(ctx context.Context) (map[int64]time.Time, error) {
	p := h.params

	triggers, err := h.store.LatestEventTimes(ctx, p.EntityKind, []string{p.TriggerEvent})
	if err != nil {
		return nil, fmt.Errorf("querying latest %s events: %w", p.TriggerEvent, err)
	}
	if len(triggers) == 0 {
		return nil, nil
	}

	responses, err := h.store.LatestEventTimes(ctx, p.EntityKind, p.ResponseEvents)
	if err != nil {
		return nil, fmt.Errorf("querying response events: %w", err)
	}

	qualifying, err := h.store.ListEntitiesInStatus(
		ctx, p.EntityKind, domain.ProjectStatus, p.QualifyingStatus,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s in status %s: %w", p.EntityKind, p.QualifyingStatus, err)
	}
	inStatus := make(map[int64]bool, len(qualifying))
	for _, e := range qualifying {
		inStatus[e.ID] = true
	}

	cutoff := h.now.Add(-p.Period)

	overdue := make(map[int64]time.Time)
	for id, triggeredAt := range triggers {
		if !inStatus[id] {
			// Moved on by another path.
			continue
		}
		if triggeredAt.After(cutoff) {
			continue
		}
		if respondedAt, ok := responses[id]; ok && respondedAt.After(triggeredAt) {
			continue
		}
		overdue[id] = triggeredAt
	}
	return overdue, nil
}

func (h *pendingResponseHandler) Detect(ctx context.Context) (int, error) {
	p := h.params

	overdue, err := h.overdueEntities(ctx)
	if err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(overdue))
	for id := range overdue {
		ids = append(ids, id)
	}

	active, err := h.store.FindActiveAlerts(ctx, p.EntityKind, ids, p.AlertKind)
	if err != nil {
		return 0, fmt.Errorf("finding active %s alerts: %w", p.AlertKind, err)
	}

	var candidates []*domain.Alert
	for id, triggeredAt := range overdue {
		if active[id] {
			continue
		}
		candidates = append(candidates, &domain.Alert{
			EntityKind: p.EntityKind,
			EntityID:   id,
			Kind:       p.AlertKind,
			CreatedAt:  h.now,
			Details: fmt.Sprintf("%s %d got %s on %s and has not responded (over %d days)",
				p.EntityKind, id, p.TriggerEvent,
				triggeredAt.Format("2006-01-02"), periodDays(p.Period)),
		})
	}

	return h.createAlerts(ctx, candidates), nil
}

func (h *pendingResponseHandler) Resolve(ctx context.Context) (int, error) {
	p := h.params

	overdue, err := h.overdueEntities(ctx)
	if err != nil {
		return 0, err
	}

	active, err := h.store.ActiveAlertsOfKind(ctx, p.EntityKind, p.AlertKind)
	if err != nil {
		return 0, fmt.Errorf("listing active %s alerts: %w", p.AlertKind, err)
	}

	var toClose []string
	for _, a := range active {
		if _, stillOverdue := overdue[a.EntityID]; !stillOverdue {
			toClose = append(toClose, a.AlertID)
		}
	}

	n, err := h.store.ResolveAlerts(ctx, toClose, h.now)
	if err != nil {
		return 0, fmt.Errorf("resolving %s alerts: %w", p.AlertKind, err)
	}
	return n, nil
}
