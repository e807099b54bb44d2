// Package alerts implements the alert detection engine: the handler
// contract, the four detection strategies, the declarative catalogue
// binding strategies to parameters, and the periodic orchestrator.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/langcorps/alerts-engine/internal/store"
	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// Summary aggregates the counters of one alert check.
type Summary struct {
	Created  int `json:"created"`
	Resolved int `json:"resolved"`
}

// String renders the operator-facing completion line.
func (s Summary) String() string {
	return fmt.Sprintf("Alert check complete. Created: %d. Resolved: %d.", s.Created, s.Resolved)
}

// Handler is one alert rule. Detect creates alerts for entities whose
// condition holds; Resolve closes alerts whose condition no longer holds.
// Both return how many rows they actually changed. A handler is constructed
// fresh each tick so that every operation shares one notion of "now".
type Handler interface {
	Name() string
	Kind() domain.AlertKind
	Detect(ctx context.Context) (int, error)
	Resolve(ctx context.Context) (int, error)
}

// base carries the per-tick dependencies shared by all strategy handlers.
type base struct {
	store store.Store
	log   *slog.Logger
	now   time.Time
}

// createAlerts inserts candidates as one batch, falling back to per-row
// inserts when the batch fails. Per-row failures are logged with the entity
// reference and swallowed so the tick continues. Rows colliding with an
// existing active alert count as no-ops either way.
func (b *base) createAlerts(ctx context.Context, candidates []*domain.Alert) int {
	if len(candidates) == 0 {
		return 0
	}

	created, err := b.store.CreateAlerts(ctx, candidates)
	if err == nil {
		return created
	}
	b.log.Warn("batch alert insert failed, retrying per row",
		"candidates", len(candidates), "error", err)

	created = 0
	for _, a := range candidates {
		ok, rowErr := b.store.CreateAlert(ctx, a)
		if rowErr != nil {
			b.log.Error("creating alert failed",
				"entity", a.Ref().String(), "alert_kind", a.Kind, "error", rowErr)
			continue
		}
		if ok {
			created++
		}
	}
	return created
}

// resolveWhereStatusChanged closes every active alert of alertKind whose
// entity is gone or whose status field moved away from status. This is the
// shared resolve phase of the status-driven strategies.
func (b *base) resolveWhereStatusChanged(
	ctx context.Context,
	kind domain.EntityKind,
	field domain.StatusField,
	status string,
	alertKind domain.AlertKind,
) (int, error) {
	active, err := b.store.ActiveAlertsOfKind(ctx, kind, alertKind)
	if err != nil {
		return 0, fmt.Errorf("listing active %s alerts: %w", alertKind, err)
	}

	var toClose []string
	for _, a := range active {
		e, err := b.store.GetEntityStatus(ctx, kind, a.EntityID)
		if errors.Is(err, store.ErrNotFound) {
			// Entity is gone, the trigger cannot hold.
			toClose = append(toClose, a.AlertID)
			continue
		}
		if err != nil {
			b.log.Error("looking up entity for resolve failed",
				"entity_kind", kind, "entity_id", a.EntityID, "error", err)
			continue
		}
		if e.Status(field) != status {
			toClose = append(toClose, a.AlertID)
		}
	}

	n, err := b.store.ResolveAlerts(ctx, toClose, b.now)
	if err != nil {
		return 0, fmt.Errorf("resolving %s alerts: %w", alertKind, err)
	}
	return n, nil
}

func periodDays(d time.Duration) int {
	return int(d.Hours() / 24)
}

// validateKinds rejects the programmer errors every strategy shares:
// unknown kinds, or an alert kind bound to the wrong entity kind.
func validateKinds(entityKind domain.EntityKind, alertKind domain.AlertKind) error {
	if !entityKind.Valid() {
		return fmt.Errorf("unknown entity kind %q", entityKind)
	}
	if !alertKind.Valid() {
		return fmt.Errorf("unknown alert kind %q", alertKind)
	}
	if want := domain.AlertKindEntity[alertKind]; want != entityKind {
		return fmt.Errorf("alert kind %q applies to %s, not %s", alertKind, want, entityKind)
	}
	return nil
}
