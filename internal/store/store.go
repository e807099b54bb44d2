// Package store defines the datastore abstraction for the alerts engine.
// All business logic depends on the Store interface, never on concrete
// implementations. This enables fake-based testing without a running
// database.
package store

import (
	"context"
	"errors"
	"time"

	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ActiveAlert identifies one unresolved alert and the entity it refers to.
// Used by the resolve phase, which only needs the pair.
type ActiveAlert struct {
	AlertID  string
	EntityID int64
}

// Store defines all data access operations for the alerts engine.
//
// The alerts table is owned by the engine. Entity tables and log_events are
// read views owned by external collaborators; the engine treats them as
// immutable within a single check, except for the operator tooling that
// appends synthetic log events.
type Store interface {
	// Alerts
	CreateAlert(ctx context.Context, a *domain.Alert) (bool, error)
	CreateAlerts(ctx context.Context, alerts []*domain.Alert) (int, error)
	FindActiveAlerts(
		ctx context.Context,
		kind domain.EntityKind,
		entityIDs []int64,
		alertKind domain.AlertKind,
	) (map[int64]bool, error)
	ActiveAlertsOfKind(
		ctx context.Context,
		kind domain.EntityKind,
		alertKind domain.AlertKind,
	) ([]ActiveAlert, error)
	ResolveAlerts(ctx context.Context, ids []string, at time.Time) (int, error)
	ListAlerts(ctx context.Context, activeOnly bool, limit int) ([]domain.Alert, error)
	CountActiveAlertsByKind(ctx context.Context) (map[domain.AlertKind]int, error)

	// Entity read views
	ListEntitiesInStatus(
		ctx context.Context,
		kind domain.EntityKind,
		field domain.StatusField,
		value string,
	) ([]domain.EntityStatus, error)
	GetEntityStatus(ctx context.Context, kind domain.EntityKind, id int64) (*domain.EntityStatus, error)
	FirstEntityID(ctx context.Context, kind domain.EntityKind) (int64, error)

	// Log events
	LatestEventTimes(
		ctx context.Context,
		kind domain.EntityKind,
		eventTypes []string,
	) (map[int64]time.Time, error)
	InsertLogEvent(ctx context.Context, e *domain.LogEvent) error

	// Check runs
	InsertCheckRun(ctx context.Context, runID string) (string, error)
	CompleteCheckRun(ctx context.Context, id, status, errText string, created, resolved int) error
	ListCheckRuns(ctx context.Context, limit int) ([]domain.CheckRun, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
