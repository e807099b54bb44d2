package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/langcorps/alerts-engine/pkg/types"
)

const defaultPoolSize = 10

// entityTables maps entity kinds to their read-view table names. The map is
// the closed set that makes the query templates safe to format.
var entityTables = map[domain.EntityKind]string{
	domain.KindCoordinator: "coordinators",
	domain.KindTeacher:     "teachers",
	domain.KindStudent:     "students",
	domain.KindGroup:       "study_groups",
}

// statusColumns maps status fields to column names.
var statusColumns = map[domain.StatusField]string{
	domain.ProjectStatus:     "project_status",
	domain.SituationalStatus: "situational_status",
}

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// validateAlert rejects programmer errors before any SQL is attempted.
func validateAlert(a *domain.Alert) error {
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown alert kind %q", a.Kind)
	}
	if want := domain.AlertKindEntity[a.Kind]; want != a.EntityKind {
		return fmt.Errorf("alert kind %q applies to %s, not %s", a.Kind, want, a.EntityKind)
	}
	if a.EntityID <= 0 {
		return fmt.Errorf("invalid entity id %d", a.EntityID)
	}
	return nil
}

// CreateAlert inserts a single alert. Returns false with a nil error if an
// identical active alert already exists (the partial unique index wins and
// the insert is a no-op).
func (s *PostgresStore) CreateAlert(ctx context.Context, a *domain.Alert) (bool, error) {
	if err := validateAlert(a); err != nil {
		return false, err
	}

	err := s.pool.QueryRow(ctx, queryCreateAlert,
		a.EntityKind, a.EntityID, a.Kind, a.Details, a.CreatedAt,
	).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating alert: %w", err)
	}
	return true, nil
}

// CreateAlerts inserts a batch of alerts inside one transaction and returns
// the number of rows actually inserted. Rows colliding with an existing
// active alert are skipped. Any other failure aborts the whole batch so the
// caller can fall back to per-row inserts.
func (s *PostgresStore) CreateAlerts(ctx context.Context, alerts []*domain.Alert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning alert batch: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	batch := &pgx.Batch{}
	for _, a := range alerts {
		if err := validateAlert(a); err != nil {
			return 0, err
		}
		batch.Queue(queryCreateAlert, a.EntityKind, a.EntityID, a.Kind, a.Details, a.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)

	var created int
	for _, a := range alerts {
		var id string
		err := results.QueryRow().Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue // duplicate active alert, swallowed for idempotency
		}
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("batch-inserting alert for %s: %w", a.Ref(), err)
		}
		a.ID = id
		created++
	}

	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("closing alert batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing alert batch: %w", err)
	}

	return created, nil
}

// FindActiveAlerts returns the subset of entityIDs that already carry an
// unresolved alert of the given kind.
func (s *PostgresStore) FindActiveAlerts(
	ctx context.Context,
	kind domain.EntityKind,
	entityIDs []int64,
	alertKind domain.AlertKind,
) (map[int64]bool, error) {
	active := make(map[int64]bool, len(entityIDs))
	if len(entityIDs) == 0 {
		return active, nil
	}

	rows, err := s.pool.Query(ctx, queryFindActiveAlerts, kind, alertKind, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("querying active alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning active alert entity: %w", err)
		}
		active[id] = true
	}

	return active, rows.Err()
}

// ActiveAlertsOfKind returns (alert id, entity id) pairs for every
// unresolved alert of the given kind.
func (s *PostgresStore) ActiveAlertsOfKind(
	ctx context.Context,
	kind domain.EntityKind,
	alertKind domain.AlertKind,
) ([]ActiveAlert, error) {
	rows, err := s.pool.Query(ctx, queryActiveAlertsOfKind, kind, alertKind)
	if err != nil {
		return nil, fmt.Errorf("querying alerts of kind %s: %w", alertKind, err)
	}
	defer rows.Close()

	var alerts []ActiveAlert
	for rows.Next() {
		var a ActiveAlert
		if err := rows.Scan(&a.AlertID, &a.EntityID); err != nil {
			return nil, fmt.Errorf("scanning active alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// ResolveAlerts marks the given alerts resolved at the given time. Already
// resolved rows are left untouched. Returns the number of rows transitioned.
func (s *PostgresStore) ResolveAlerts(ctx context.Context, ids []string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx, queryResolveAlerts, ids, at)
	if err != nil {
		return 0, fmt.Errorf("resolving alerts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListAlerts returns alerts newest first, optionally restricted to active ones.
func (s *PostgresStore) ListAlerts(
	ctx context.Context,
	activeOnly bool,
	limit int,
) ([]domain.Alert, error) {
	query := queryListAlertsAll
	if activeOnly {
		query = queryListAlertsActive
	}

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(
			&a.ID, &a.EntityKind, &a.EntityID, &a.Kind, &a.Details,
			&a.CreatedAt, &a.Resolved, &a.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// CountActiveAlertsByKind returns unresolved alert counts grouped by kind.
func (s *PostgresStore) CountActiveAlertsByKind(
	ctx context.Context,
) (map[domain.AlertKind]int, error) {
	rows, err := s.pool.Query(ctx, queryCountActiveByKind)
	if err != nil {
		return nil, fmt.Errorf("counting active alerts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.AlertKind]int)
	for rows.Next() {
		var kind domain.AlertKind
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scanning alert count: %w", err)
		}
		counts[kind] = n
	}

	return counts, rows.Err()
}

// ListEntitiesInStatus returns all entities of the kind whose selected
// status field equals value.
func (s *PostgresStore) ListEntitiesInStatus(
	ctx context.Context,
	kind domain.EntityKind,
	field domain.StatusField,
	value string,
) ([]domain.EntityStatus, error) {
	table, column, err := entityTableColumn(kind, field)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(queryListEntitiesInStatusTmpl, table, column), value)
	if err != nil {
		return nil, fmt.Errorf("querying %s in status %s: %w", table, value, err)
	}
	defer rows.Close()

	var entities []domain.EntityStatus
	for rows.Next() {
		var e domain.EntityStatus
		if err := rows.Scan(&e.ID, &e.ProjectStatus, &e.SituationalStatus, &e.StatusSince); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}

// GetEntityStatus returns the status view of a single entity, or ErrNotFound.
func (s *PostgresStore) GetEntityStatus(
	ctx context.Context,
	kind domain.EntityKind,
	id int64,
) (*domain.EntityStatus, error) {
	table, ok := entityTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	e := &domain.EntityStatus{}
	err := s.pool.QueryRow(ctx, fmt.Sprintf(queryGetEntityStatusTmpl, table), id).Scan(
		&e.ID, &e.ProjectStatus, &e.SituationalStatus, &e.StatusSince,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s %d: %w", kind, id, err)
	}
	return e, nil
}

// FirstEntityID returns the lowest existing id of the kind, or ErrNotFound.
func (s *PostgresStore) FirstEntityID(ctx context.Context, kind domain.EntityKind) (int64, error) {
	table, ok := entityTables[kind]
	if !ok {
		return 0, fmt.Errorf("unknown entity kind %q", kind)
	}

	var id int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(queryFirstEntityIDTmpl, table)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("getting first %s id: %w", kind, err)
	}
	return id, nil
}

// LatestEventTimes returns, per entity, the most recent occurred_at among
// the entity's events of the given types.
func (s *PostgresStore) LatestEventTimes(
	ctx context.Context,
	kind domain.EntityKind,
	eventTypes []string,
) (map[int64]time.Time, error) {
	latest := make(map[int64]time.Time)
	if len(eventTypes) == 0 {
		return latest, nil
	}

	rows, err := s.pool.Query(ctx, queryLatestEventTimes, kind, eventTypes)
	if err != nil {
		return nil, fmt.Errorf("querying latest %s events: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var t time.Time
		if err := rows.Scan(&id, &t); err != nil {
			return nil, fmt.Errorf("scanning latest event time: %w", err)
		}
		latest[id] = t
	}

	return latest, rows.Err()
}

// InsertLogEvent appends one event to the log.
func (s *PostgresStore) InsertLogEvent(ctx context.Context, e *domain.LogEvent) error {
	err := s.pool.QueryRow(ctx, queryInsertLogEvent,
		e.EntityKind, e.EntityID, e.EventType, e.OccurredAt,
		e.Comment, e.FromGroupID, e.ToGroupID,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("inserting log event: %w", err)
	}
	return nil
}

// InsertCheckRun records the start of an alert check and returns its row id.
func (s *PostgresStore) InsertCheckRun(ctx context.Context, runID string) (string, error) {
	var id string
	if err := s.pool.QueryRow(ctx, queryInsertCheckRun, runID).Scan(&id); err != nil {
		return "", fmt.Errorf("inserting check run: %w", err)
	}
	return id, nil
}

// CompleteCheckRun marks a check run as finished with its counters.
func (s *PostgresStore) CompleteCheckRun(
	ctx context.Context,
	id, status, errText string,
	created, resolved int,
) error {
	_, err := s.pool.Exec(ctx, queryCompleteCheckRun, id, status, errText, created, resolved)
	if err != nil {
		return fmt.Errorf("completing check run: %w", err)
	}
	return nil
}

// ListCheckRuns returns the most recent check runs, newest first.
func (s *PostgresStore) ListCheckRuns(ctx context.Context, limit int) ([]domain.CheckRun, error) {
	rows, err := s.pool.Query(ctx, queryListCheckRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("querying check runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.CheckRun
	for rows.Next() {
		var r domain.CheckRun
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.StartedAt, &r.CompletedAt,
			&r.Status, &r.ErrorText, &r.CreatedCount, &r.ResolvedCount,
		); err != nil {
			return nil, fmt.Errorf("scanning check run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

func entityTableColumn(kind domain.EntityKind, field domain.StatusField) (string, string, error) {
	table, ok := entityTables[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown entity kind %q", kind)
	}
	column, ok := statusColumns[field]
	if !ok {
		return "", "", fmt.Errorf("unknown status field %q", field)
	}
	return table, column, nil
}
