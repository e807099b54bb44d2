//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/langcorps/alerts-engine/internal/store"
	domain "github.com/langcorps/alerts-engine/pkg/types"
)

func setupPostgres(t *testing.T) (*store.PostgresStore, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("alerts_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	// Raw pool for seeding entity rows the store only reads.
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	return s, pool
}

func seedEntity(
	t *testing.T,
	pool *pgxpool.Pool,
	table, name, projectStatus, situationalStatus string,
	since time.Time,
) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(),
		fmt.Sprintf(`
			INSERT INTO %s (name, project_status, situational_status, status_since)
			VALUES ($1, $2, $3, $4)
			RETURNING id`, table),
		name, projectStatus, situationalStatus, since,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func testAlert(kind domain.AlertKind, entityID int64) *domain.Alert {
	return &domain.Alert{
		EntityKind: domain.AlertKindEntity[kind],
		EntityID:   entityID,
		Kind:       kind,
		Details:    "in status over threshold",
		CreatedAt:  time.Now().Truncate(time.Microsecond),
	}
}

func TestPostgresStore_Ping(t *testing.T) {
	s, _ := setupPostgres(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestPostgresStore_CreateAlert(t *testing.T) {
	s, _ := setupPostgres(t)
	ctx := context.Background()

	t.Run("insert new alert", func(t *testing.T) {
		a := testAlert(domain.AlertGroupPendingOverdue, 1)
		created, err := s.CreateAlert(ctx, a)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEmpty(t, a.ID)
	})

	t.Run("duplicate active alert is a no-op", func(t *testing.T) {
		a := testAlert(domain.AlertTeacherOverdueOnLeave, 7)
		created, err := s.CreateAlert(ctx, a)
		require.NoError(t, err)
		require.True(t, created)

		dup := testAlert(domain.AlertTeacherOverdueOnLeave, 7)
		created, err = s.CreateAlert(ctx, dup)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Empty(t, dup.ID)
	})

	t.Run("new alert allowed after resolution", func(t *testing.T) {
		a := testAlert(domain.AlertStudentNoGroup30Days, 3)
		created, err := s.CreateAlert(ctx, a)
		require.NoError(t, err)
		require.True(t, created)

		n, err := s.ResolveAlerts(ctx, []string{a.ID}, time.Now())
		require.NoError(t, err)
		require.Equal(t, 1, n)

		again := testAlert(domain.AlertStudentNoGroup30Days, 3)
		created, err = s.CreateAlert(ctx, again)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, a.ID, again.ID)
	})

	t.Run("kind and entity kind must match", func(t *testing.T) {
		a := testAlert(domain.AlertTeacherNoGroup45Days, 1)
		a.EntityKind = domain.KindStudent
		_, err := s.CreateAlert(ctx, a)
		assert.Error(t, err)
	})
}

func TestPostgresStore_CreateAlerts(t *testing.T) {
	s, _ := setupPostgres(t)
	ctx := context.Background()

	// Pre-existing active alert collides with one batch row.
	existing := testAlert(domain.AlertStudentNeedsInterview, 2)
	created, err := s.CreateAlert(ctx, existing)
	require.NoError(t, err)
	require.True(t, created)

	batch := []*domain.Alert{
		testAlert(domain.AlertStudentNeedsInterview, 1),
		testAlert(domain.AlertStudentNeedsInterview, 2),
		testAlert(domain.AlertStudentNeedsInterview, 3),
	}
	n, err := s.CreateAlerts(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEmpty(t, batch[0].ID)
	assert.Empty(t, batch[1].ID)
	assert.NotEmpty(t, batch[2].ID)
}

func TestPostgresStore_FindActiveAlerts(t *testing.T) {
	s, _ := setupPostgres(t)
	ctx := context.Background()

	for _, id := range []int64{10, 20} {
		a := testAlert(domain.AlertTeacherOverdueGroupOffer, id)
		created, err := s.CreateAlert(ctx, a)
		require.NoError(t, err)
		require.True(t, created)
	}

	active, err := s.FindActiveAlerts(ctx, domain.KindTeacher,
		[]int64{10, 20, 30}, domain.AlertTeacherOverdueGroupOffer)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{10: true, 20: true}, active)

	// Other kinds do not count.
	active, err = s.FindActiveAlerts(ctx, domain.KindTeacher,
		[]int64{10, 20}, domain.AlertTeacherOverdueOnLeave)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPostgresStore_ActiveAlertsOfKindAndResolve(t *testing.T) {
	s, _ := setupPostgres(t)
	ctx := context.Background()

	var ids []string
	for _, id := range []int64{1, 2, 3} {
		a := testAlert(domain.AlertGroupAwaitingStart, id)
		created, err := s.CreateAlert(ctx, a)
		require.NoError(t, err)
		require.True(t, created)
		ids = append(ids, a.ID)
	}

	active, err := s.ActiveAlertsOfKind(ctx, domain.KindGroup, domain.AlertGroupAwaitingStart)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, int64(1), active[0].EntityID)

	resolvedAt := time.Now().Truncate(time.Microsecond)
	n, err := s.ResolveAlerts(ctx, ids[:2], resolvedAt)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Already-resolved rows are not counted again.
	n, err = s.ResolveAlerts(ctx, ids, resolvedAt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err = s.ActiveAlertsOfKind(ctx, domain.KindGroup, domain.AlertGroupAwaitingStart)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPostgresStore_ListAlertsAndCounts(t *testing.T) {
	s, _ := setupPostgres(t)
	ctx := context.Background()

	a1 := testAlert(domain.AlertOverdueOnLeave, 1)
	a2 := testAlert(domain.AlertOverdueOnLeave, 2)
	a3 := testAlert(domain.AlertGroupPendingOverdue, 5)
	for _, a := range []*domain.Alert{a1, a2, a3} {
		created, err := s.CreateAlert(ctx, a)
		require.NoError(t, err)
		require.True(t, created)
	}

	_, err := s.ResolveAlerts(ctx, []string{a2.ID}, time.Now())
	require.NoError(t, err)

	all, err := s.ListAlerts(ctx, false, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	activeOnly, err := s.ListAlerts(ctx, true, 10)
	require.NoError(t, err)
	assert.Len(t, activeOnly, 2)
	for _, a := range activeOnly {
		assert.False(t, a.Resolved)
		assert.Nil(t, a.ResolvedAt)
	}

	counts, err := s.CountActiveAlertsByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.AlertOverdueOnLeave])
	assert.Equal(t, 1, counts[domain.AlertGroupPendingOverdue])
}

func TestPostgresStore_EntityReads(t *testing.T) {
	s, pool := setupPostgres(t)
	ctx := context.Background()
	since := time.Now().Add(-20 * 24 * time.Hour).Truncate(time.Microsecond)

	t1 := seedEntity(t, pool, "teachers", "Ada", "on_leave", "", since)
	seedEntity(t, pool, "teachers", "Ben", "working_ok", "", since)
	s1 := seedEntity(t, pool, "students", "Cleo", "studying",
		"needs_interview_to_determine_level", since)

	t.Run("list by project status", func(t *testing.T) {
		entities, err := s.ListEntitiesInStatus(ctx, domain.KindTeacher,
			domain.ProjectStatus, "on_leave")
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, t1, entities[0].ID)
		require.NotNil(t, entities[0].StatusSince)
		assert.WithinDuration(t, since, *entities[0].StatusSince, time.Second)
	})

	t.Run("list by situational status", func(t *testing.T) {
		entities, err := s.ListEntitiesInStatus(ctx, domain.KindStudent,
			domain.SituationalStatus, "needs_interview_to_determine_level")
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, s1, entities[0].ID)
	})

	t.Run("get entity status", func(t *testing.T) {
		e, err := s.GetEntityStatus(ctx, domain.KindTeacher, t1)
		require.NoError(t, err)
		assert.Equal(t, "on_leave", e.ProjectStatus)
	})

	t.Run("get missing entity", func(t *testing.T) {
		_, err := s.GetEntityStatus(ctx, domain.KindTeacher, 9999)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("first entity id", func(t *testing.T) {
		id, err := s.FirstEntityID(ctx, domain.KindTeacher)
		require.NoError(t, err)
		assert.Equal(t, t1, id)

		_, err = s.FirstEntityID(ctx, domain.KindCoordinator)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPostgresStore_LogEvents(t *testing.T) {
	s, _ := setupPostgres(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Microsecond)

	events := []*domain.LogEvent{
		{EntityKind: domain.KindTeacher, EntityID: 1, EventType: "gone_on_leave",
			OccurredAt: base.Add(-30 * 24 * time.Hour)},
		{EntityKind: domain.KindTeacher, EntityID: 1, EventType: "gone_on_leave",
			OccurredAt: base.Add(-10 * 24 * time.Hour)},
		{EntityKind: domain.KindTeacher, EntityID: 2, EventType: "returned_from_leave",
			OccurredAt: base.Add(-5 * 24 * time.Hour)},
		{EntityKind: domain.KindStudent, EntityID: 1, EventType: "gone_on_leave",
			OccurredAt: base},
	}
	for _, e := range events {
		require.NoError(t, s.InsertLogEvent(ctx, e))
		assert.NotZero(t, e.ID)
	}

	latest, err := s.LatestEventTimes(ctx, domain.KindTeacher,
		[]string{"gone_on_leave", "returned_from_leave"})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.WithinDuration(t, base.Add(-10*24*time.Hour), latest[1], time.Second)
	assert.WithinDuration(t, base.Add(-5*24*time.Hour), latest[2], time.Second)

	// Event types not asked for are excluded.
	latest, err = s.LatestEventTimes(ctx, domain.KindTeacher, []string{"gone_on_leave"})
	require.NoError(t, err)
	require.Len(t, latest, 1)
}

func TestPostgresStore_CheckRuns(t *testing.T) {
	s, _ := setupPostgres(t)
	ctx := context.Background()

	id, err := s.InsertCheckRun(ctx, "run-abc")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.CompleteCheckRun(ctx, id, "ok", "", 4, 2))

	runs, err := s.ListCheckRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	r := runs[0]
	assert.Equal(t, "run-abc", r.RunID)
	assert.Equal(t, "ok", r.Status)
	assert.Empty(t, r.ErrorText)
	assert.Equal(t, 4, r.CreatedCount)
	assert.Equal(t, 2, r.ResolvedCount)
	require.NotNil(t, r.CompletedAt)

	failedID, err := s.InsertCheckRun(ctx, "run-def")
	require.NoError(t, err)
	require.NoError(t, s.CompleteCheckRun(ctx, failedID, "error", "store unavailable", 0, 0))

	runs, err = s.ListCheckRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-def", runs[0].RunID)
	assert.Equal(t, "store unavailable", runs[0].ErrorText)
}
