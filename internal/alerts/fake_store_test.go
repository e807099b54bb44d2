package alerts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/langcorps/alerts-engine/internal/store"
	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// testNow is the fixed tick timestamp all hermetic tests run at.
var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * 24 * time.Hour)
}

// quietLogger returns a logger that discards output for tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBase(s store.Store) base {
	return base{store: s, log: quietLogger(), now: testNow}
}

// fakeStore is an in-memory Store for engine and strategy tests. It keeps
// the same observable semantics as the Postgres implementation, including
// the at-most-one-active rule on insert.
type fakeStore struct {
	mu       sync.Mutex
	alerts   []*domain.Alert
	entities map[domain.EntityKind]map[int64]*domain.EntityStatus
	events   []domain.LogEvent
	runs     []domain.CheckRun

	nextAlertID int
	nextEventID int64
	nextRunID   int

	failBatch bool  // forces CreateAlerts to fail so the per-row fallback runs
	readErr   error // injected failure for entity and event reads
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities: make(map[domain.EntityKind]map[int64]*domain.EntityStatus),
	}
}

func (f *fakeStore) addEntity(
	kind domain.EntityKind,
	id int64,
	project, situational string,
	since time.Time,
) {
	f.addEntityNoSince(kind, id, project, situational)
	f.mu.Lock()
	f.entities[kind][id].StatusSince = &since
	f.mu.Unlock()
}

func (f *fakeStore) addEntityNoSince(
	kind domain.EntityKind,
	id int64,
	project, situational string,
) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entities[kind] == nil {
		f.entities[kind] = make(map[int64]*domain.EntityStatus)
	}
	f.entities[kind][id] = &domain.EntityStatus{
		ID:                id,
		ProjectStatus:     project,
		SituationalStatus: situational,
	}
}

func (f *fakeStore) setStatus(kind domain.EntityKind, id int64, field domain.StatusField, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entities[kind][id]
	if field == domain.SituationalStatus {
		e.SituationalStatus = value
	} else {
		e.ProjectStatus = value
	}
}

func (f *fakeStore) removeEntity(kind domain.EntityKind, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entities[kind], id)
}

func (f *fakeStore) addEvent(kind domain.EntityKind, id int64, eventType string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextEventID++
	f.events = append(f.events, domain.LogEvent{
		ID:         f.nextEventID,
		EntityKind: kind,
		EntityID:   id,
		EventType:  eventType,
		OccurredAt: at,
	})
}

// activeAlerts returns the unresolved alerts for one triple, for assertions.
func (f *fakeStore) activeAlerts(kind domain.EntityKind, id int64, alertKind domain.AlertKind) []*domain.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Alert
	for _, a := range f.alerts {
		if !a.Resolved && a.EntityKind == kind && a.EntityID == id && a.Kind == alertKind {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeStore) createLocked(a *domain.Alert) bool {
	for _, existing := range f.alerts {
		if !existing.Resolved &&
			existing.EntityKind == a.EntityKind &&
			existing.EntityID == a.EntityID &&
			existing.Kind == a.Kind {
			return false
		}
	}
	f.nextAlertID++
	stored := *a
	stored.ID = "alert-" + strconv.Itoa(f.nextAlertID)
	a.ID = stored.ID
	f.alerts = append(f.alerts, &stored)
	return true
}

func (f *fakeStore) CreateAlert(_ context.Context, a *domain.Alert) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createLocked(a), nil
}

func (f *fakeStore) CreateAlerts(_ context.Context, alerts []*domain.Alert) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch {
		return 0, errors.New("batch insert failed")
	}
	created := 0
	for _, a := range alerts {
		if f.createLocked(a) {
			created++
		}
	}
	return created, nil
}

func (f *fakeStore) FindActiveAlerts(
	_ context.Context,
	kind domain.EntityKind,
	entityIDs []int64,
	alertKind domain.AlertKind,
) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[int64]bool, len(entityIDs))
	for _, id := range entityIDs {
		wanted[id] = true
	}
	active := make(map[int64]bool)
	for _, a := range f.alerts {
		if !a.Resolved && a.EntityKind == kind && a.Kind == alertKind && wanted[a.EntityID] {
			active[a.EntityID] = true
		}
	}
	return active, nil
}

func (f *fakeStore) ActiveAlertsOfKind(
	_ context.Context,
	kind domain.EntityKind,
	alertKind domain.AlertKind,
) ([]store.ActiveAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ActiveAlert
	for _, a := range f.alerts {
		if !a.Resolved && a.EntityKind == kind && a.Kind == alertKind {
			out = append(out, store.ActiveAlert{AlertID: a.ID, EntityID: a.EntityID})
		}
	}
	return out, nil
}

func (f *fakeStore) ResolveAlerts(_ context.Context, ids []string, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	resolved := 0
	for _, a := range f.alerts {
		if wanted[a.ID] && !a.Resolved {
			a.Resolved = true
			t := at
			a.ResolvedAt = &t
			resolved++
		}
	}
	return resolved, nil
}

func (f *fakeStore) ListAlerts(_ context.Context, activeOnly bool, limit int) ([]domain.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Alert
	for i := len(f.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		a := f.alerts[i]
		if activeOnly && a.Resolved {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeStore) CountActiveAlertsByKind(_ context.Context) (map[domain.AlertKind]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.AlertKind]int)
	for _, a := range f.alerts {
		if !a.Resolved {
			counts[a.Kind]++
		}
	}
	return counts, nil
}

func (f *fakeStore) ListEntitiesInStatus(
	_ context.Context,
	kind domain.EntityKind,
	field domain.StatusField,
	value string,
) ([]domain.EntityStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []domain.EntityStatus
	for _, e := range f.entities[kind] {
		if e.Status(field) == value {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetEntityStatus(
	_ context.Context,
	kind domain.EntityKind,
	id int64,
) (*domain.EntityStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	e, ok := f.entities[kind][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeStore) FirstEntityID(_ context.Context, kind domain.EntityKind) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first int64
	for id := range f.entities[kind] {
		if first == 0 || id < first {
			first = id
		}
	}
	if first == 0 {
		return 0, store.ErrNotFound
	}
	return first, nil
}

func (f *fakeStore) LatestEventTimes(
	_ context.Context,
	kind domain.EntityKind,
	eventTypes []string,
) (map[int64]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	wanted := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		wanted[t] = true
	}
	latest := make(map[int64]time.Time)
	for _, e := range f.events {
		if e.EntityKind != kind || !wanted[e.EventType] {
			continue
		}
		if at, ok := latest[e.EntityID]; !ok || e.OccurredAt.After(at) {
			latest[e.EntityID] = e.OccurredAt
		}
	}
	return latest, nil
}

func (f *fakeStore) InsertLogEvent(_ context.Context, e *domain.LogEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextEventID++
	e.ID = f.nextEventID
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeStore) InsertCheckRun(_ context.Context, runID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRunID++
	id := "run-" + strconv.Itoa(f.nextRunID)
	f.runs = append(f.runs, domain.CheckRun{
		ID:        id,
		RunID:     runID,
		StartedAt: time.Now(),
		Status:    "running",
	})
	return id, nil
}

func (f *fakeStore) CompleteCheckRun(
	_ context.Context,
	id, status, errText string,
	created, resolved int,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.runs {
		if f.runs[i].ID == id {
			now := time.Now()
			f.runs[i].CompletedAt = &now
			f.runs[i].Status = status
			f.runs[i].ErrorText = errText
			f.runs[i].CreatedCount = created
			f.runs[i].ResolvedCount = resolved
		}
	}
	return nil
}

func (f *fakeStore) ListCheckRuns(_ context.Context, limit int) ([]domain.CheckRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CheckRun
	for i := len(f.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.runs[i])
	}
	return out, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Ping(context.Context) error    { return nil }
