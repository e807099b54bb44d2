package alerts

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/langcorps/alerts-engine/internal/metrics"
	"github.com/langcorps/alerts-engine/internal/store"
	domain "github.com/langcorps/alerts-engine/pkg/types"
)

// Engine runs every catalogue handler once per tick: detect first, then
// resolve, with per-handler failure isolation.
type Engine struct {
	store     store.Store
	log       *slog.Logger
	clock     func() time.Time
	catalogue []Declaration
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(s store.Store, opts ...EngineOption) *Engine {
	eng := &Engine{
		store:     s,
		log:       slog.Default(),
		clock:     time.Now,
		catalogue: Catalogue(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithClock sets the tick clock. Tests inject a fixed clock here.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithCatalogue replaces the default handler catalogue.
func WithCatalogue(decls []Declaration) EngineOption {
	return func(e *Engine) {
		e.catalogue = decls
	}
}

// RunCheck executes one alert check across the whole catalogue. Handler
// failures are logged and counted but do not abort the tick; the returned
// error is non-nil only when the context is cancelled.
func (e *Engine) RunCheck(ctx context.Context) (Summary, error) {
	start := time.Now()
	defer func() {
		metrics.CheckDuration.Observe(time.Since(start).Seconds())
	}()
	metrics.ChecksTotal.Inc()

	runID := uuid.NewString()
	now := e.clock()
	log := e.log.With("run_id", runID)

	// Run history is best effort; a tick still runs if it cannot be recorded.
	checkID, err := e.store.InsertCheckRun(ctx, runID)
	if err != nil {
		log.Error("recording check run failed", "error", err)
		checkID = ""
	}

	var sum Summary
	for _, d := range e.catalogue {
		if ctx.Err() != nil {
			e.completeRun(ctx, log, checkID, "error", ctx.Err().Error(), sum)
			return sum, ctx.Err()
		}

		hlog := log.With("handler", d.Name)
		h, err := d.build(base{store: e.store, log: hlog, now: now})
		if err != nil {
			hlog.Error("handler construction failed", "error", err)
			metrics.HandlerFailuresTotal.WithLabelValues(d.Name).Inc()
			continue
		}

		created, err := h.Detect(ctx)
		sum.Created += created
		if err != nil {
			hlog.Error("detect failed", "error", err)
			metrics.HandlerFailuresTotal.WithLabelValues(d.Name).Inc()
		}

		resolved, err := h.Resolve(ctx)
		sum.Resolved += resolved
		if err != nil {
			hlog.Error("resolve failed", "error", err)
			metrics.HandlerFailuresTotal.WithLabelValues(d.Name).Inc()
		}
	}

	metrics.AlertsCreatedTotal.Add(float64(sum.Created))
	metrics.AlertsResolvedTotal.Add(float64(sum.Resolved))
	e.syncActiveGauge(ctx, log)

	e.completeRun(ctx, log, checkID, "ok", "", sum)
	log.Info("alert check complete", "created", sum.Created, "resolved", sum.Resolved)

	return sum, nil
}

func (e *Engine) completeRun(
	ctx context.Context,
	log *slog.Logger,
	checkID, status, errText string,
	sum Summary,
) {
	if checkID == "" {
		return
	}
	err := e.store.CompleteCheckRun(ctx, checkID, status, errText, sum.Created, sum.Resolved)
	if err != nil {
		log.Error("completing check run failed", "error", err)
	}
}

// syncActiveGauge refreshes the per-kind active alert gauge. Kinds with no
// active alerts are reset to zero explicitly.
func (e *Engine) syncActiveGauge(ctx context.Context, log *slog.Logger) {
	counts, err := e.store.CountActiveAlertsByKind(ctx)
	if err != nil {
		log.Error("counting active alerts failed", "error", err)
		return
	}
	for kind := range domain.AlertKindEntity {
		metrics.ActiveAlerts.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
}
