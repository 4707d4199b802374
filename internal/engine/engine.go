// Package engine runs one extract, validate, transform and load pass over
// the trailing report window.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/oacload/internal/artifact"
	"github.com/dwsmith1983/oacload/internal/fetcher"
	"github.com/dwsmith1983/oacload/internal/lifecycle"
	"github.com/dwsmith1983/oacload/internal/metrics"
	"github.com/dwsmith1983/oacload/internal/provider"
	"github.com/dwsmith1983/oacload/internal/schedule"
	"github.com/dwsmith1983/oacload/internal/transform"
	"github.com/dwsmith1983/oacload/internal/validate"
	"github.com/dwsmith1983/oacload/pkg/types"
)

// Fetcher retrieves the raw report for one key.
type Fetcher interface {
	Fetch(ctx context.Context, asset string, key types.DedupKey) (*types.RawTable, error)
}

// Config is the per-run input of a Coordinator.
type Config struct {
	Asset      string
	WindowDays int
	Location   *time.Location
	Workers    int
	Retry      types.RetryPolicy
}

// Coordinator drives every work item of a run and commits the result as a
// single batch.
type Coordinator struct {
	store     provider.Store
	fetcher   Fetcher
	artifacts *artifact.Store
	cfg       Config

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Recorder
	alertFn func(context.Context, types.Alert)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithTracer sets the tracer for run and item spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithAlertFunc sets the callback that receives run alerts.
func WithAlertFunc(fn func(context.Context, types.Alert)) Option {
	return func(c *Coordinator) { c.alertFn = fn }
}

// New creates a Coordinator. A nil Location selects the default reference
// zone and a non-positive worker count runs items sequentially.
func New(store provider.Store, f Fetcher, artifacts *artifact.Store, cfg Config, opts ...Option) *Coordinator {
	if cfg.Location == nil {
		cfg.Location, _ = schedule.LoadLocation(schedule.DefaultTimezone)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	c := &Coordinator{
		store:     store,
		fetcher:   f,
		artifacts: artifacts,
		cfg:       cfg,
		logger:    slog.Default(),
		tracer:    tracenoop.NewTracerProvider().Tracer(metrics.MeterName),
		metrics:   metrics.Noop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run performs one pass for the window ending at now. It returns a summary
// in every case; the error is non-nil only when the run as a whole failed
// (store unavailable, batch not committed, or cancellation). Per-item
// failures are reported in the summary.
func (c *Coordinator) Run(ctx context.Context, now time.Time) (*types.RunSummary, error) {
	runID := ulid.Make().String()
	started := time.Now()

	ctx, span := c.tracer.Start(ctx, "oacload.run", trace.WithAttributes(
		attribute.String("oacload.run_id", runID),
		attribute.String("oacload.asset", c.cfg.Asset),
		attribute.Int("oacload.window_days", c.cfg.WindowDays),
	))
	defer span.End()

	logger := c.logger.With("runId", runID, "asset", c.cfg.Asset)
	summary := &types.RunSummary{
		RunID:     runID,
		Asset:     c.cfg.Asset,
		Today:     now.In(c.cfg.Location).Format(types.GasDayLayout),
		StartedAt: started,
	}

	keys := schedule.WorkKeys(now, c.cfg.Location, c.cfg.WindowDays)
	logger.Info("load started", "today", summary.Today, "windowDays", c.cfg.WindowDays, "items", len(keys))

	if err := c.store.HealthCheck(ctx); err != nil {
		return c.finish(ctx, span, logger, summary, fmt.Errorf("store health check: %w", err))
	}

	items := make([]types.WorkItem, len(keys))
	for i, k := range keys {
		items[i] = types.WorkItem{Key: k, GasDay: k.GasDay(), Cycle: k.Cycle, State: types.WorkPending}
	}
	results := make([][]types.CapacityRecord, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i := range items {
		g.Go(func() error {
			results[i] = c.drive(gctx, logger, &items[i])
			return nil
		})
	}
	_ = g.Wait()
	summary.Items = items

	if err := ctx.Err(); err != nil {
		return c.finish(ctx, span, logger, summary, fmt.Errorf("run cancelled: %w", err))
	}

	var (
		batch    []types.CapacityRecord
		loadable []int
	)
	for i := range items {
		if items[i].State == types.WorkNormalized {
			batch = append(batch, results[i]...)
			loadable = append(loadable, i)
		}
	}

	n, err := c.store.AppendBatch(ctx, batch)
	if err != nil {
		logger.Error("batch load failed, keeping artifacts", "records", len(batch), "error", err)
		return c.finish(ctx, span, logger, summary, fmt.Errorf("loading batch: %w", err))
	}
	summary.RowsLoaded = n
	c.metrics.RowsLoaded(ctx, n)

	for _, i := range loadable {
		item := &items[i]
		if err := lifecycle.Advance(item, types.WorkLoaded); err != nil {
			logger.Error("state transition rejected", "error", err)
			continue
		}
		c.metrics.ItemResolved(ctx, types.WorkLoaded)
		if err := c.artifacts.Release(item.Artifact); err != nil {
			logger.Warn("failed to release artifact", "key", item.Key.String(), "path", item.Artifact, "error", err)
			continue
		}
		item.Artifact = ""
	}

	return c.finish(ctx, span, logger, summary, nil)
}

// drive moves one item from PENDING to a terminal state or NORMALIZED and
// returns its records when it reached NORMALIZED.
func (c *Coordinator) drive(ctx context.Context, logger *slog.Logger, item *types.WorkItem) []types.CapacityRecord {
	ctx, span := c.tracer.Start(ctx, "oacload.item", trace.WithAttributes(
		attribute.String("oacload.gas_day", item.GasDay),
		attribute.String("oacload.cycle", string(item.Cycle)),
	))
	defer func() {
		span.SetAttributes(attribute.String("oacload.state", string(item.State)))
		span.End()
	}()
	log := logger.With("key", item.Key.String())

	exists, err := c.store.Exists(ctx, item.Key)
	if err != nil {
		span.RecordError(err)
		c.resolve(ctx, log, item, types.WorkFailed, fmt.Sprintf("existence check: %v", err))
		return nil
	}
	if exists {
		c.resolve(ctx, log, item, types.WorkSkipped, "already loaded")
		return nil
	}

	if !c.advance(log, item, types.WorkFetching) {
		return nil
	}
	raw, err := c.fetch(ctx, log, item)
	if err != nil {
		span.RecordError(err)
		c.resolve(ctx, log, item, types.WorkFailed, err.Error())
		return nil
	}
	item.Artifact = raw.Path
	item.Reused = raw.Reused

	if !c.advance(log, item, types.WorkValidating) {
		return nil
	}
	table, err := validate.Validate(raw.Data)
	if err != nil {
		if dest, qerr := c.artifacts.Quarantine(raw.Path); qerr != nil {
			log.Warn("failed to quarantine rejected artifact", "path", raw.Path, "error", qerr)
		} else {
			item.Artifact = dest
		}
		c.resolve(ctx, log, item, types.WorkRejected, err.Error())
		return nil
	}

	records := transform.Normalize(table, item.Key)
	item.Rows = len(records)
	if !c.advance(log, item, types.WorkNormalized) {
		return nil
	}
	log.Info("report normalized", "rows", item.Rows, "reused", item.Reused)
	return records
}

func (c *Coordinator) fetch(ctx context.Context, log *slog.Logger, item *types.WorkItem) (*types.RawTable, error) {
	started := time.Now()
	var raw *types.RawTable
	attempts, err := schedule.Retry(ctx, c.cfg.Retry, fetcher.Classify, func(ctx context.Context, attempt int) error {
		var ferr error
		raw, ferr = c.fetcher.Fetch(ctx, c.cfg.Asset, item.Key)
		if ferr != nil {
			log.Warn("fetch attempt failed", "attempt", attempt, "category", fetcher.Classify(ferr), "error", ferr)
		}
		return ferr
	})
	item.Attempts = attempts

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = string(fetcher.Classify(err))
	}
	c.metrics.FetchObserved(ctx, time.Since(started), outcome)
	return raw, err
}

func (c *Coordinator) advance(log *slog.Logger, item *types.WorkItem, to types.WorkState) bool {
	if err := lifecycle.Advance(item, to); err != nil {
		log.Error("state transition rejected", "error", err)
		return false
	}
	return true
}

func (c *Coordinator) resolve(ctx context.Context, log *slog.Logger, item *types.WorkItem, to types.WorkState, reason string) {
	if !c.advance(log, item, to) {
		return
	}
	item.Reason = reason
	c.metrics.ItemResolved(ctx, to)

	switch to {
	case types.WorkSkipped:
		log.Info("work item skipped", "reason", reason)
	case types.WorkFailed:
		log.Warn("work item failed", "attempts", item.Attempts, "reason", reason)
	case types.WorkRejected:
		log.Warn("work item rejected", "reason", reason, "artifact", item.Artifact)
	}
}

func (c *Coordinator) finish(ctx context.Context, span trace.Span, logger *slog.Logger, summary *types.RunSummary, runErr error) (*types.RunSummary, error) {
	summary.FinishedAt = time.Now()
	summary.Counts = make(map[types.WorkState]int)
	unresolved := 0
	for _, item := range summary.Items {
		summary.Counts[item.State]++
		if !lifecycle.IsTerminal(item.State) {
			unresolved++
		}
	}
	duration := summary.FinishedAt.Sub(summary.StartedAt)
	c.metrics.RunFinished(ctx, duration, runErr)

	if runErr != nil {
		summary.Error = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		logger.Error("load failed", "error", runErr, "unresolved", unresolved, "duration", duration)
		alert := types.Alert{
			Level:     types.AlertLevelError,
			Asset:     summary.Asset,
			RunID:     summary.RunID,
			Message:   fmt.Sprintf("OAC load for %s failed: %v", summary.Asset, runErr),
			Timestamp: summary.FinishedAt,
		}
		if unresolved > 0 {
			alert.Details = map[string]interface{}{"unresolved": unresolved}
		}
		c.fireAlert(ctx, alert)
		return summary, runErr
	}

	span.SetAttributes(attribute.Int("oacload.rows_loaded", summary.RowsLoaded))
	if unresolved > 0 {
		logger.Warn("items left without a final state", "count", unresolved)
	}
	logger.Info("load finished",
		"rows", summary.RowsLoaded,
		"loaded", summary.Count(types.WorkLoaded),
		"skipped", summary.Count(types.WorkSkipped),
		"failed", summary.Count(types.WorkFailed),
		"rejected", summary.Count(types.WorkRejected),
		"duration", duration,
	)

	var problems []string
	for _, item := range summary.Items {
		if item.State == types.WorkFailed || item.State == types.WorkRejected {
			problems = append(problems, fmt.Sprintf("%s %s: %s", item.Key, item.State, item.Reason))
		}
	}
	if len(problems) > 0 {
		c.fireAlert(ctx, types.Alert{
			Level: types.AlertLevelWarning,
			Asset: summary.Asset,
			RunID: summary.RunID,
			Message: fmt.Sprintf("OAC load for %s finished with %d failed and %d rejected reports",
				summary.Asset, summary.Count(types.WorkFailed), summary.Count(types.WorkRejected)),
			Details:   map[string]interface{}{"items": problems, "rowsLoaded": summary.RowsLoaded},
			Timestamp: summary.FinishedAt,
		})
	}
	return summary, nil
}

func (c *Coordinator) fireAlert(ctx context.Context, alert types.Alert) {
	if c.alertFn != nil {
		c.alertFn(ctx, alert)
	}
}
