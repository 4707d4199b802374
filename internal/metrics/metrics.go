// Package metrics records loader runtime counters through OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// MeterName is the instrumentation scope of every loader instrument.
const MeterName = "github.com/dwsmith1983/oacload"

// Instrument names.
const (
	WorkItemsTotal  = "oacload.work_items"
	RowsLoadedTotal = "oacload.rows_loaded"
	FetchDuration   = "oacload.fetch.duration"
	RunDuration     = "oacload.run.duration"
	RunsTotal       = "oacload.runs"
)

// Outcome attribute values for runs and fetches.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder holds the loader's instruments. The zero value is not usable;
// build one with New or Noop.
type Recorder struct {
	workItems     metric.Int64Counter
	rowsLoaded    metric.Int64Counter
	fetchDuration metric.Float64Histogram
	runDuration   metric.Float64Histogram
	runs          metric.Int64Counter
}

// New creates the instruments on mp.
func New(mp metric.MeterProvider) (*Recorder, error) {
	m := mp.Meter(MeterName)
	var (
		r   Recorder
		err error
	)
	if r.workItems, err = m.Int64Counter(WorkItemsTotal,
		metric.WithDescription("Work items resolved, by terminal state.")); err != nil {
		return nil, err
	}
	if r.rowsLoaded, err = m.Int64Counter(RowsLoadedTotal,
		metric.WithDescription("Capacity rows appended to the store.")); err != nil {
		return nil, err
	}
	if r.fetchDuration, err = m.Float64Histogram(FetchDuration,
		metric.WithDescription("Report fetch latency, including retries."),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.runDuration, err = m.Float64Histogram(RunDuration,
		metric.WithDescription("Wall time of one loader run."),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.runs, err = m.Int64Counter(RunsTotal,
		metric.WithDescription("Loader runs, by outcome.")); err != nil {
		return nil, err
	}
	return &r, nil
}

// Noop returns a Recorder that discards everything.
func Noop() *Recorder {
	r, _ := New(noop.NewMeterProvider())
	return r
}

// ItemResolved counts one work item reaching state.
func (r *Recorder) ItemResolved(ctx context.Context, state types.WorkState) {
	r.workItems.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
}

// RowsLoaded counts rows committed by one batch.
func (r *Recorder) RowsLoaded(ctx context.Context, n int) {
	if n > 0 {
		r.rowsLoaded.Add(ctx, int64(n))
	}
}

// FetchObserved records the latency of one fetch. outcome is OutcomeOK or a
// failure category.
func (r *Recorder) FetchObserved(ctx context.Context, d time.Duration, outcome string) {
	r.fetchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RunFinished records one run's duration and outcome.
func (r *Recorder) RunFinished(ctx context.Context, d time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.runDuration.Record(ctx, d.Seconds(), attrs)
	r.runs.Add(ctx, 1, attrs)
}
