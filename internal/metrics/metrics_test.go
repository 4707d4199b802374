package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/dwsmith1983/oacload/pkg/types"
)

func newTestRecorder(t *testing.T) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	r, err := New(mp)
	require.NoError(t, err)
	return r, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return nil
}

func sumByAttr(t *testing.T, data metricdata.Aggregation, key string) map[string]int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestItemResolved_CountsByState(t *testing.T) {
	r, reader := newTestRecorder(t)
	ctx := context.Background()

	r.ItemResolved(ctx, types.WorkLoaded)
	r.ItemResolved(ctx, types.WorkLoaded)
	r.ItemResolved(ctx, types.WorkFailed)

	got := sumByAttr(t, collect(t, reader, WorkItemsTotal), "state")
	assert.Equal(t, map[string]int64{"LOADED": 2, "FAILED": 1}, got)
}

func TestRowsLoaded_IgnoresZero(t *testing.T) {
	r, reader := newTestRecorder(t)
	ctx := context.Background()

	r.RowsLoaded(ctx, 0)
	r.RowsLoaded(ctx, 17)

	sum, ok := collect(t, reader, RowsLoadedTotal).(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(17), sum.DataPoints[0].Value)
}

func TestFetchObserved(t *testing.T) {
	r, reader := newTestRecorder(t)
	ctx := context.Background()

	r.FetchObserved(ctx, 250*time.Millisecond, OutcomeOK)
	r.FetchObserved(ctx, time.Second, string(types.FailureTransient))

	hist, ok := collect(t, reader, FetchDuration).(metricdata.Histogram[float64])
	require.True(t, ok)
	counts := make(map[string]uint64)
	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value("outcome")
		counts[v.AsString()] += dp.Count
	}
	assert.Equal(t, map[string]uint64{"ok": 1, "TRANSIENT": 1}, counts)
}

func TestRunFinished(t *testing.T) {
	r, reader := newTestRecorder(t)
	ctx := context.Background()

	r.RunFinished(ctx, 2*time.Second, nil)
	r.RunFinished(ctx, time.Second, errors.New("load failed"))

	got := sumByAttr(t, collect(t, reader, RunsTotal), "outcome")
	assert.Equal(t, map[string]int64{OutcomeOK: 1, OutcomeError: 1}, got)
}

func TestNoop(t *testing.T) {
	r := Noop()
	require.NotNil(t, r)
	r.ItemResolved(context.Background(), types.WorkLoaded)
	r.RunFinished(context.Background(), time.Second, nil)
}
