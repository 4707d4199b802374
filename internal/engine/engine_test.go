package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/oacload/internal/artifact"
	"github.com/dwsmith1983/oacload/internal/fetcher"
	"github.com/dwsmith1983/oacload/internal/metrics"
	"github.com/dwsmith1983/oacload/internal/schedule"
	"github.com/dwsmith1983/oacload/internal/testutil"
	"github.com/dwsmith1983/oacload/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const header = "Loc,Loc Zn,Loc Name,Loc Purp Desc,Loc/QTI,Flow Ind,DC,OPC,TSQ,OAC,IT,Auth Overrun Ind,Nom Cap Exceed Ind,All Qty Avail,Qty Reason"

func report(rows int) []byte {
	lines := []string{header}
	for i := 0; i < rows; i++ {
		lines = append(lines, fmt.Sprintf("%d,West,Station %d,M2,RPQ,R,500000,450000,300000,150000,N,N,N,Y,", 1001+i, i))
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

type harness struct {
	store     *testutil.MockStore
	fetcher   *testutil.FakeFetcher
	artifacts *artifact.Store
	loc       *time.Location
	now       time.Time

	mu     sync.Mutex
	alerts []types.Alert
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	artifacts, err := artifact.New(t.TempDir())
	require.NoError(t, err)
	loc, err := schedule.LoadLocation("EST")
	require.NoError(t, err)
	return &harness{
		store:     testutil.NewMockStore(),
		fetcher:   testutil.NewFakeFetcher(artifacts, report(1)),
		artifacts: artifacts,
		loc:       loc,
		now:       time.Date(2024, 1, 10, 12, 0, 0, 0, loc),
	}
}

func (h *harness) key(day int, c types.Cycle) types.DedupKey {
	return types.NewDedupKey(time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC), c)
}

func (h *harness) coordinator(cfg Config, opts ...Option) *Coordinator {
	if cfg.Asset == "" {
		cfg.Asset = "TW"
	}
	if cfg.WindowDays == 0 {
		cfg.WindowDays = 3
	}
	cfg.Location = h.loc
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = types.RetryPolicy{MaxAttempts: 3}
	}
	opts = append([]Option{WithAlertFunc(func(_ context.Context, a types.Alert) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.alerts = append(h.alerts, a)
	})}, opts...)
	return New(h.store, h.fetcher, h.artifacts, cfg, opts...)
}

func (h *harness) alertLevels() []types.AlertLevel {
	h.mu.Lock()
	defer h.mu.Unlock()
	var levels []types.AlertLevel
	for _, a := range h.alerts {
		levels = append(levels, a.Level)
	}
	return levels
}

func itemFor(t *testing.T, s *types.RunSummary, key types.DedupKey) types.WorkItem {
	t.Helper()
	for _, item := range s.Items {
		if item.Key == key {
			return item
		}
	}
	t.Fatalf("no work item for %s", key)
	return types.WorkItem{}
}

func notFound() error {
	return &fetcher.FetchError{StatusCode: 404, Category: types.FailurePermanent}
}

func unavailable() error {
	return &fetcher.FetchError{StatusCode: 503, Category: types.FailureTransient}
}

func TestRun_EndToEndWindow(t *testing.T) {
	h := newHarness(t)
	timely := h.key(10, types.CycleTimely)
	evening := h.key(10, types.CycleEvening)
	h.fetcher.SetBody(timely, report(2))
	h.fetcher.FailWith(evening, -1, notFound())

	summary, err := h.coordinator(Config{}).Run(context.Background(), h.now)
	require.NoError(t, err)

	require.Len(t, summary.Items, 18)
	assert.Equal(t, "01/10/2024", summary.Today)
	assert.Equal(t, 1, summary.Count(types.WorkFailed))
	assert.Equal(t, 17, summary.Count(types.WorkLoaded))
	assert.Equal(t, 18, summary.RowsLoaded, "2 rows for Timely plus 1 for each of the other 16 loaded reports")
	assert.Equal(t, 18, h.store.RowCount())
	assert.Equal(t, 2, h.store.RowsFor(timely))

	exists, err := h.store.Exists(context.Background(), evening)
	require.NoError(t, err)
	assert.False(t, exists)

	failed := itemFor(t, summary, evening)
	assert.Equal(t, types.WorkFailed, failed.State)
	assert.Contains(t, failed.Reason, "404")
	assert.Equal(t, 1, h.fetcher.Calls(evening), "permanent failures are not retried")

	assert.Equal(t, 1, h.store.AppendCalls())
	files, err := h.artifacts.List()
	require.NoError(t, err)
	assert.Empty(t, files, "loaded artifacts are released")

	assert.Equal(t, []types.AlertLevel{types.AlertLevelWarning}, h.alertLevels())
	assert.NotEmpty(t, summary.RunID)
}

func TestRun_EnumeratesNewestFirstInCycleOrder(t *testing.T) {
	h := newHarness(t)

	summary, err := h.coordinator(Config{WindowDays: 2}).Run(context.Background(), h.now)
	require.NoError(t, err)

	var got []string
	for _, item := range summary.Items {
		got = append(got, item.Key.String())
	}
	assert.Equal(t, []string{
		"01/10/2024 Timely", "01/10/2024 Evening", "01/10/2024 Intraday 1",
		"01/10/2024 Intraday 2", "01/10/2024 Intraday 3", "01/10/2024 Final",
		"01/09/2024 Timely", "01/09/2024 Evening", "01/09/2024 Intraday 1",
		"01/09/2024 Intraday 2", "01/09/2024 Intraday 3", "01/09/2024 Final",
	}, got)
}

func TestRun_SkipsLoadedKeys(t *testing.T) {
	h := newHarness(t)
	loaded := h.key(9, types.CycleFinal)
	h.store.Seed(loaded, 5)

	summary, err := h.coordinator(Config{}).Run(context.Background(), h.now)
	require.NoError(t, err)

	item := itemFor(t, summary, loaded)
	assert.Equal(t, types.WorkSkipped, item.State)
	assert.Zero(t, h.fetcher.Calls(loaded))
	assert.Equal(t, 5, h.store.RowsFor(loaded))
	assert.Equal(t, 17, summary.Count(types.WorkLoaded))
	assert.Empty(t, h.alertLevels())
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(Config{})

	first, err := c.Run(context.Background(), h.now)
	require.NoError(t, err)
	require.Equal(t, 18, first.Count(types.WorkLoaded))
	calls := h.fetcher.TotalCalls()

	second, err := c.Run(context.Background(), h.now)
	require.NoError(t, err)
	assert.Equal(t, 18, second.Count(types.WorkSkipped))
	assert.Zero(t, second.RowsLoaded)
	assert.Equal(t, 18, h.store.RowCount())
	assert.Equal(t, calls, h.fetcher.TotalCalls())
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	h := newHarness(t)
	flaky := h.key(10, types.CycleIntraday1)
	down := h.key(10, types.CycleIntraday2)
	h.fetcher.FailWith(flaky, 2, unavailable())
	h.fetcher.FailWith(down, -1, unavailable())

	summary, err := h.coordinator(Config{}).Run(context.Background(), h.now)
	require.NoError(t, err)

	recovered := itemFor(t, summary, flaky)
	assert.Equal(t, types.WorkLoaded, recovered.State)
	assert.Equal(t, 3, recovered.Attempts)

	exhausted := itemFor(t, summary, down)
	assert.Equal(t, types.WorkFailed, exhausted.State)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, h.fetcher.Calls(down))
}

func TestRun_RejectedReportIsQuarantined(t *testing.T) {
	h := newHarness(t)
	bad := h.key(8, types.CycleEvening)
	h.fetcher.SetBody(bad, []byte(header+",Extra\n1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16\n"))

	summary, err := h.coordinator(Config{}).Run(context.Background(), h.now)
	require.NoError(t, err)

	item := itemFor(t, summary, bad)
	assert.Equal(t, types.WorkRejected, item.State)
	assert.Contains(t, item.Reason, "expected 15 columns, got 16")
	assert.Equal(t, filepath.Join(h.artifacts.Dir(), artifact.QuarantineDir, artifact.FileName("TW", bad)), item.Artifact)
	_, err = os.Stat(item.Artifact)
	assert.NoError(t, err, "rejected artifact is kept in quarantine")

	_, _, ok, err := h.artifacts.Lookup("TW", bad)
	require.NoError(t, err)
	assert.False(t, ok, "quarantined artifact is not reused")
	assert.Equal(t, 17, summary.Count(types.WorkLoaded))
	assert.Equal(t, []types.AlertLevel{types.AlertLevelWarning}, h.alertLevels())
}

func TestRun_NullsOutOfDomainCells(t *testing.T) {
	h := newHarness(t)
	key := h.key(10, types.CycleFinal)
	body := header + "\n" +
		"1001,West,Station A,M2,RPQ,X,100,90,80,10,Y,N,maybe,Y,\n" +
		"1002,East,Station B,MQ,DPQ,D,200,190,180,10,N,N,N,N,Cut\n"
	h.fetcher.SetBody(key, []byte(body))

	_, err := h.coordinator(Config{WindowDays: 1}).Run(context.Background(), h.now)
	require.NoError(t, err)

	var rows []types.CapacityRecord
	for _, r := range h.store.Rows() {
		if r.ReportDate == "01/10/2024" && r.Cycle == "Final" {
			rows = append(rows, r)
		}
	}
	require.Len(t, rows, 2)
	assert.Empty(t, rows[0].FlowIndicator)
	assert.Nil(t, rows[0].NominationExceedFlag)
	require.NotNil(t, rows[0].InterruptibleFlag)
	assert.True(t, *rows[0].InterruptibleFlag)
	assert.Equal(t, types.FlowDelivery, rows[1].FlowIndicator)
	require.NotNil(t, rows[1].QuantityFullyAvailableFlag)
	assert.False(t, *rows[1].QuantityFullyAvailableFlag)
}

func TestRun_LoadFailureKeepsArtifacts(t *testing.T) {
	h := newHarness(t)
	h.store.SetAppendError(errors.New("connection reset"))

	summary, err := h.coordinator(Config{}).Run(context.Background(), h.now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading batch")
	require.NotNil(t, summary)
	assert.NotEmpty(t, summary.Error)
	assert.Equal(t, 18, summary.Count(types.WorkNormalized))
	assert.Zero(t, summary.Count(types.WorkLoaded))
	assert.Zero(t, h.store.RowCount())

	for _, item := range summary.Items {
		exists, err := h.store.Exists(context.Background(), item.Key)
		require.NoError(t, err)
		assert.False(t, exists)
	}

	files, err := h.artifacts.List()
	require.NoError(t, err)
	assert.Len(t, files, 18)
	require.Equal(t, []types.AlertLevel{types.AlertLevelError}, h.alertLevels())
	assert.Equal(t, 18, h.alerts[0].Details["unresolved"], "normalized items never reached a final state")
}

func TestRun_ReusesArtifactsAfterFailedLoad(t *testing.T) {
	h := newHarness(t)
	h.store.SetAppendError(errors.New("connection reset"))
	_, err := h.coordinator(Config{}).Run(context.Background(), h.now)
	require.Error(t, err)

	httpFetcher, err := fetcher.New("http://127.0.0.1:1", h.artifacts)
	require.NoError(t, err)
	h.store.SetAppendError(nil)

	summary, err := New(h.store, httpFetcher, h.artifacts, Config{
		Asset: "TW", WindowDays: 3, Location: h.loc, Retry: types.RetryPolicy{MaxAttempts: 1},
	}).Run(context.Background(), h.now)
	require.NoError(t, err)
	assert.Equal(t, 18, summary.Count(types.WorkLoaded))
	for _, item := range summary.Items {
		assert.True(t, item.Reused, "%s should come from disk", item.Key)
	}
}

func TestRun_HealthCheckFailsFast(t *testing.T) {
	h := newHarness(t)
	h.store.SetHealthError(errors.New("connection refused"))

	summary, err := h.coordinator(Config{}).Run(context.Background(), h.now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store health check")
	assert.Empty(t, summary.Items)
	assert.Zero(t, h.store.ExistsCalls())
	assert.Zero(t, h.fetcher.TotalCalls())
	assert.Zero(t, h.store.AppendCalls())
	assert.Equal(t, []types.AlertLevel{types.AlertLevelError}, h.alertLevels())
}

func TestRun_ExistsErrorFailsItem(t *testing.T) {
	h := newHarness(t)
	key := h.key(9, types.CycleTimely)
	h.store.SetExistsError(key, errors.New("timeout"))

	summary, err := h.coordinator(Config{}).Run(context.Background(), h.now)
	require.NoError(t, err)

	item := itemFor(t, summary, key)
	assert.Equal(t, types.WorkFailed, item.State)
	assert.Contains(t, item.Reason, "existence check")
	assert.Zero(t, h.fetcher.Calls(key))
	assert.Equal(t, 17, summary.Count(types.WorkLoaded))
}

func TestRun_ParallelWorkersKeepBatchOrder(t *testing.T) {
	h := newHarness(t)

	summary, err := h.coordinator(Config{Workers: 4}).Run(context.Background(), h.now)
	require.NoError(t, err)
	assert.Equal(t, 18, summary.Count(types.WorkLoaded))
	assert.Equal(t, 1, h.store.AppendCalls())

	rows := h.store.Rows()
	require.Len(t, rows, 18)
	for i, item := range summary.Items {
		assert.Equal(t, item.GasDay, rows[i].ReportDate)
		assert.Equal(t, string(item.Cycle), rows[i].Cycle)
	}
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.coordinator(Config{}).Run(ctx, h.now)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.store.AppendCalls())
	assert.Equal(t, 18, summary.Count(types.WorkFailed))
}

func TestRun_Telemetry(t *testing.T) {
	h := newHarness(t)
	h.fetcher.FailWith(h.key(10, types.CycleEvening), -1, notFound())

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()
	rec, err := metrics.New(mp)
	require.NoError(t, err)

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, err = h.coordinator(Config{}, WithMetrics(rec), WithTracer(tp.Tracer("test"))).Run(context.Background(), h.now)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	states := make(map[string]int64)
	var rows int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch m.Name {
				case metrics.WorkItemsTotal:
					v, _ := dp.Attributes.Value(attribute.Key("state"))
					states[v.AsString()] += dp.Value
				case metrics.RowsLoadedTotal:
					rows += dp.Value
				}
			}
		}
	}
	assert.Equal(t, map[string]int64{"LOADED": 17, "FAILED": 1}, states)
	assert.Equal(t, int64(17), rows)

	ended := spans.Ended()
	require.Len(t, ended, 19)
	assert.Equal(t, "oacload.run", ended[len(ended)-1].Name())
}
