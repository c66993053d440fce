package report

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominica-news/feedback/pkg/feedback"
	"github.com/dominica-news/feedback/pkg/metrics"
	"github.com/dominica-news/feedback/pkg/netstatus"
)

func newTestPipeline(t *testing.T, backend http.Handler) (*Pipeline, *feedback.ToastCenter, *netstatus.Tracker) {
	t.Helper()

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	sink := feedback.NewToastCenter(nil)
	t.Cleanup(sink.Close)

	tracker := netstatus.NewTracker()
	reporter := NewReporter(ReporterConfig{BaseURL: server.URL, Timeout: time.Second})
	return NewPipeline(sink, reporter, tracker), sink, tracker
}

func acceptAll() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
}

func TestPipeline_HandleOnlineReportsImmediately(t *testing.T) {
	var received int32
	pipeline, sink, _ := newTestPipeline(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusAccepted)
	}))

	desc := pipeline.Handle(context.Background(), errors.New("HTTP 500: Internal Server Error"), ReportContext{Component: "ArticleList"})

	assert.Equal(t, feedback.CategoryServerError, desc.Category)
	assert.Equal(t, int32(1), atomic.LoadInt32(&received))
	assert.Equal(t, 0, pipeline.Queue().Len())

	active := sink.Active()
	require.Len(t, active, 1)
	assert.Equal(t, feedback.LevelError, active[0].Level)
	assert.False(t, active[0].Persistent)
}

func TestPipeline_HandleOfflineQueuesAndPersists(t *testing.T) {
	var received int32
	pipeline, sink, tracker := newTestPipeline(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusAccepted)
	}))

	tracker.SetOnline(false)
	desc := pipeline.Handle(context.Background(), errors.New("database query failed"), ReportContext{})

	// Offline forces the connection category regardless of the error
	assert.Equal(t, feedback.CategoryConnection, desc.Category)
	assert.Equal(t, int32(0), atomic.LoadInt32(&received))
	assert.Equal(t, 1, pipeline.Queue().Len())

	active := sink.Active()
	require.Len(t, active, 1)
	assert.True(t, active[0].Persistent)

	// Reconnecting replays the queued report
	tracker.SetOnline(true)
	require.Eventually(t, func() bool {
		return pipeline.Queue().Len() == 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&received))
}

func TestPipeline_HandleQueuesWhenSubmissionFails(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	pipeline.Handle(context.Background(), errors.New("boom"), ReportContext{})
	assert.Equal(t, 1, pipeline.Queue().Len())
}

func TestPipeline_Executor(t *testing.T) {
	var received int32
	pipeline, sink, _ := newTestPipeline(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusAccepted)
	}))

	executor := pipeline.Executor(1, 5*time.Millisecond, time.Second, ReportContext{Action: "load"})

	attempts := 0
	err := executor.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("HTTP 500: Internal Server Error")
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&received))
	require.Len(t, sink.Active(), 1)
}

func TestPipeline_ExecutorSuccessStaysQuiet(t *testing.T) {
	pipeline, sink, _ := newTestPipeline(t, acceptAll())

	executor := pipeline.Executor(2, 5*time.Millisecond, time.Second, ReportContext{})
	err := executor.Do(context.Background(), func(ctx context.Context) error {
		return nil
	})

	require.NoError(t, err)
	assert.Empty(t, sink.Active())
	assert.Equal(t, 0, pipeline.Queue().Len())
}

// Registered once per test binary; counters below assert on deltas.
var testMetrics = metrics.NewMetrics(metrics.DefaultConfig())

func TestPipeline_InstrumentTracksQueueAndToasts(t *testing.T) {
	pipeline, _, tracker := newTestPipeline(t, acceptAll())
	pipeline.Instrument(testMetrics)

	toastsBefore := testutil.ToFloat64(testMetrics.ToastsShownTotal.WithLabelValues("error", "medium"))

	tracker.SetOnline(false)
	pipeline.Handle(context.Background(), errors.New("boom"), ReportContext{})

	assert.Equal(t, float64(1), testutil.ToFloat64(testMetrics.OfflineQueueDepth))
	assert.Equal(t, toastsBefore+1, testutil.ToFloat64(testMetrics.ToastsShownTotal.WithLabelValues("error", "medium")))

	// Replay on reconnect drains the queue and the gauge follows
	tracker.SetOnline(true)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(testMetrics.OfflineQueueDepth) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestPipeline_InstrumentCountsRetries(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, acceptAll())
	pipeline.Instrument(testMetrics)

	attemptsBefore := testutil.ToFloat64(testMetrics.RetryAttemptsTotal.WithLabelValues("load"))
	exhaustionsBefore := testutil.ToFloat64(testMetrics.RetryExhaustionsTotal.WithLabelValues("server_error"))

	executor := pipeline.Executor(2, 5*time.Millisecond, time.Second, ReportContext{Action: "load"})
	err := executor.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("HTTP 500: Internal Server Error")
	})
	require.Error(t, err)

	// Two retries after the initial attempt, then one exhaustion
	assert.Equal(t, attemptsBefore+2, testutil.ToFloat64(testMetrics.RetryAttemptsTotal.WithLabelValues("load")))
	assert.Equal(t, exhaustionsBefore+1, testutil.ToFloat64(testMetrics.RetryExhaustionsTotal.WithLabelValues("server_error")))
}
