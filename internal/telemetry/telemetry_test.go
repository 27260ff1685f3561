package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/spaicer/internal/domain"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, "json").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	NewLogger(&buf, slog.LevelInfo, "text").Info("hello", "k", "v", "empty", "")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "empty")

	buf.Reset()
	NewLogger(&buf, slog.LevelWarn, "json").Info("hidden")
	assert.Empty(t, buf.String())
}

func TestContextLogger(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	var buf bytes.Buffer
	logger := WithStepID(WithRunID(NewLogger(&buf, slog.LevelInfo, "json"), "r1"), "fetch_data")
	ctx := WithLogger(context.Background(), logger)

	FromContext(ctx).Info("x")
	assert.Contains(t, buf.String(), `"run_id":"r1"`)
	assert.Contains(t, buf.String(), `"step_id":"fetch_data"`)
}

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestMetrics_Observer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := domain.NewRun("spaicer_demo_dag", domain.TriggerScheduled, start)
	run.MarkRunning(start)
	m.RunStarted(ctx, run)

	task := domain.NewTask(uuid.New(), &domain.StepDef{ID: "fetch_data", Type: "fetch"}, start)
	task.MarkRunning(start)
	task.MarkSucceeded(start.Add(time.Second), nil, "")
	m.TaskFinished(ctx, run, task)

	skipped := domain.NewTask(run.ID, &domain.StepDef{ID: "alert", Type: "alert"}, start)
	skipped.MarkSkipped(start)
	m.TaskFinished(ctx, run, skipped)

	families := gather(t, reg)
	assert.Equal(t, 1.0, families["spaicer_run_active"].GetMetric()[0].GetGauge().GetValue())
	assert.Len(t, families["spaicer_tasks_total"].GetMetric(), 2)
	assert.Equal(t, uint64(1), families["spaicer_task_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount())

	run.MarkSucceeded(start.Add(2 * time.Second))
	m.RunFinished(ctx, run)

	families = gather(t, reg)
	assert.Equal(t, 0.0, families["spaicer_run_active"].GetMetric()[0].GetGauge().GetValue())
	finished := families["spaicer_runs_finished_total"].GetMetric()
	require.Len(t, finished, 1)
	assert.Equal(t, 1.0, finished[0].GetCounter().GetValue())
	assert.Equal(t, "SUCCEEDED", finished[0].GetLabel()[0].GetValue())
	assert.Equal(t, float64(start.Add(2*time.Second).Unix()),
		families["spaicer_last_run_finished_timestamp_seconds"].GetMetric()[0].GetGauge().GetValue())
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Requests.WithLabelValues("GET /api/v1/runs", "200").Inc()
	m.Requests.WithLabelValues("GET /api/v1/runs", "200").Inc()
	m.Duration.WithLabelValues("GET /api/v1/runs").Observe(0.01)

	families := gather(t, reg)
	requests := families["spaicer_api_http_requests_total"].GetMetric()
	require.Len(t, requests, 1)
	assert.Equal(t, 2.0, requests[0].GetCounter().GetValue())
	assert.Equal(t, uint64(1),
		families["spaicer_api_http_request_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount())
}
