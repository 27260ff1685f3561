package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/spaicer/internal/domain"
)

// Metrics — Prometheus метрики выполнения pipeline.
//
// Реализует pipeline.Observer.
type Metrics struct {
	RunsStarted  *prometheus.CounterVec
	RunsFinished *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	TasksTotal   *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec
	RunActive    prometheus.Gauge
	LastRunTime  *prometheus.GaugeVec
}

// NewMetrics регистрирует метрики в reg.
// nil означает prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spaicer",
			Name:      "runs_started_total",
			Help:      "Number of pipeline runs started.",
		}, []string{"trigger"}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spaicer",
			Name:      "runs_finished_total",
			Help:      "Number of pipeline runs finished, by status.",
		}, []string{"status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spaicer",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"status"}),
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spaicer",
			Name:      "tasks_total",
			Help:      "Number of finished steps, by step and status.",
		}, []string{"step", "status"}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spaicer",
			Name:      "task_duration_seconds",
			Help:      "Step execution duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		RunActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "spaicer",
			Name:      "run_active",
			Help:      "1 while a pipeline run is in progress.",
		}),
		LastRunTime: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spaicer",
			Name:      "last_run_finished_timestamp_seconds",
			Help:      "Unix time of the last finished run, by status.",
		}, []string{"status"}),
	}
}

// RunStarted учитывает начало run.
func (m *Metrics) RunStarted(_ context.Context, run *domain.Run) {
	m.RunsStarted.WithLabelValues(string(run.Trigger)).Inc()
	m.RunActive.Set(1)
}

// TaskFinished учитывает завершение шага.
func (m *Metrics) TaskFinished(_ context.Context, _ *domain.Run, task *domain.Task) {
	m.TasksTotal.WithLabelValues(task.StepID, string(task.Status)).Inc()
	if task.Status != domain.TaskStatusSkipped {
		m.TaskDuration.WithLabelValues(task.StepID).Observe(task.Duration().Seconds())
	}
}

// RunFinished учитывает завершение run.
func (m *Metrics) RunFinished(_ context.Context, run *domain.Run) {
	status := string(run.Status)
	m.RunsFinished.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(run.Duration().Seconds())
	m.RunActive.Set(0)
	if run.FinishedAt != nil {
		m.LastRunTime.WithLabelValues(status).Set(float64(run.FinishedAt.Unix()))
	}
}

// HTTPMetrics — метрики HTTP API.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTPMetrics регистрирует метрики API в reg.
// nil означает prometheus.DefaultRegisterer.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &HTTPMetrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spaicer",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "HTTP requests handled by the API, by route and status code.",
		}, []string{"route", "code"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spaicer",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
