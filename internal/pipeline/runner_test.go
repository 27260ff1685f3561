package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/engine"
	"github.com/shaiso/spaicer/internal/steps"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// endpoint — тестовый HTTP endpoint, запоминающий тела запросов.
type endpoint struct {
	srv    *httptest.Server
	mu     sync.Mutex
	bodies []string
}

func newEndpoint(t *testing.T, body string) *endpoint {
	t.Helper()

	e := &endpoint{}
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		e.mu.Lock()
		e.bodies = append(e.bodies, string(data))
		e.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *endpoint) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.bodies...)
}

func unreachableURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

// memStore — Store, запоминающий последнее состояние runs и tasks.
type memStore struct {
	runs  map[string]domain.Run
	tasks map[string]domain.Task
	fail  bool
}

func newMemStore() *memStore {
	return &memStore{runs: map[string]domain.Run{}, tasks: map[string]domain.Task{}}
}

func (s *memStore) Create(_ context.Context, run *domain.Run) error { return s.putRun(run) }
func (s *memStore) Update(_ context.Context, run *domain.Run) error { return s.putRun(run) }

func (s *memStore) CreateTask(_ context.Context, task *domain.Task) error { return s.putTask(task) }
func (s *memStore) UpdateTask(_ context.Context, task *domain.Task) error { return s.putTask(task) }

func (s *memStore) putRun(run *domain.Run) error {
	if s.fail {
		return errors.New("db is down")
	}
	s.runs[run.ID.String()] = *run
	return nil
}

func (s *memStore) putTask(task *domain.Task) error {
	if s.fail {
		return errors.New("db is down")
	}
	s.tasks[task.StepID] = *task
	return nil
}

// recorder — Observer, запоминающий события.
type recorder struct {
	events []string
}

func (r *recorder) RunStarted(_ context.Context, run *domain.Run) {
	r.events = append(r.events, "run:"+string(run.Status))
}

func (r *recorder) TaskFinished(_ context.Context, _ *domain.Run, task *domain.Task) {
	r.events = append(r.events, task.StepID+":"+string(task.Status))
}

func (r *recorder) RunFinished(_ context.Context, run *domain.Run) {
	r.events = append(r.events, "run:"+string(run.Status))
}

// fakeStep — шаг с произвольным поведением.
type fakeStep struct {
	typ string
	fn  func(ctx context.Context, req *steps.Request) (*steps.Response, error)
}

func (s *fakeStep) Type() string { return s.typ }

func (s *fakeStep) Execute(ctx context.Context, req *steps.Request) (*steps.Response, error) {
	return s.fn(ctx, req)
}

type fixture struct {
	source, module, results *endpoint
	store                   *memStore
	observer                *recorder
	clock                   *clockwork.FakeClock
}

func newFixture(t *testing.T, second int) *fixture {
	t.Helper()
	return &fixture{
		source:   newEndpoint(t, `{"values": [5, 6, 7]}`),
		module:   newEndpoint(t, `{"result": "ok"}`),
		results:  newEndpoint(t, `{}`),
		store:    newMemStore(),
		observer: &recorder{},
		clock:    clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 0, 0, second, 0, time.UTC)),
	}
}

func (f *fixture) registry() *steps.Registry {
	return NewRegistry(StepsConfig{
		SourceURL:  f.source.srv.URL,
		ModuleURL:  f.module.srv.URL,
		ResultsURL: f.results.srv.URL,
		Clock:      f.clock,
	})
}

func (f *fixture) runner(t *testing.T, registry *steps.Registry) *Runner {
	t.Helper()
	runner, err := New(Config{
		Registry:  registry,
		Store:     f.store,
		Observers: []Observer{f.observer},
		Clock:     f.clock,
	})
	require.NoError(t, err)
	return runner
}

func statuses(tasks []*domain.Task) map[string]domain.TaskStatus {
	out := make(map[string]domain.TaskStatus, len(tasks))
	for _, task := range tasks {
		out[task.StepID] = task.Status
	}
	return out
}

// =============================================================================
// Definition
// =============================================================================

func TestDefinition(t *testing.T) {
	spec := Definition()
	require.NoError(t, engine.Validate(spec))

	dag, err := engine.BuildDAG(spec)
	require.NoError(t, err)

	assert.Equal(t, Name, spec.Name)
	assert.Equal(t, []string{StepFetch, StepBranch, StepAlert, StepProcess, StepForward}, dag.OrderIDs())
	assert.True(t, dag.IsDependent(StepBranch, StepAlert))
	assert.True(t, dag.IsDependent(StepBranch, StepProcess))
	assert.True(t, dag.IsDependent(StepProcess, StepForward))
}

func TestNewRegistry_Defaults(t *testing.T) {
	registry := NewRegistry(StepsConfig{})

	for _, def := range Definition().Steps {
		step, err := registry.Get(def.ID)
		require.NoError(t, err, def.ID)
		assert.Equal(t, def.Type, step.Type(), def.ID)
	}
}

// =============================================================================
// End-to-end
// =============================================================================

func TestRunner_SuccessPath(t *testing.T) {
	f := newFixture(t, 45)
	runner := f.runner(t, f.registry())

	report, err := runner.Execute(context.Background(), domain.TriggerManual, nil)
	require.NoError(t, err)

	run := report.Run
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, domain.PhaseDone, run.Phase)
	assert.Equal(t, Name, run.Pipeline)
	assert.NotNil(t, run.FinishedAt)

	// AI модуль получает значения, обёрнутые во внешний список
	require.Len(t, f.module.calls(), 1)
	assert.JSONEq(t, `{"values": [[5, 6, 7]]}`, f.module.calls()[0])

	require.Len(t, f.results.calls(), 1)
	assert.JSONEq(t, `{"result": "ok"}`, f.results.calls()[0])

	assert.Equal(t, map[string]domain.TaskStatus{
		StepFetch:   domain.TaskStatusSucceeded,
		StepBranch:  domain.TaskStatusSucceeded,
		StepAlert:   domain.TaskStatusSkipped,
		StepProcess: domain.TaskStatusSucceeded,
		StepForward: domain.TaskStatusSucceeded,
	}, statuses(report.Tasks))

	assert.Equal(t, StepProcess, report.Tasks[1].Next)
	assert.Equal(t, "ok", f.store.tasks[StepProcess].Output)

	assert.Equal(t, []string{
		"run:RUNNING",
		"fetch_data:SUCCEEDED",
		"fetch_success:SUCCEEDED",
		"alert:SKIPPED",
		"process_data_with_ai_module:SUCCEEDED",
		"forward_results:SUCCEEDED",
		"run:SUCCEEDED",
	}, f.observer.events)

	stored := f.store.runs[run.ID.String()]
	assert.Equal(t, domain.RunStatusSucceeded, stored.Status)
}

func TestRunner_NumbersPassThroughUnchanged(t *testing.T) {
	f := newFixture(t, 45)
	f.source = newEndpoint(t, `{"values": [9007199254740993, 0.1]}`)
	f.module = newEndpoint(t, `{"result": 12345678901234567891}`)
	runner := f.runner(t, f.registry())

	report, err := runner.Execute(context.Background(), domain.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, report.Run.Status)

	require.Len(t, f.module.calls(), 1)
	assert.Equal(t, `{"values":[[9007199254740993,0.1]]}`, f.module.calls()[0])
	require.Len(t, f.results.calls(), 1)
	assert.Equal(t, `{"result":12345678901234567891}`, f.results.calls()[0])
}

func TestRunner_SourceUnreachable(t *testing.T) {
	f := newFixture(t, 45)
	registry := NewRegistry(StepsConfig{
		SourceURL:  unreachableURL(t),
		ModuleURL:  f.module.srv.URL,
		ResultsURL: f.results.srv.URL,
		Clock:      f.clock,
	})
	runner := f.runner(t, registry)

	run, err := runner.Run(context.Background(), domain.TriggerScheduled, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, domain.PhaseDone, run.Phase)
	assert.Empty(t, f.module.calls())
	assert.Empty(t, f.results.calls())

	assert.Equal(t, domain.TaskStatusSucceeded, f.store.tasks[StepAlert].Status)
	assert.Equal(t, domain.TaskStatusSkipped, f.store.tasks[StepProcess].Status)
	// Пропуск распространяется на зависимые шаги
	assert.Equal(t, domain.TaskStatusSkipped, f.store.tasks[StepForward].Status)
	assert.Equal(t, StepAlert, f.store.tasks[StepBranch].Next)
}

func TestRunner_FaultWindowSelectsAlert(t *testing.T) {
	f := newFixture(t, 10)
	runner := f.runner(t, f.registry())

	report, err := runner.Execute(context.Background(), domain.TriggerManual, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusSucceeded, report.Run.Status)
	// Запрос к источнику выполнен, но результат отброшен
	assert.Len(t, f.source.calls(), 1)
	assert.Empty(t, f.module.calls())
	assert.Equal(t, domain.TaskStatusSucceeded, statuses(report.Tasks)[StepAlert])
	assert.Equal(t, domain.FetchFailed(), report.Tasks[0].Output)
}

func TestRunner_StepLogsCarryStepIDOnce(t *testing.T) {
	f := newFixture(t, 10)
	runner := f.runner(t, f.registry())

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := telemetry.WithLogger(context.Background(), logger)

	_, err := runner.Run(ctx, domain.TriggerManual, nil)
	require.NoError(t, err)

	var alertLines int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, strings.Count(line, "step_id="), 1, line)
		if strings.Contains(line, "level=WARN") && strings.Contains(line, "step_id="+StepAlert) {
			alertLines++
		}
	}
	assert.Equal(t, 1, alertLines)
}

func TestRunner_InferenceFailureFailsRun(t *testing.T) {
	f := newFixture(t, 45)
	broken := newEndpoint(t, `<html>502</html>`)
	registry := NewRegistry(StepsConfig{
		SourceURL:  f.source.srv.URL,
		ModuleURL:  broken.srv.URL,
		ResultsURL: f.results.srv.URL,
		Clock:      f.clock,
	})
	runner := f.runner(t, registry)

	report, err := runner.Execute(context.Background(), domain.TriggerManual, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunFailed)
	assert.ErrorIs(t, err, steps.ErrDecodeResponse)

	require.NotNil(t, report)
	assert.Equal(t, domain.RunStatusFailed, report.Run.Status)
	assert.Equal(t, domain.PhaseFailed, report.Run.Phase)
	assert.Contains(t, report.Run.Error, StepProcess)

	st := statuses(report.Tasks)
	assert.Equal(t, domain.TaskStatusFailed, st[StepProcess])
	_, forwarded := st[StepForward]
	assert.False(t, forwarded, "forward must not run after a failure")
	assert.Empty(t, f.results.calls())
}

func TestRunner_StoreFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t, 45)
	f.store.fail = true
	runner := f.runner(t, f.registry())

	run, err := runner.Run(context.Background(), domain.TriggerManual, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
}

func TestRunner_ScheduledFor(t *testing.T) {
	f := newFixture(t, 45)
	runner := f.runner(t, f.registry())

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	run, err := runner.Run(context.Background(), domain.TriggerScheduled, &at)
	require.NoError(t, err)

	require.NotNil(t, run.ScheduledFor)
	assert.Equal(t, at, *run.ScheduledFor)
	assert.Equal(t, domain.TriggerScheduled, run.Trigger)
}

// =============================================================================
// Branching and scoping
// =============================================================================

func TestRunner_InvalidBranch(t *testing.T) {
	f := newFixture(t, 45)
	registry := f.registry()
	registry.Register(StepBranch, &fakeStep{
		typ: engine.StepTypeBranch,
		fn: func(context.Context, *steps.Request) (*steps.Response, error) {
			return &steps.Response{Output: StepForward, Next: StepForward}, nil
		},
	})
	runner := f.runner(t, registry)

	report, err := runner.Execute(context.Background(), domain.TriggerManual, nil)
	assert.ErrorIs(t, err, ErrInvalidBranch)
	assert.Equal(t, domain.TaskStatusFailed, statuses(report.Tasks)[StepBranch])
}

func TestRunner_StepsSeeOnlyAncestors(t *testing.T) {
	f := newFixture(t, 45)
	registry := f.registry()

	var seen []any
	registry.Register(StepForward, &fakeStep{
		typ: engine.StepTypeForward,
		fn: func(_ context.Context, req *steps.Request) (*steps.Response, error) {
			seen = req.Outputs.Pull(StepFetch, StepAlert, StepProcess)
			return steps.EmptyResponse(), nil
		},
	})
	runner := f.runner(t, registry)

	_, err := runner.Run(context.Background(), domain.TriggerManual, nil)
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, domain.FetchSucceeded([]any{json.Number("5"), json.Number("6"), json.Number("7")}), seen[0])
	assert.Nil(t, seen[1], "alert is not an ancestor of forward")
	assert.Equal(t, "ok", seen[2])
}

func TestRunner_RejectsOverlappingRuns(t *testing.T) {
	f := newFixture(t, 45)
	registry := f.registry()

	entered := make(chan struct{})
	release := make(chan struct{})
	registry.Register(StepFetch, &fakeStep{
		typ: engine.StepTypeFetch,
		fn: func(context.Context, *steps.Request) (*steps.Response, error) {
			close(entered)
			<-release
			return steps.NewResponse(domain.FetchFailed()), nil
		},
	})

	runner, err := New(Config{Registry: registry, Clock: f.clock})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(context.Background(), domain.TriggerScheduled, nil)
		done <- err
	}()

	<-entered
	require.NotNil(t, runner.Active())

	_, err = runner.Run(context.Background(), domain.TriggerManual, nil)
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.True(t, IsBusy(err))

	close(release)
	require.NoError(t, <-done)
	assert.Nil(t, runner.Active())
}

// =============================================================================
// New
// =============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrStepNotRegistered)

	registry := NewRegistry(StepsConfig{})
	registry.Unregister(StepAlert)
	_, err = New(Config{Registry: registry})
	assert.ErrorIs(t, err, ErrStepNotRegistered)

	registry = NewRegistry(StepsConfig{})
	registry.Register(StepAlert, steps.NewForwardStep(steps.ForwardConfig{}))
	_, err = New(Config{Registry: registry})
	assert.ErrorIs(t, err, ErrStepTypeMismatch)

	_, err = New(Config{Spec: &domain.PipelineSpec{Name: "empty"}, Registry: registry})
	assert.ErrorIs(t, err, engine.ErrEmptySteps)
}
