package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/pipeline"
	"github.com/shaiso/spaicer/internal/steps"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	ran   chan struct{}
}

func (r *fakeRunner) Run(_ context.Context, trigger domain.Trigger, scheduledFor *time.Time) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if errors.Is(r.err, pipeline.ErrRunInProgress) {
		return nil, r.err
	}

	r.calls = append(r.calls, *scheduledFor)
	if r.ran != nil {
		r.ran <- struct{}{}
	}

	run := domain.NewRun(pipeline.Name, trigger, *scheduledFor)
	if r.err != nil {
		run.MarkFailed(*scheduledFor, r.err.Error())
		return run, r.err
	}
	run.MarkSucceeded(*scheduledFor)
	return run, nil
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fakeLocker struct {
	leader bool
	err    error
}

func (l *fakeLocker) TryLock(context.Context) (bool, error) { return l.leader, l.err }

// taskLog запоминает завершённые шаги run.
type taskLog struct {
	mu    sync.Mutex
	tasks map[string]domain.TaskStatus
	run   *domain.Run
}

func (l *taskLog) RunStarted(context.Context, *domain.Run) {}

func (l *taskLog) TaskFinished(_ context.Context, _ *domain.Run, task *domain.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tasks == nil {
		l.tasks = make(map[string]domain.TaskStatus)
	}
	l.tasks[task.StepID] = task.Status
}

func (l *taskLog) RunFinished(_ context.Context, run *domain.Run) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.run = run
}

func daily() domain.Schedule {
	return domain.Schedule{
		CronExpr:  "@daily",
		Timezone:  "UTC",
		StartDate: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC),
		Enabled:   true,
	}
}

func newScheduler(t *testing.T, clock clockwork.Clock, runner Runner, locker Locker) *Scheduler {
	t.Helper()
	s, err := New(Config{Schedule: daily(), Runner: runner, Locker: locker, Clock: clock})
	require.NoError(t, err)
	return s
}

// =============================================================================
// Cron
// =============================================================================

func TestCalculateNextDue(t *testing.T) {
	sched := daily()

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "mid day",
			from: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly midnight goes to the next one",
			from: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "before start date",
			from: time.Date(2021, 12, 1, 8, 0, 0, 0, time.UTC),
			want: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateNextDue(&sched, tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateNextDue_Timezone(t *testing.T) {
	sched := daily()
	sched.Timezone = "Europe/Berlin"

	got, err := CalculateNextDue(&sched, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())

	sched.Timezone = "Mars/Olympus"
	got, err = CalculateNextDue(&sched, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), got, "falls back to UTC")
}

func TestValidateCronExpr(t *testing.T) {
	assert.NoError(t, ValidateCronExpr("@daily"))
	assert.NoError(t, ValidateCronExpr("0 9 * * 1-5"))
	assert.Error(t, ValidateCronExpr("every day"))
	assert.Error(t, ValidateCronExpr("* * * * * *"))
}

// =============================================================================
// Tick
// =============================================================================

func TestNew_InitialNextDue(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	s := newScheduler(t, clock, &fakeRunner{}, nil)

	sched := s.Schedule()
	require.NotNil(t, sched.NextDueAt)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), *sched.NextDueAt)
	assert.False(t, sched.Catchup)

	_, err := New(Config{Schedule: domain.Schedule{CronExpr: "nope"}, Runner: &fakeRunner{}})
	assert.Error(t, err)

	_, err = New(Config{Schedule: daily()})
	assert.Error(t, err)
}

func TestTick_RunsWhenDue(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	runner := &fakeRunner{}
	s := newScheduler(t, clock, runner, nil)

	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, 0, runner.count(), "not due yet")

	clock.Advance(14 * time.Hour)
	require.NoError(t, s.Tick(context.Background()))

	require.Equal(t, 1, runner.count())
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), runner.calls[0])

	sched := s.Schedule()
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), *sched.NextDueAt)
	assert.NotNil(t, sched.LastRunID)
	assert.Equal(t, clock.Now(), *sched.LastRunAt)

	// Повторный тик в тот же момент ничего не запускает
	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, 1, runner.count())
}

func TestTick_NoCatchup(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	runner := &fakeRunner{}
	s := newScheduler(t, clock, runner, nil)

	// Процесс "проспал" пять интервалов
	clock.Advance(5*24*time.Hour + time.Hour)
	require.NoError(t, s.Tick(context.Background()))
	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, 1, runner.count())
	assert.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), *s.Schedule().NextDueAt)
}

func TestTick_BusyRunnerDoesNotAdvance(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC))
	runner := &fakeRunner{err: pipeline.ErrRunInProgress}
	s := newScheduler(t, clock, runner, nil)
	due := *s.Schedule().NextDueAt

	clock.Advance(time.Second)
	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, due, *s.Schedule().NextDueAt)
	assert.Nil(t, s.Schedule().LastRunID)
}

func TestTick_FailedRunStillAdvances(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC))
	runner := &fakeRunner{err: errors.New("module unreachable")}
	s := newScheduler(t, clock, runner, nil)

	clock.Advance(time.Second)
	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, 1, runner.count())
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), *s.Schedule().NextDueAt)
}

func TestTick_CancelDuringRunFinishesRun(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Остановка планировщика приходит, пока идёт запрос к источнику
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cancel()
		_, _ = w.Write([]byte(`{"values": [1, 2, 3]}`))
	}))
	t.Cleanup(source.Close)

	var moduleCalls, resultsCalls atomic.Int32
	module := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		moduleCalls.Add(1)
		_, _ = w.Write([]byte(`{"result": "ok"}`))
	}))
	t.Cleanup(module.Close)
	results := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resultsCalls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(results.Close)

	log := &taskLog{}
	runner, err := pipeline.New(pipeline.Config{
		Registry: pipeline.NewRegistry(pipeline.StepsConfig{
			SourceURL:  source.URL,
			ModuleURL:  module.URL,
			ResultsURL: results.URL,
			Fault:      steps.NoFault{},
			Clock:      clock,
		}),
		Observers: []pipeline.Observer{log},
		Clock:     clock,
	})
	require.NoError(t, err)

	s := newScheduler(t, clock, runner, nil)
	clock.Advance(time.Second)
	require.NoError(t, s.Tick(ctx))
	require.Error(t, ctx.Err())

	assert.Equal(t, int32(1), moduleCalls.Load())
	assert.Equal(t, int32(1), resultsCalls.Load())

	log.mu.Lock()
	defer log.mu.Unlock()
	require.NotNil(t, log.run)
	assert.Equal(t, domain.RunStatusSucceeded, log.run.Status)
	assert.Equal(t, domain.TaskStatusSkipped, log.tasks[pipeline.StepAlert])
	assert.Equal(t, domain.TaskStatusSucceeded, log.tasks[pipeline.StepForward])

	assert.NotNil(t, s.Schedule().LastRunID)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), *s.Schedule().NextDueAt)
}

func TestTick_Disabled(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC))
	runner := &fakeRunner{}
	s := newScheduler(t, clock, runner, nil)
	s.SetEnabled(false)

	clock.Advance(time.Hour)
	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, 0, runner.count())
}

func TestTick_Leadership(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC))
	runner := &fakeRunner{}
	locker := &fakeLocker{leader: false}
	s := newScheduler(t, clock, runner, locker)

	clock.Advance(time.Second)
	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, 0, runner.count(), "followers do not run")

	locker.err = errors.New("connection reset")
	assert.Error(t, s.Tick(context.Background()))

	locker.err = nil
	locker.leader = true
	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, 1, runner.count())
}

// =============================================================================
// Loop
// =============================================================================

func TestStartStop(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 23, 59, 58, 0, time.UTC))
	runner := &fakeRunner{ran: make(chan struct{}, 1)}
	s := newScheduler(t, clock, runner, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.Start(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(2 * time.Second)

	select {
	case <-runner.ran:
	case <-ctx.Done():
		t.Fatal("scheduled run did not start")
	}

	s.Stop()
	assert.Equal(t, 1, runner.count())
}
