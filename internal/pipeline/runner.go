package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/engine"
	"github.com/shaiso/spaicer/internal/steps"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// Store — хранилище истории runs и tasks.
//
// Реализуется repo.RunRepo (PostgreSQL) и repo.MemoryRunRepo.
type Store interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	CreateTask(ctx context.Context, task *domain.Task) error
	UpdateTask(ctx context.Context, task *domain.Task) error
}

// Observer получает уведомления о ходе выполнения.
//
// Реализации сами обрабатывают свои ошибки: выполнение run от них не зависит.
type Observer interface {
	RunStarted(ctx context.Context, run *domain.Run)
	TaskFinished(ctx context.Context, run *domain.Run, task *domain.Task)
	RunFinished(ctx context.Context, run *domain.Run)
}

// Config — конфигурация Runner.
type Config struct {
	// Spec — описание pipeline. По умолчанию Definition().
	Spec *domain.PipelineSpec

	// Registry — реализации шагов по ID.
	Registry *steps.Registry

	// Store — хранилище истории. Может быть nil.
	Store Store

	// Observers — получатели событий (метрики, RabbitMQ).
	Observers []Observer

	// Clock — часы для временных меток.
	Clock clockwork.Clock

	// Logger
	Logger *slog.Logger
}

// Report — итог выполнения run.
type Report struct {
	Run   *domain.Run
	Tasks []*domain.Task
}

// Runner выполняет pipeline.
//
// Шаги выполняются строго последовательно в топологическом порядке.
// Одновременно может выполняться только один run.
type Runner struct {
	spec      *domain.PipelineSpec
	dag       *engine.DAG
	registry  *steps.Registry
	store     Store
	observers []Observer
	clock     clockwork.Clock
	logger    *slog.Logger

	mu     sync.Mutex
	active *domain.Run
}

// New создаёт Runner.
//
// Проверяет, что PipelineSpec валиден и для каждого шага
// зарегистрирована реализация нужного типа.
func New(cfg Config) (*Runner, error) {
	spec := cfg.Spec
	if spec == nil {
		spec = Definition()
	}

	dag, err := engine.BuildDAG(spec)
	if err != nil {
		return nil, fmt.Errorf("build DAG: %w", err)
	}

	if cfg.Registry == nil {
		return nil, fmt.Errorf("%w: registry is nil", ErrStepNotRegistered)
	}
	for i := range spec.Steps {
		def := &spec.Steps[i]
		step, err := cfg.Registry.Get(def.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrStepNotRegistered, def.ID)
		}
		if step.Type() != def.Type {
			return nil, fmt.Errorf("%w: %s is %q, registered %q", ErrStepTypeMismatch, def.ID, def.Type, step.Type())
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		spec:      spec,
		dag:       dag,
		registry:  cfg.Registry,
		store:     cfg.Store,
		observers: cfg.Observers,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Spec возвращает описание pipeline.
func (r *Runner) Spec() *domain.PipelineSpec {
	return r.spec
}

// DAG возвращает граф шагов.
func (r *Runner) DAG() *engine.DAG {
	return r.dag
}

// Active возвращает копию выполняющегося run или nil.
func (r *Runner) Active() *domain.Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return nil
	}
	run := *r.active
	return &run
}

// Run выполняет pipeline один раз и возвращает завершённый run.
func (r *Runner) Run(ctx context.Context, trigger domain.Trigger, scheduledFor *time.Time) (*domain.Run, error) {
	report, err := r.Execute(ctx, trigger, scheduledFor)
	if report == nil {
		return nil, err
	}
	return report.Run, err
}

// Execute выполняет pipeline один раз.
//
// При ошибке шага возвращает и Report (run в статусе FAILED),
// и ошибку, обёрнутую в ErrRunFailed.
func (r *Runner) Execute(ctx context.Context, trigger domain.Trigger, scheduledFor *time.Time) (*Report, error) {
	run := domain.NewRun(r.spec.Name, trigger, r.clock.Now())
	run.ScheduledFor = scheduledFor

	if !r.acquire(run) {
		return nil, ErrRunInProgress
	}
	defer r.release()

	logger := telemetry.WithRunID(r.logger, run.ID.String())
	ctx = telemetry.WithLogger(ctx, logger)

	r.storeRun(ctx, run, true)

	run.MarkRunning(r.clock.Now())
	r.storeRun(ctx, run, false)
	for _, o := range r.observers {
		o.RunStarted(ctx, run)
	}

	logger.Info("run started",
		"pipeline", run.Pipeline,
		"trigger", run.Trigger,
		"steps", r.dag.Size(),
	)

	state := newRunState(run, r.dag)
	runErr := r.walk(ctx, state)

	if runErr != nil {
		run.MarkFailed(r.clock.Now(), runErr.Error())
	} else {
		run.MarkSucceeded(r.clock.Now())
	}
	r.storeRun(ctx, run, false)
	for _, o := range r.observers {
		o.RunFinished(ctx, run)
	}

	report := &Report{Run: run, Tasks: state.orderedTasks()}

	if runErr != nil {
		logger.Error("run failed", "duration", run.Duration(), "error", runErr)
		return report, fmt.Errorf("%w: %w", ErrRunFailed, runErr)
	}

	logger.Info("run completed", "duration", run.Duration())
	return report, nil
}

// walk обходит DAG и выполняет или пропускает каждый шаг.
// Останавливается на первой ошибке.
func (r *Runner) walk(ctx context.Context, state *runState) error {
	for _, node := range r.dag.Order {
		if state.shouldSkip(node) {
			r.skipStep(ctx, state, node)
			continue
		}
		if err := r.executeStep(ctx, state, node); err != nil {
			return err
		}
	}
	return nil
}

// skipStep записывает task в статусе SKIPPED.
func (r *Runner) skipStep(ctx context.Context, state *runState, node *engine.Node) {
	task := domain.NewTask(state.run.ID, node.Step, r.clock.Now())
	task.MarkSkipped(r.clock.Now())
	state.setTask(task)

	r.storeTask(ctx, task, true)
	r.notifyTask(ctx, state.run, task)

	telemetry.FromContext(ctx).Debug("step skipped", "step_id", node.ID)
}

// executeStep выполняет один шаг и сохраняет его результат в контекст run.
func (r *Runner) executeStep(ctx context.Context, state *runState, node *engine.Node) error {
	logger := telemetry.WithStepID(telemetry.FromContext(ctx), node.ID)
	ctx = telemetry.WithLogger(ctx, logger)

	step, err := r.registry.Get(node.ID)
	if err != nil {
		return err
	}

	if node.Step.Phase != "" {
		state.run.EnterPhase(node.Step.Phase)
		r.storeRun(ctx, state.run, false)
	}

	task := domain.NewTask(state.run.ID, node.Step, r.clock.Now())
	task.MarkRunning(r.clock.Now())
	state.setTask(task)
	r.storeTask(ctx, task, true)

	logger.Debug("step started", "type", node.Step.Type)

	resp, err := step.Execute(ctx, steps.NewRequest(node.ID, state.view(node)))
	if err == nil && resp == nil {
		resp = steps.EmptyResponse()
	}
	if err == nil && node.Step.Type == engine.StepTypeBranch {
		err = r.checkBranch(node, resp.Next)
	}
	if err == nil {
		err = state.outputs.Set(node.ID, resp.Output)
	}

	if err != nil {
		task.MarkFailed(r.clock.Now(), err.Error())
		r.storeTask(ctx, task, false)
		r.notifyTask(ctx, state.run, task)

		logger.Warn("step failed", "error", err)
		return fmt.Errorf("step %s: %w", node.ID, err)
	}

	if node.Step.Type == engine.StepTypeBranch {
		state.selectBranch(node.ID, resp.Next)
	}

	task.MarkSucceeded(r.clock.Now(), resp.Output, resp.Next)
	r.storeTask(ctx, task, false)
	r.notifyTask(ctx, state.run, task)

	logger.Debug("step completed", "duration", task.Duration(), "next", resp.Next)
	return nil
}

// checkBranch проверяет, что выбранный шаг — прямой преемник шага ветвления.
func (r *Runner) checkBranch(node *engine.Node, next string) error {
	if next == "" {
		return fmt.Errorf("%w: %s selected nothing", ErrInvalidBranch, node.ID)
	}
	if !r.dag.IsDependent(node.ID, next) {
		return fmt.Errorf("%w: %s is not a successor of %s", ErrInvalidBranch, next, node.ID)
	}
	return nil
}

func (r *Runner) acquire(run *domain.Run) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return false
	}
	r.active = run
	return true
}

func (r *Runner) release() {
	r.mu.Lock()
	r.active = nil
	r.mu.Unlock()
}

// storeRun сохраняет run. Ошибки хранилища только логируются.
func (r *Runner) storeRun(ctx context.Context, run *domain.Run, create bool) {
	if r.store == nil {
		return
	}

	var err error
	if create {
		err = r.store.Create(ctx, run)
	} else {
		err = r.store.Update(ctx, run)
	}
	if err != nil {
		telemetry.FromContext(ctx).Error("failed to store run", "create", create, "error", err)
	}
}

// storeTask сохраняет task. Ошибки хранилища только логируются.
func (r *Runner) storeTask(ctx context.Context, task *domain.Task, create bool) {
	if r.store == nil {
		return
	}

	var err error
	if create {
		err = r.store.CreateTask(ctx, task)
	} else {
		err = r.store.UpdateTask(ctx, task)
	}
	if err != nil {
		telemetry.FromContext(ctx).Error("failed to store task",
			"step_id", task.StepID,
			"create", create,
			"error", err,
		)
	}
}

func (r *Runner) notifyTask(ctx context.Context, run *domain.Run, task *domain.Task) {
	for _, o := range r.observers {
		o.TaskFinished(ctx, run, task)
	}
}

// IsBusy сообщает, что ошибка вызвана уже выполняющимся run.
func IsBusy(err error) bool {
	return errors.Is(err, ErrRunInProgress)
}
