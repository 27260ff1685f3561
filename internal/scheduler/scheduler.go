package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/pipeline"
)

const defaultTickInterval = time.Second

// Runner — то, что запускает pipeline (pipeline.Runner).
type Runner interface {
	Run(ctx context.Context, trigger domain.Trigger, scheduledFor *time.Time) (*domain.Run, error)
}

// Locker — блокировка лидера между экземплярами планировщика.
type Locker interface {
	// TryLock пытается стать лидером (или подтверждает лидерство).
	TryLock(ctx context.Context) (bool, error)
}

// Scheduler — планировщик запусков pipeline.
//
// Пропущенные интервалы не догоняются: после каждого запуска
// NextDueAt вычисляется от текущего момента.
type Scheduler struct {
	runner Runner
	locker Locker
	clock  clockwork.Clock
	logger *slog.Logger
	tick   time.Duration

	mu    sync.RWMutex
	sched domain.Schedule

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config — конфигурация Scheduler.
type Config struct {
	// Schedule — расписание. NextDueAt вычисляется при создании, если не задан.
	Schedule domain.Schedule

	Runner Runner

	// Locker — опционально. Без него экземпляр всегда считается лидером.
	Locker Locker

	Clock  clockwork.Clock
	Logger *slog.Logger

	// TickInterval — период проверки расписания (default: 1s).
	TickInterval time.Duration
}

// New создаёт новый Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Runner == nil {
		return nil, errors.New("scheduler: runner is required")
	}
	if err := ValidateCronExpr(cfg.Schedule.CronExpr); err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}

	sched := cfg.Schedule
	sched.Catchup = false
	if sched.NextDueAt == nil {
		next, err := CalculateNextDue(&sched, clock.Now())
		if err != nil {
			return nil, err
		}
		sched.Advance(next)
	}

	return &Scheduler{
		runner: cfg.Runner,
		locker: cfg.Locker,
		clock:  clock,
		logger: logger,
		tick:   tick,
		sched:  sched,
	}, nil
}

// Schedule возвращает копию текущего расписания.
func (s *Scheduler) Schedule() domain.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sched
}

// SetEnabled включает или выключает расписание.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.sched.Enabled = enabled
	s.mu.Unlock()
}

// Tick выполняет один тик планировщика.
//
// 1. Проверяет, наступил ли NextDueAt
// 2. Проверяет лидерство (если задан Locker)
// 3. Запускает pipeline и ждёт завершения
// 4. Переносит NextDueAt на следующий интервал после текущего момента
//
// Если pipeline уже выполняется, тик пропускается без переноса NextDueAt.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.clock.Now()

	s.mu.RLock()
	due := s.sched.IsDue(now)
	var dueAt time.Time
	if s.sched.NextDueAt != nil {
		dueAt = *s.sched.NextDueAt
	}
	s.mu.RUnlock()

	if !due {
		return nil
	}

	if s.locker != nil {
		leader, err := s.locker.TryLock(ctx)
		if err != nil {
			return fmt.Errorf("acquire leader lock: %w", err)
		}
		if !leader {
			s.logger.Debug("not a leader, skipping tick")
			return nil
		}
	}

	s.logger.Info("schedule due", "due_at", dueAt)

	// Начатый run доводится до конца и при остановке планировщика.
	run, err := s.runner.Run(context.WithoutCancel(ctx), domain.TriggerScheduled, &dueAt)
	if pipeline.IsBusy(err) {
		s.logger.Info("pipeline busy, tick skipped", "due_at", dueAt)
		return nil
	}

	finishedAt := s.clock.Now()

	s.mu.Lock()
	next, nextErr := CalculateNextDue(&s.sched, finishedAt)
	if nextErr == nil {
		if run != nil {
			s.sched.RecordRun(run.ID, finishedAt, next)
		} else {
			s.sched.Advance(next)
		}
	}
	s.mu.Unlock()

	if nextErr != nil {
		return fmt.Errorf("calculate next due: %w", nextErr)
	}

	if err != nil {
		s.logger.Warn("scheduled run failed", "error", err, "next_due_at", next)
		return nil
	}

	s.logger.Info("scheduled run completed", "run_id", run.ID, "next_due_at", next)
	return nil
}

// Start запускает цикл планировщика в фоне.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	next := s.Schedule().NextDueAt
	s.logger.Info("starting scheduler", "tick", s.tick, "next_due_at", next)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop останавливает цикл и ждёт завершения текущего тика.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := s.clock.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
