// spaicer-scheduler — демон, запускающий pipeline spaicer_demo_dag по расписанию.
//
// Процесс:
//   - Загружает конфигурацию из окружения и .env
//   - Хранит историю runs в PostgreSQL (DB_URL) или в памяти
//   - Публикует события в RabbitMQ (RABBITMQ_URL), если он доступен
//   - Запускает pipeline по cron-расписанию без догона пропусков
//   - Отдаёт HTTP API, /healthz и /metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/spaicer/internal/api"
	"github.com/shaiso/spaicer/internal/config"
	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/mq"
	"github.com/shaiso/spaicer/internal/pipeline"
	"github.com/shaiso/spaicer/internal/repo"
	"github.com/shaiso/spaicer/internal/scheduler"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// runStore — история runs: запись из Runner, чтение из API.
type runStore interface {
	pipeline.Store
	api.History
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.NewLogger(os.Stdout, telemetry.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("starting spaicer-scheduler",
		"schedule", cfg.Schedule,
		"timezone", cfg.Timezone,
		"fault", cfg.Fault,
	)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// История runs и лидерство
	var (
		store  runStore
		locker scheduler.Locker
	)
	if cfg.DBURL != "" {
		pool, err := repo.NewPool(ctx, cfg.DBURL, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := repo.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")

		store = repo.NewRunRepo(pool)

		pgLocker := repo.NewLocker(pool, repo.SchedulerLockKey)
		defer func() {
			if err := pgLocker.Unlock(context.Background()); err != nil {
				logger.Warn("failed to release scheduler lock", "error", err)
			}
		}()
		locker = pgLocker
	} else {
		logger.Warn("DB_URL is not set, run history is kept in memory")
		store = repo.NewMemoryRunRepo()
	}

	// Метрики
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	observers := []pipeline.Observer{metrics}

	// RabbitMQ
	if cfg.RabbitMQURL != "" {
		mqConn, err := mq.NewConnection(ctx, cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, events are not published", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}

			publisher := mq.NewPublisher(mqConn, logger)
			observers = append(observers, mq.NewEvents(publisher, logger))
		}
	}

	// Pipeline
	stepsCfg, err := cfg.StepsConfig()
	if err != nil {
		logger.Error("invalid steps config", "error", err)
		os.Exit(1)
	}

	runner, err := pipeline.New(pipeline.Config{
		Registry:  pipeline.NewRegistry(stepsCfg),
		Store:     store,
		Observers: observers,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	// Планировщик
	sched, err := scheduler.New(scheduler.Config{
		Schedule: domain.Schedule{
			CronExpr:  cfg.Schedule,
			Timezone:  cfg.Timezone,
			StartDate: cfg.StartDate,
			Enabled:   true,
		},
		Runner:       runner,
		Locker:       locker,
		Logger:       logger,
		TickInterval: cfg.SchedTick,
	})
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start(ctx)

	// HTTP API
	handler := api.NewHandler(api.Config{
		Runner:      runner,
		History:     store,
		Schedule:    sched,
		Metrics:     promhttp.Handler(),
		HTTPMetrics: telemetry.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Logger:      logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Дожидаемся текущего run
	sched.Stop()

	logger.Info("spaicer-scheduler stopped")
}
