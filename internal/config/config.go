// Package config загружает конфигурацию spaicer из окружения.
//
// Перед чтением переменных подгружается .env из рабочей директории,
// если он есть. Уже заданные переменные окружения не перезаписываются.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shaiso/spaicer/internal/pipeline"
	"github.com/shaiso/spaicer/internal/scheduler"
	"github.com/shaiso/spaicer/internal/steps"
)

// Значения по умолчанию.
const (
	DefaultHTTPTimeout = 30 * time.Second
	DefaultSchedule    = "@daily"
	DefaultTimezone    = "UTC"
	DefaultStartDate   = "2022-01-03"
	DefaultFault       = "second-window"
	DefaultSchedTick   = time.Second
	DefaultPort        = "8080"
	DefaultAPIURL      = "http://localhost:8080"
)

// ErrInvalidConfig — конфигурация не прошла проверку.
var ErrInvalidConfig = errors.New("invalid config")

// Config — конфигурация процессов spaicer.
type Config struct {
	// Endpoints
	SourceURL  string
	ModuleURL  string
	ResultsURL string

	// HTTPTimeout — таймаут одного HTTP запроса шага.
	HTTPTimeout time.Duration

	// Расписание
	Schedule  string
	Timezone  string
	StartDate time.Time
	SchedTick time.Duration

	// Fault — режим искусственных сбоев fetch (см. steps.ParseFault).
	Fault string

	// Инфраструктура. Пустые значения отключают компонент.
	DBURL       string
	RabbitMQURL string

	// Port — порт HTTP API.
	Port string

	// APIURL — адрес API для CLI.
	APIURL string

	LogLevel  string
	LogFormat string
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv собирает Config из функции чтения переменных и проверяет его.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		SourceURL:   env("SPAICER_SOURCE_URL", pipeline.DefaultSourceURL),
		ModuleURL:   env("SPAICER_MODULE_URL", pipeline.DefaultModuleURL),
		ResultsURL:  env("SPAICER_RESULTS_URL", pipeline.DefaultResultsURL),
		Schedule:    env("SPAICER_SCHEDULE", DefaultSchedule),
		Timezone:    env("SPAICER_TIMEZONE", DefaultTimezone),
		Fault:       env("SPAICER_FAULT", DefaultFault),
		DBURL:       env("DB_URL", ""),
		RabbitMQURL: env("RABBITMQ_URL", ""),
		Port:        env("SPAICER_PORT", DefaultPort),
		APIURL:      env("SPAICER_API_URL", DefaultAPIURL),
		LogLevel:    env("LOG_LEVEL", "INFO"),
		LogFormat:   env("LOG_FORMAT", "json"),
	}

	var errs []error

	var err error
	if cfg.HTTPTimeout, err = time.ParseDuration(env("HTTP_TIMEOUT", DefaultHTTPTimeout.String())); err != nil {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT: %w", err))
	}
	if cfg.SchedTick, err = time.ParseDuration(env("SCHED_TICK", DefaultSchedTick.String())); err != nil {
		errs = append(errs, fmt.Errorf("SCHED_TICK: %w", err))
	}
	if cfg.StartDate, err = time.Parse(time.DateOnly, env("SPAICER_START_DATE", DefaultStartDate)); err != nil {
		errs = append(errs, fmt.Errorf("SPAICER_START_DATE: %w", err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения конфигурации.
func (c *Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{
		"SPAICER_SOURCE_URL":  c.SourceURL,
		"SPAICER_MODULE_URL":  c.ModuleURL,
		"SPAICER_RESULTS_URL": c.ResultsURL,
		"SPAICER_API_URL":     c.APIURL,
	} {
		if err := validateHTTPURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.SchedTick <= 0 {
		errs = append(errs, errors.New("SCHED_TICK must be positive"))
	}
	if err := scheduler.ValidateCronExpr(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("SPAICER_SCHEDULE: %w", err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("SPAICER_TIMEZONE: %w", err))
	}
	if _, err := steps.ParseFault(c.Fault); err != nil {
		errs = append(errs, fmt.Errorf("SPAICER_FAULT: %w", err))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("SPAICER_PORT is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// FaultInjector возвращает инжектор сбоев по Fault.
func (c *Config) FaultInjector() (steps.FaultInjector, error) {
	return steps.ParseFault(c.Fault)
}

// StepsConfig собирает параметры шагов pipeline: endpoints,
// HTTP клиент с HTTPTimeout и инжектор сбоев.
func (c *Config) StepsConfig() (pipeline.StepsConfig, error) {
	fault, err := c.FaultInjector()
	if err != nil {
		return pipeline.StepsConfig{}, err
	}
	return pipeline.StepsConfig{
		SourceURL:  c.SourceURL,
		ModuleURL:  c.ModuleURL,
		ResultsURL: c.ResultsURL,
		Client:     steps.NewHTTPClient(c.HTTPTimeout),
		Fault:      fault,
	}, nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
