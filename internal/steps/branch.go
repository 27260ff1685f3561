package steps

import (
	"context"
	"fmt"
	"reflect"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/engine"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// AggregatePolicy — как объединять несколько результатов fetch.
type AggregatePolicy string

const (
	// AllSucceeded — успех, только если каждый источник дал данные.
	AllSucceeded AggregatePolicy = "all"

	// AnySucceeded — успех, если данные дал хотя бы один источник.
	AnySucceeded AggregatePolicy = "any"
)

// BranchConfig — конфигурация шага ветвления.
type BranchConfig struct {
	// Sources — шаги, результаты которых проверяются.
	Sources []string

	// Policy — политика объединения. По умолчанию AllSucceeded.
	Policy AggregatePolicy

	// OnSuccess — следующий шаг при наличии данных.
	OnSuccess string

	// OnFailure — следующий шаг при их отсутствии.
	OnFailure string
}

// BranchStep — шаг ветвления.
//
// Читает результаты Sources и выбирает ровно одного преемника.
// Output и Response.Next — ID выбранного шага.
type BranchStep struct {
	cfg BranchConfig
}

// NewBranchStep создаёт BranchStep.
func NewBranchStep(cfg BranchConfig) (*BranchStep, error) {
	if cfg.OnSuccess == "" || cfg.OnFailure == "" {
		return nil, fmt.Errorf("%w: branch: both successors are required", ErrInvalidConfig)
	}
	if cfg.OnSuccess == cfg.OnFailure {
		return nil, fmt.Errorf("%w: branch: successors must differ", ErrInvalidConfig)
	}
	switch cfg.Policy {
	case "":
		cfg.Policy = AllSucceeded
	case AllSucceeded, AnySucceeded:
	default:
		return nil, fmt.Errorf("%w: branch: unknown policy %q", ErrInvalidConfig, cfg.Policy)
	}
	return &BranchStep{cfg: cfg}, nil
}

// Type возвращает тип шага.
func (s *BranchStep) Type() string {
	return engine.StepTypeBranch
}

// Successors возвращает оба возможных преемника.
func (s *BranchStep) Successors() (onSuccess, onFailure string) {
	return s.cfg.OnSuccess, s.cfg.OnFailure
}

// Execute выбирает преемника.
func (s *BranchStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	pulled := req.Outputs.Pull(s.cfg.Sources...)

	next := s.cfg.OnFailure
	if s.decide(pulled) {
		next = s.cfg.OnSuccess
	}

	telemetry.FromContext(ctx).Debug("branch decided",
		"fetched_data", pulled,
		"next", next,
	)

	return &Response{Output: next, Next: next}, nil
}

// decide применяет политику к результатам источников.
func (s *BranchStep) decide(pulled []any) bool {
	if len(pulled) == 0 {
		return false
	}

	if s.cfg.Policy == AnySucceeded {
		for _, v := range pulled {
			if truthy(v) {
				return true
			}
		}
		return false
	}

	for _, v := range pulled {
		if !truthy(v) {
			return false
		}
	}
	return true
}

// truthy проверяет, содержит ли значение пригодные данные.
func truthy(v any) bool {
	switch r := v.(type) {
	case nil:
		return false
	case domain.FetchResult:
		return r.Truthy()
	case *domain.FetchResult:
		return r != nil && r.Truthy()
	case bool:
		return r
	case string:
		return r != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
