package steps

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FaultInjector решает, нужно ли объявить успешный fetch неудачным.
//
// Используется для демонстрации ветки alert.
type FaultInjector interface {
	ShouldFail(now time.Time) bool
}

// FaultFunc — адаптер функции к FaultInjector.
type FaultFunc func(now time.Time) bool

// ShouldFail вызывает f(now).
func (f FaultFunc) ShouldFail(now time.Time) bool {
	return f(now)
}

// NoFault никогда не вмешивается.
type NoFault struct{}

// ShouldFail всегда возвращает false.
func (NoFault) ShouldFail(time.Time) bool { return false }

// SecondWindowFault объявляет fetch неудачным,
// если секунда текущей минуты меньше Before.
type SecondWindowFault struct {
	Before int
}

// DefaultSecondWindow — порог по умолчанию: первая половина минуты.
const DefaultSecondWindow = 30

// NewSecondWindowFault создаёт SecondWindowFault с порогом по умолчанию.
func NewSecondWindowFault() SecondWindowFault {
	return SecondWindowFault{Before: DefaultSecondWindow}
}

// ShouldFail проверяет секунду now.
func (f SecondWindowFault) ShouldFail(now time.Time) bool {
	return now.Second() < f.Before
}

// ProbabilityFault объявляет fetch неудачным с вероятностью p.
type ProbabilityFault struct {
	p   float64
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewProbabilityFault создаёт ProbabilityFault.
// src может быть nil, тогда используется случайный seed.
func NewProbabilityFault(p float64, src rand.Source) *ProbabilityFault {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &ProbabilityFault{p: p, rnd: rand.New(src)}
}

// ShouldFail бросает монетку.
func (f *ProbabilityFault) ShouldFail(time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rnd.Float64() < f.p
}

// ParseFault разбирает описание инжектора из конфигурации.
//
// Поддерживаемые значения:
//   - "second-window" или пустая строка — SecondWindowFault{Before: 30}
//   - "none" — NoFault
//   - "probability:<p>", 0 <= p <= 1 — ProbabilityFault
func ParseFault(spec string) (FaultInjector, error) {
	spec = strings.TrimSpace(strings.ToLower(spec))

	switch {
	case spec == "" || spec == "second-window":
		return NewSecondWindowFault(), nil
	case spec == "none":
		return NoFault{}, nil
	case strings.HasPrefix(spec, "probability:"):
		p, err := strconv.ParseFloat(strings.TrimPrefix(spec, "probability:"), 64)
		if err != nil || p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: fault probability must be in [0, 1]: %q", ErrInvalidConfig, spec)
		}
		return NewProbabilityFault(p, nil), nil
	default:
		return nil, fmt.Errorf("%w: unknown fault mode %q", ErrInvalidConfig, spec)
	}
}
