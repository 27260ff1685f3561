package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/engine"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// FetchConfig — конфигурация шага загрузки данных.
type FetchConfig struct {
	// URL — источник данных (GET).
	URL string

	// Client — HTTP клиент. По умолчанию NewHTTPClient(DefaultHTTPTimeout).
	Client Client

	// Fault — инжектор искусственных сбоев. По умолчанию SecondWindowFault.
	Fault FaultInjector

	// Clock — источник текущего времени для Fault.
	Clock clockwork.Clock
}

// FetchStep — шаг загрузки данных.
//
// Выполняет GET на URL и извлекает поле "values" из JSON ответа.
// Любая ошибка (транспорт, разбор, отсутствие поля, искусственный сбой)
// превращается в маркер неудачи domain.FetchFailed. Шаг никогда не
// возвращает ошибку, поэтому run продолжается по ветке alert.
//
// Статус HTTP ответа не проверяется.
//
// Output: domain.FetchResult.
type FetchStep struct {
	url    string
	client Client
	fault  FaultInjector
	clock  clockwork.Clock
}

// NewFetchStep создаёт FetchStep.
func NewFetchStep(cfg FetchConfig) *FetchStep {
	if cfg.Client == nil {
		cfg.Client = NewHTTPClient(DefaultHTTPTimeout)
	}
	if cfg.Fault == nil {
		cfg.Fault = NewSecondWindowFault()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &FetchStep{
		url:    cfg.URL,
		client: cfg.Client,
		fault:  cfg.Fault,
		clock:  cfg.Clock,
	}
}

// Type возвращает тип шага.
func (s *FetchStep) Type() string {
	return engine.StepTypeFetch
}

// Execute загружает данные.
func (s *FetchStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	logger := telemetry.FromContext(ctx)

	values, err := s.fetch(ctx)
	if err != nil {
		logger.Debug("fetch failed", "url", s.url, "error", err)
		return NewResponse(domain.FetchFailed()), nil
	}

	if s.fault.ShouldFail(s.clock.Now()) {
		logger.Debug("fetch result discarded by fault injector")
		return NewResponse(domain.FetchFailed()), nil
	}

	logger.Debug("fetched data", "count", len(values))
	return NewResponse(domain.FetchSucceeded(values)), nil
}

// fetch выполняет запрос и извлекает "values".
func (s *FetchStep) fetch(ctx context.Context) ([]any, error) {
	resp, err := s.client.Do(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Values json.RawMessage `json:"values"`
	}
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(payload.Values)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: values", ErrMissingField)
	}

	var values []any
	if err := decodeJSON(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: values is not an array: %v", ErrDecodeResponse, err)
	}

	return values, nil
}

// fetchedValues извлекает значения из результата fetch для отправки дальше.
// Маркер неудачи передаётся как false.
func fetchedValues(v any) any {
	switch r := v.(type) {
	case domain.FetchResult:
		if r.Failed {
			return false
		}
		return r.Values
	case *domain.FetchResult:
		if r == nil || r.Failed {
			return false
		}
		return r.Values
	default:
		return v
	}
}
