package steps

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shaiso/spaicer/internal/engine"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// InferenceConfig — конфигурация шага обработки AI модулем.
type InferenceConfig struct {
	// URL — endpoint AI модуля (POST).
	URL string

	// Source — шаг, чьи значения отправляются на обработку.
	Source string

	// Client — HTTP клиент. По умолчанию NewHTTPClient(DefaultHTTPTimeout).
	Client Client
}

// InferenceStep — шаг обработки данных AI модулем.
//
// Тело запроса: {"values": [<значения источника>]}. Значения обёрнуты
// во внешний список, так как результаты читаются через Pull.
// Из ответа извлекается поле "result"; его отсутствие — ошибка шага.
//
// Output: значение "result" как есть.
type InferenceStep struct {
	url    string
	source string
	client Client
}

// NewInferenceStep создаёт InferenceStep.
func NewInferenceStep(cfg InferenceConfig) *InferenceStep {
	if cfg.Client == nil {
		cfg.Client = NewHTTPClient(DefaultHTTPTimeout)
	}
	return &InferenceStep{
		url:    cfg.URL,
		source: cfg.Source,
		client: cfg.Client,
	}
}

// Type возвращает тип шага.
func (s *InferenceStep) Type() string {
	return engine.StepTypeInference
}

// Execute отправляет данные на обработку.
func (s *InferenceStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	pulled := req.Outputs.Pull(s.source)
	batch := make([]any, len(pulled))
	for i, v := range pulled {
		batch[i] = fetchedValues(v)
	}

	resp, err := s.client.Do(ctx, http.MethodPost, s.url, map[string]any{"values": batch})
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, err
	}

	result, ok := payload["result"]
	if !ok {
		return nil, fmt.Errorf("%w: result", ErrMissingField)
	}

	telemetry.FromContext(ctx).Debug("inference done", "status", resp.StatusCode)
	return NewResponse(result), nil
}
