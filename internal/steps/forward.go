package steps

import (
	"context"
	"net/http"

	"github.com/shaiso/spaicer/internal/engine"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// ForwardConfig — конфигурация шага пересылки результатов.
type ForwardConfig struct {
	// URL — endpoint приёма результатов (POST).
	URL string

	// Source — шаг, чей результат пересылается.
	Source string

	// Client — HTTP клиент. По умолчанию NewHTTPClient(DefaultHTTPTimeout).
	Client Client
}

// ForwardStep — шаг пересылки результатов.
//
// Тело запроса: {"result": <результат источника>}.
// Ответ не разбирается; ошибкой считается только сбой транспорта.
type ForwardStep struct {
	url    string
	source string
	client Client
}

// NewForwardStep создаёт ForwardStep.
func NewForwardStep(cfg ForwardConfig) *ForwardStep {
	if cfg.Client == nil {
		cfg.Client = NewHTTPClient(DefaultHTTPTimeout)
	}
	return &ForwardStep{
		url:    cfg.URL,
		source: cfg.Source,
		client: cfg.Client,
	}
}

// Type возвращает тип шага.
func (s *ForwardStep) Type() string {
	return engine.StepTypeForward
}

// Execute пересылает результат.
func (s *ForwardStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	result, _ := req.Outputs.Get(s.source)

	resp, err := s.client.Do(ctx, http.MethodPost, s.url, map[string]any{"result": result})
	if err != nil {
		return nil, err
	}

	telemetry.FromContext(ctx).Debug("results forwarded", "status", resp.StatusCode)
	return EmptyResponse(), nil
}
