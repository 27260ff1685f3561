package steps

import (
	"context"

	"github.com/shaiso/spaicer/internal/engine"
	"github.com/shaiso/spaicer/internal/telemetry"
)

// AlertMessage — сообщение об отсутствии данных.
const AlertMessage = "Send alert e-mail now!"

// AlertStep — шаг оповещения.
//
// Пока только пишет предупреждение в лог. Реальная отправка писем
// не реализована. Шаг никогда не завершается ошибкой.
type AlertStep struct {
	message string
}

// NewAlertStep создаёт AlertStep. Пустое сообщение заменяется на AlertMessage.
func NewAlertStep(message string) *AlertStep {
	if message == "" {
		message = AlertMessage
	}
	return &AlertStep{message: message}
}

// Type возвращает тип шага.
func (s *AlertStep) Type() string {
	return engine.StepTypeAlert
}

// Execute пишет оповещение.
func (s *AlertStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	telemetry.FromContext(ctx).Warn(s.message)
	return EmptyResponse(), nil
}
