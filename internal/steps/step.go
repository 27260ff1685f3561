package steps

import (
	"context"
	"errors"

	"github.com/shaiso/spaicer/internal/engine"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — шаг не найден в реестре.
	ErrStepNotFound = errors.New("step not found")

	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")

	// ErrHTTPRequest — запрос к внешнему endpoint не выполнен.
	ErrHTTPRequest = errors.New("http request failed")

	// ErrDecodeResponse — тело ответа не является ожидаемым JSON.
	ErrDecodeResponse = errors.New("decode response failed")

	// ErrMissingField — в ответе нет обязательного поля.
	ErrMissingField = errors.New("response field missing")
)

// Step — интерфейс шага pipeline.
//
// Каждый шаг (fetch, branch, alert, inference, forward) реализует этот интерфейс.
type Step interface {
	// Type возвращает тип шага.
	Type() string

	// Execute выполняет шаг и возвращает результат.
	// Ошибка означает фатальный сбой шага и, как следствие, всего run.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request — входные данные для выполнения шага.
type Request struct {
	// StepID — идентификатор шага.
	StepID string

	// Outputs — результаты уже завершённых шагов этого run.
	// Видны только предки шага в DAG.
	Outputs engine.Reader
}

// Response — результат выполнения шага.
type Response struct {
	// Output — значение, которое попадёт в контекст run под StepID.
	Output any

	// Next — ID выбранного следующего шага.
	// Заполняется только шагом ветвления.
	Next string
}

// NewRequest создаёт новый Request.
func NewRequest(stepID string, outputs engine.Reader) *Request {
	if outputs == nil {
		outputs = engine.NewContext()
	}
	return &Request{
		StepID:  stepID,
		Outputs: outputs,
	}
}

// NewResponse создаёт Response с результатом шага.
func NewResponse(output any) *Response {
	return &Response{Output: output}
}

// EmptyResponse возвращает Response без результата.
func EmptyResponse() *Response {
	return &Response{}
}
