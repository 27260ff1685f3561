// Package steps содержит реализации шагов pipeline spaicer.
//
// # Обзор
//
// Каждый шаг:
//   - Получает Request с ID шага и видом на результаты предков (engine.Reader)
//   - Выполняет действие (HTTP запрос, выбор ветки, оповещение)
//   - Возвращает Response с результатом и, для ветвления, выбранным преемником
//
// # Интерфейс Step
//
//	type Step interface {
//	    Type() string
//	    Execute(ctx context.Context, req *Request) (*Response, error)
//	}
//
// # Registry
//
// Шаги pipeline сконфигурированы под конкретные endpoints, поэтому
// Registry хранит экземпляры по ID шага:
//
//	registry := steps.NewRegistry()
//	registry.Register("fetch_data", steps.NewFetchStep(steps.FetchConfig{URL: url}))
//	step, err := registry.Get("fetch_data")
//
// # Типы шагов
//
// ## Fetch (fetch.go)
//
// GET на источник, извлечение поля "values". Любой сбой сворачивается
// в domain.FetchFailed; ошибку шаг не возвращает. Искусственные сбои
// задаются через FaultInjector (fault.go).
//
// ## Branch (branch.go)
//
// Проверяет результаты fetch и выбирает OnSuccess или OnFailure.
//
// ## Alert (alert.go)
//
// Пишет "Send alert e-mail now!" на уровне WARN.
//
// ## Inference (inference.go)
//
// POST {"values": [[...]]} на AI модуль, извлечение поля "result".
//
// ## Forward (forward.go)
//
// POST {"result": ...} на приёмник результатов. Ответ игнорируется.
//
// # HTTP
//
// Все шаги ходят наружу через интерфейс Client (client.go).
// HTTPClient ограничивает время запроса и размер ответа.
// Статус ответа не проверяется ни одним шагом.
//
// # Обработка ошибок
//
//	var (
//	    ErrStepCancelled   // context cancelled
//	    ErrInvalidConfig   // неверная конфигурация
//	    ErrHTTPRequest     // ошибка транспорта
//	    ErrDecodeResponse  // тело ответа не JSON
//	    ErrMissingField    // в ответе нет нужного поля
//	)
//
// Ошибка inference или forward завершает run с ошибкой.
package steps
