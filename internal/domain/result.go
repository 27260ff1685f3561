package domain

// FetchResult — результат шага загрузки данных.
//
// Либо упорядоченная последовательность значений, либо маркер неудачи.
// Причина неудачи не сохраняется: сетевые ошибки, ошибки разбора
// и искусственные сбои неразличимы.
type FetchResult struct {
	Values []any `json:"values,omitempty"`
	Failed bool  `json:"failed,omitempty"`
}

// FetchFailed возвращает маркер неудачи.
func FetchFailed() FetchResult {
	return FetchResult{Failed: true}
}

// FetchSucceeded оборачивает полученные значения.
func FetchSucceeded(values []any) FetchResult {
	if values == nil {
		values = []any{}
	}
	return FetchResult{Values: values}
}

// Truthy возвращает true, если данные пригодны для обработки:
// не маркер неудачи и хотя бы одно значение.
func (r FetchResult) Truthy() bool {
	return !r.Failed && len(r.Values) > 0
}
