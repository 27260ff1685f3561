package engine

import (
	"fmt"
	"maps"
	"slices"
)

// Reader — доступ шага к результатам других шагов run.
type Reader interface {
	// Get возвращает результат шага и признак его наличия.
	Get(stepID string) (any, bool)

	// Pull возвращает результаты шагов в порядке аргументов.
	// Для отсутствующих шагов на соответствующей позиции стоит nil.
	// Даже для одного шага результат — последовательность,
	// оборачивающая значение.
	Pull(stepIDs ...string) []any
}

// Context — контекст одного run: stepID → результат шага.
//
// Каждый ключ записывается один раз, читать можно сколько угодно.
// Новый run получает новый Context, между runs ничего не переносится.
// Блокировки не нужны: шаги выполняются строго последовательно.
type Context struct {
	outputs map[string]any
}

// NewContext создаёт пустой контекст run.
func NewContext() *Context {
	return &Context{outputs: make(map[string]any)}
}

// Set записывает результат шага.
// Повторная запись возвращает ErrOutputExists.
func (c *Context) Set(stepID string, value any) error {
	if _, exists := c.outputs[stepID]; exists {
		return fmt.Errorf("%w: %s", ErrOutputExists, stepID)
	}
	c.outputs[stepID] = value
	return nil
}

// Get возвращает результат шага.
func (c *Context) Get(stepID string) (any, bool) {
	v, ok := c.outputs[stepID]
	return v, ok
}

// Pull возвращает результаты шагов в порядке аргументов.
func (c *Context) Pull(stepIDs ...string) []any {
	values := make([]any, len(stepIDs))
	for i, id := range stepIDs {
		values[i] = c.outputs[id]
	}
	return values
}

// Has проверяет, записан ли результат шага.
func (c *Context) Has(stepID string) bool {
	_, ok := c.outputs[stepID]
	return ok
}

// Keys возвращает ID шагов с записанными результатами.
func (c *Context) Keys() []string {
	return slices.Sorted(maps.Keys(c.outputs))
}

// View возвращает Reader, который видит только перечисленные шаги.
// Runner передаёт шагу View по его предкам в DAG.
func (c *Context) View(allowed ...string) *View {
	set := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		set[id] = true
	}
	return &View{ctx: c, allowed: set}
}

// View — ограниченное представление Context только для чтения.
type View struct {
	ctx     *Context
	allowed map[string]bool
}

// Get возвращает результат шага, если он виден из этого View.
func (v *View) Get(stepID string) (any, bool) {
	if !v.allowed[stepID] {
		return nil, false
	}
	return v.ctx.Get(stepID)
}

// Pull возвращает результаты шагов; невидимые шаги дают nil.
func (v *View) Pull(stepIDs ...string) []any {
	values := make([]any, len(stepIDs))
	for i, id := range stepIDs {
		values[i], _ = v.Get(id)
	}
	return values
}
