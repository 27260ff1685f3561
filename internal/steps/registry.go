package steps

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry сопоставляет ID шага pipeline с его реализацией.
// Хранит экземпляры: у каждого шага свой endpoint и настройки.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

func NewRegistry() *Registry {
	return &Registry{steps: map[string]Step{}}
}

// Register привязывает step к stepID, заменяя прежнюю привязку.
func (r *Registry) Register(stepID string, step Step) {
	r.mu.Lock()
	r.steps[stepID] = step
	r.mu.Unlock()
}

// Unregister снимает привязку. Отсутствующий stepID игнорируется.
func (r *Registry) Unregister(stepID string) {
	r.mu.Lock()
	delete(r.steps, stepID)
	r.mu.Unlock()
}

// Get возвращает реализацию шага или ErrStepNotFound.
func (r *Registry) Get(stepID string) (Step, error) {
	r.mu.RLock()
	step, ok := r.steps[stepID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	return step, nil
}

func (r *Registry) Has(stepID string) bool {
	_, err := r.Get(stepID)
	return err == nil
}

// IDs — привязанные ID в лексикографическом порядке.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.steps))
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}
