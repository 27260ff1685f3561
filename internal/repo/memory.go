package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/spaicer/internal/domain"
)

// MemoryRunRepo — история runs в памяти процесса.
//
// Используется, когда DB_URL не задан, и в тестах.
// Хранит копии, поэтому последующие изменения объектов вызывающим
// не влияют на сохранённое состояние.
type MemoryRunRepo struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]domain.Run
	tasks map[uuid.UUID][]domain.Task
}

// NewMemoryRunRepo создаёт пустой MemoryRunRepo.
func NewMemoryRunRepo() *MemoryRunRepo {
	return &MemoryRunRepo{
		runs:  make(map[uuid.UUID]domain.Run),
		tasks: make(map[uuid.UUID][]domain.Task),
	}
}

// Create сохраняет новый run.
func (r *MemoryRunRepo) Create(_ context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return ErrAlreadyExists
	}
	r.runs[run.ID] = *run
	return nil
}

// Update обновляет run.
func (r *MemoryRunRepo) Update(_ context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; !exists {
		return ErrNotFound
	}
	r.runs[run.ID] = *run
	return nil
}

// GetByID возвращает run по ID.
func (r *MemoryRunRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, exists := r.runs[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &run, nil
}

// List возвращает runs от новых к старым.
func (r *MemoryRunRepo) List(_ context.Context, filter RunFilter) ([]domain.Run, error) {
	r.mu.RLock()
	runs := make([]domain.Run, 0, len(r.runs))
	for _, run := range r.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		runs = append(runs, run)
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID.String() > runs[j].ID.String()
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if filter.Offset >= len(runs) {
		return []domain.Run{}, nil
	}
	runs = runs[filter.Offset:]

	if limit := limitOrDefault(filter.Limit); len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// CreateTask сохраняет task.
func (r *MemoryRunRepo) CreateTask(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[task.RunID]; !exists {
		return ErrNotFound
	}
	for _, t := range r.tasks[task.RunID] {
		if t.ID == task.ID || t.StepID == task.StepID {
			return ErrAlreadyExists
		}
	}
	r.tasks[task.RunID] = append(r.tasks[task.RunID], *task)
	return nil
}

// UpdateTask обновляет task.
func (r *MemoryRunRepo) UpdateTask(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := r.tasks[task.RunID]
	for i := range tasks {
		if tasks[i].ID == task.ID {
			tasks[i] = *task
			return nil
		}
	}
	return ErrNotFound
}

// ListTasks возвращает tasks run в порядке создания.
func (r *MemoryRunRepo) ListTasks(_ context.Context, runID uuid.UUID) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]domain.Task, len(r.tasks[runID]))
	copy(tasks, r.tasks[runID])
	return tasks, nil
}
