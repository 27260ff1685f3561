package pipeline

import (
	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/engine"
)

// runState — состояние выполнения одного run.
//
// Живёт только внутри Runner.Run; выполнение строго последовательное,
// поэтому синхронизация не нужна.
type runState struct {
	run *domain.Run
	dag *engine.DAG

	// outputs — контекст run с результатами завершённых шагов.
	outputs *engine.Context

	// tasks — созданные tasks (stepID → Task).
	tasks map[string]*domain.Task

	// skipped — шаги, не попавшие на выбранную ветку.
	skipped map[string]bool

	// selected — выбор шагов ветвления (stepID → ID преемника).
	selected map[string]string
}

func newRunState(run *domain.Run, dag *engine.DAG) *runState {
	return &runState{
		run:      run,
		dag:      dag,
		outputs:  engine.NewContext(),
		tasks:    make(map[string]*domain.Task, dag.Size()),
		skipped:  make(map[string]bool),
		selected: make(map[string]string),
	}
}

// shouldSkip проверяет, нужно ли пропустить узел:
// пропущена хотя бы одна зависимость или ветвление выбрало другой путь.
func (s *runState) shouldSkip(node *engine.Node) bool {
	for _, dep := range node.DependsOn {
		if s.skipped[dep.ID] {
			return true
		}
		if next, ok := s.selected[dep.ID]; ok && next != node.ID {
			return true
		}
	}
	return false
}

// view возвращает контекст, ограниченный предками узла.
func (s *runState) view(node *engine.Node) *engine.View {
	return s.outputs.View(s.dag.Ancestors(node.ID)...)
}

func (s *runState) setTask(task *domain.Task) {
	s.tasks[task.StepID] = task
	if task.Status == domain.TaskStatusSkipped {
		s.skipped[task.StepID] = true
	}
}

func (s *runState) selectBranch(stepID, next string) {
	s.selected[stepID] = next
}

// orderedTasks возвращает tasks в порядке обхода DAG.
func (s *runState) orderedTasks() []*domain.Task {
	out := make([]*domain.Task, 0, len(s.tasks))
	for _, node := range s.dag.Order {
		if task, ok := s.tasks[node.ID]; ok {
			out = append(out, task)
		}
	}
	return out
}
