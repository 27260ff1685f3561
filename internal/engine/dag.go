package engine

import (
	"fmt"
	"slices"

	"github.com/shaiso/spaicer/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Step — определение шага из PipelineSpec.
	Step *domain.StepDef

	// ID — идентификатор узла (совпадает с Step.ID).
	ID string

	// Index — позиция шага в PipelineSpec.Steps.
	Index int

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// Edge — ребро графа: From должен завершиться до To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DAG — направленный ациклический граф шагов pipeline.
type DAG struct {
	// Nodes — все узлы графа (stepID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (точки входа).
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	// При равенстве зависимостей сохраняется порядок объявления.
	Order []*Node
}

// BuildDAG валидирует PipelineSpec и строит из него DAG.
func BuildDAG(spec *domain.PipelineSpec) (*DAG, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	dag := &DAG{
		Nodes:     make(map[string]*Node, len(spec.Steps)),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	for i := range spec.Steps {
		step := &spec.Steps[i]
		dag.Nodes[step.ID] = &Node{
			Step:       step,
			ID:         step.ID,
			Index:      i,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for i := range spec.Steps {
		step := &spec.Steps[i]
		node := dag.Nodes[step.ID]
		for _, depID := range step.DependsOn {
			depNode, exists := dag.Nodes[depID]
			if !exists {
				return nil, NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", depID), ErrMissingDependency)
			}
			dag.addEdge(depNode, node)
		}
	}

	dag.findRootNodes()

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты игнорируются, чтобы не посчитать InDegree дважды.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.Nodes {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
	sortByIndex(d.RootNodes)
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Из готовых узлов всегда берётся объявленный раньше.
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	ready := make([]*Node, len(d.RootNodes))
	copy(ready, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(ready) > 0 {
		sortByIndex(ready)
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// OrderIDs возвращает ID шагов в порядке выполнения.
func (d *DAG) OrderIDs() []string {
	ids := make([]string, len(d.Order))
	for i, node := range d.Order {
		ids[i] = node.ID
	}
	return ids
}

// Edges возвращает все рёбра в порядке выполнения.
func (d *DAG) Edges() []Edge {
	edges := make([]Edge, 0)
	for _, node := range d.Order {
		for _, dep := range node.Dependents {
			edges = append(edges, Edge{From: node.ID, To: dep.ID})
		}
	}
	return edges
}

// IsDependent проверяет, что to напрямую зависит от from.
func (d *DAG) IsDependent(from, to string) bool {
	node := d.Nodes[from]
	if node == nil {
		return false
	}
	for _, dep := range node.Dependents {
		if dep.ID == to {
			return true
		}
	}
	return false
}

// Ancestors возвращает ID всех шагов, от которых транзитивно зависит id.
func (d *DAG) Ancestors(id string) []string {
	return d.walk(id, func(n *Node) []*Node { return n.DependsOn })
}

// Descendants возвращает ID всех шагов, транзитивно зависящих от id.
func (d *DAG) Descendants(id string) []string {
	return d.walk(id, func(n *Node) []*Node { return n.Dependents })
}

// walk обходит граф от узла id в направлении next.
// Результат упорядочен по позиции в PipelineSpec.
func (d *DAG) walk(id string, next func(*Node) []*Node) []string {
	start := d.Nodes[id]
	if start == nil {
		return nil
	}

	seen := make(map[string]bool)
	found := make([]*Node, 0)
	stack := slices.Clone(next(start))

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		found = append(found, node)
		stack = append(stack, next(node)...)
	}

	sortByIndex(found)
	ids := make([]string, len(found))
	for i, node := range found {
		ids[i] = node.ID
	}
	return ids
}

func sortByIndex(nodes []*Node) {
	slices.SortFunc(nodes, func(a, b *Node) int { return a.Index - b.Index })
}
