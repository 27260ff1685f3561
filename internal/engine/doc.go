// Package engine содержит модель выполнения pipeline.
//
// Включает:
//   - validate.go — валидация PipelineSpec
//   - dag.go      — построение и обход DAG (directed acyclic graph)
//   - context.go  — контекст run: результаты шагов по их ID
//
// Engine отвечает за понимание структуры pipeline и определение
// порядка выполнения шагов на основе их зависимостей.
package engine
