// Package pipeline описывает pipeline spaicer и выполняет его.
//
// # Pipeline
//
// Definition возвращает фиксированный набор шагов:
//
//	fetch_data → fetch_success → process_data_with_ai_module → forward_results
//	                           ↘ alert
//
// NewRegistry собирает реализации шагов из пакета steps под заданные endpoints.
//
// # Runner
//
// Runner выполняет один run:
//
//  1. Создаёт domain.Run и переводит его в RUNNING
//  2. Обходит DAG в топологическом порядке, по одному шагу
//  3. Каждый шаг видит только результаты своих предков
//  4. После шага ветвления невыбранные преемники и всё, что от них
//     зависит, помечаются SKIPPED
//  5. Ошибка шага завершает run со статусом FAILED
//
// Одновременно выполняется не больше одного run (ErrRunInProgress).
//
// История runs и tasks пишется через Store, события уходят в Observer'ы
// (метрики, RabbitMQ). Сбои Store и Observer'ов не влияют на run.
package pipeline
