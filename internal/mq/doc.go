// Package mq публикует события выполнения pipeline в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (retry при старте, reconnect, graceful shutdown)
//   - topology.go   — обменник событий, очередь итогов, временные очереди для watch
//   - publisher.go  — публикация сообщений
//   - events.go     — Events: pipeline.Observer поверх Publisher
//   - consumer.go   — потребление сообщений (spaicer watch)
//
// Типы сообщений (routing key совпадает с типом):
//   - run.started    — run начал выполнение
//   - step.finished  — шаг завершён (SUCCEEDED, FAILED или SKIPPED)
//   - run.finished   — run завершён
//
// Exchanges:
//   - spaicer.events (topic) — все события
//
// RabbitMQ опционален: без RABBITMQ_URL события не публикуются.
package mq
