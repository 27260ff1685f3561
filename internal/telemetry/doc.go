// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog (JSON или tint)
//   - metrics.go — Prometheus метрики runs и шагов
//
// Логгер передаётся через context.Context (WithLogger/FromContext),
// метрики экспортируются на /metrics endpoint.
package telemetry
