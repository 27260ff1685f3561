// Package repo хранит историю выполнения pipeline.
//
//   - RunRepo       — runs и tasks в PostgreSQL (pgx)
//   - MemoryRunRepo — то же в памяти, когда БД не настроена
//   - Locker        — leader lock планировщика через pg_try_advisory_lock
//
// Оба репозитория реализуют pipeline.Store и используются API для чтения истории.
package repo
