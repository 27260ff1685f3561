// Package api содержит HTTP API сервера pipeline.
//
// Структура:
//   - handler.go          — Handler с DI (runner, история runs, расписание, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - pipeline_handler.go — обработчик для /pipeline
//   - run_handler.go      — обработчики для /runs
//   - schedule_handler.go — обработчики для /schedule
//
// Ручной запуск (POST /api/v1/runs) синхронный: ответ приходит после
// завершения run. Пока run выполняется, повторный запуск получает 409.
package api
