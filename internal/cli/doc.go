// Package cli реализует инструмент командной строки spaicer.
//
// # Обзор
//
// CLI умеет две вещи: выполнить pipeline локально (без сервера)
// и работать с запущенным spaicer-scheduler через HTTP API и RabbitMQ.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для spaicer API. Инкапсулирует все HTTP-запросы,
// разбор конверта ответа (data, total, error)
// и обработку ошибок (APIError).
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{Status: "FAILED"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, статусные сообщения и логи — в stderr.
// Это позволяет использовать pipe: spaicer runs list --json | jq .
//
// ## Commands
//
//   - run: однократный локальный запуск pipeline
//   - graph: шаги в порядке выполнения и рёбра графа
//   - runs: list, show, tasks, trigger (через API)
//   - schedule: show, enable, disable (через API)
//   - watch: поток событий run.* и step.* из RabbitMQ
//
// Команды, которым нужен API, принимают clientFn и outputFn — замыкания
// для ленивого создания Client и Output после парсинга PersistentFlags.
package cli
