// Package scheduler запускает pipeline по расписанию.
//
// Структура:
//   - scheduler.go — цикл планировщика (Tick, Start, Stop)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedule: domain.Schedule{CronExpr: "@daily", Timezone: "UTC", Enabled: true},
//	    Runner:   runner,
//	    Locker:   locker,  // опционально
//	    Logger:   logger,
//	})
//	sched.Start(ctx)
//	defer sched.Stop()
//
// Catch-up не выполняется: если процесс простаивал несколько интервалов,
// при следующем тике будет один run, а NextDueAt перенесётся
// на ближайший интервал после текущего момента.
//
// Leader Election:
//
// При нескольких экземплярах Locker (pg_try_advisory_lock) гарантирует,
// что run создаёт только лидер.
package scheduler
