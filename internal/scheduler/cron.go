package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/spaicer/internal/domain"
)

// Пять полей (минута … день недели) плюс дескрипторы: @daily, @hourly, @every 1h.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronExpr отвергает выражения, которые scheduler не сможет разобрать.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// CalculateNextDue — первое срабатывание sched строго после from (в UTC).
// Выражение вычисляется в sched.Timezone, неизвестный пояс трактуется как UTC.
// Срабатывания раньше StartDate отбрасываются; сам StartDate допустим.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	spec, err := cronParser.Parse(sched.CronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", sched.CronExpr, err)
	}

	if start := sched.StartDate; !start.IsZero() && from.Before(start) {
		from = start.Add(-time.Nanosecond)
	}

	next := spec.Next(from.In(location(sched.Timezone)))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron expression %q never fires", sched.CronExpr)
	}
	return next.UTC(), nil
}

func location(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.UTC
}
