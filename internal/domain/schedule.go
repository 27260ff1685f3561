package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического запуска pipeline.
//
// Scheduler проверяет NextDueAt и запускает run, когда время подошло.
// Пропущенные интервалы не догоняются: после запуска NextDueAt
// вычисляется от текущего момента.
type Schedule struct {
	// CronExpr — пять полей cron или дескриптор: "@daily", "0 9 * * *".
	CronExpr string `json:"cron_expr"`

	// StartDate — раньше этого момента run не создаётся.
	StartDate time.Time `json:"start_date"`

	// Catchup всегда false: пропущенные интервалы не догоняются.
	Catchup bool `json:"catchup"`

	Timezone string `json:"timezone"` // IANA, по умолчанию UTC
	Enabled  bool   `json:"enabled"`

	NextDueAt *time.Time `json:"next_due_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`
}

// IsDue — расписание включено и NextDueAt наступил.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Enabled && s.NextDueAt != nil && !now.Before(*s.NextDueAt)
}

// RecordRun отмечает созданный run и переносит NextDueAt.
func (s *Schedule) RecordRun(runID uuid.UUID, at, nextDue time.Time) {
	s.LastRunAt = &at
	s.LastRunID = &runID
	s.NextDueAt = &nextDue
}

// Advance переносит NextDueAt без записи о запуске.
func (s *Schedule) Advance(nextDue time.Time) {
	s.NextDueAt = &nextDue
}
