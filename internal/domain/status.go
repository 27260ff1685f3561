package domain

// RunStatus — статус run.
//
//	PENDING → RUNNING → SUCCEEDED | FAILED
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED" // pipeline дошёл до DONE
	RunStatusFailed    RunStatus = "FAILED"    // шаг вернул ошибку
)

var runStatuses = map[RunStatus]bool{
	RunStatusPending:   false,
	RunStatusRunning:   false,
	RunStatusSucceeded: true,
	RunStatusFailed:    true,
}

// IsTerminal — run завершён.
func (s RunStatus) IsTerminal() bool {
	return runStatuses[s]
}

// ParseRunStatus принимает только известные статусы, с учётом регистра.
func ParseRunStatus(s string) (RunStatus, bool) {
	status := RunStatus(s)
	if _, ok := runStatuses[status]; !ok {
		return "", false
	}
	return status, true
}

// TaskStatus — статус шага внутри run.
//
//	RUNNING → SUCCEEDED | FAILED
//	SKIPPED — шаг не на выбранной ветке, не запускался
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusSkipped   TaskStatus = "SKIPPED"
)

func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed || s == TaskStatusSkipped
}

// Phase — состояние pipeline внутри одного run.
//
//	FETCHING → BRANCHING → PROCESSING → FORWARDING → DONE
//	                     ↘ ALERTING → DONE
//	PROCESSING/FORWARDING → FAILED (необработанная ошибка шага)
type Phase string

const (
	PhaseFetching   Phase = "FETCHING"
	PhaseBranching  Phase = "BRANCHING"
	PhaseProcessing Phase = "PROCESSING"
	PhaseAlerting   Phase = "ALERTING"
	PhaseForwarding Phase = "FORWARDING"
	PhaseDone       Phase = "DONE"
	PhaseFailed     Phase = "FAILED"
)

func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}
