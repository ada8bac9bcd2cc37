package session

/*
Status enumerates the mutually-exclusive states a session may be in.
Completed and Failed admit a new run; Stopped is terminal.
*/
type Status string

const (
	StatusIdle                   Status = "idle"
	StatusWorking                Status = "working"
	StatusWaitingForQuestion     Status = "waiting_for_question"
	StatusWaitingForPlanApproval Status = "waiting_for_plan_approval"
	StatusCompleted              Status = "completed"
	StatusFailed                 Status = "failed"
	StatusStopped                Status = "stopped"
)

// Terminal reports whether the status accepts no further events.
func (s Status) Terminal() bool {
	return s == StatusStopped
}

// CanStartRun reports whether a new run may begin from this status.
func (s Status) CanStartRun() bool {
	switch s {
	case StatusIdle, StatusCompleted, StatusFailed:
		return true
	}

	return false
}
