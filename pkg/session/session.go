package session

import (
	"sync"
	"time"

	"github.com/theapemachine/agui-go/pkg/agui"
	"github.com/theapemachine/agui-go/pkg/errors"
)

/*
Session is the per-conversation state the bridge maintains: current
status, the active run, any pending interactive prompt, and the tool
call bookkeeping. All mutation happens under mu, held by the registry.
*/
type Session struct {
	mu sync.Mutex

	id              string
	status          Status
	runID           string
	runsSeen        map[string]struct{}
	pendingQuestion *agui.QuestionPrompt
	pendingPlan     *agui.PlanProposal
	tools           *toolBook
	updatedAt       time.Time
}

func newSession(id string) *Session {
	return &Session{
		id:        id,
		status:    StatusIdle,
		runsSeen:  make(map[string]struct{}),
		tools:     newToolBook(),
		updatedAt: time.Now(),
	}
}

/*
Snapshot is the full observable state of a session, returned at join
time and archived after the session ends.
*/
type Snapshot struct {
	ID              string               `json:"id"`
	Status          Status               `json:"status"`
	RunID           string               `json:"runId,omitempty"`
	PendingQuestion *agui.QuestionPrompt `json:"pendingQuestion,omitempty"`
	PendingPlan     *agui.PlanProposal   `json:"pendingPlan,omitempty"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

/*
Delta is the partial state carried by a STATE_DELTA event after every
committed status change.
*/
type Delta struct {
	Status          Status               `json:"status"`
	RunID           string               `json:"runId,omitempty"`
	PendingQuestion *agui.QuestionPrompt `json:"pendingQuestion,omitempty"`
	PendingPlan     *agui.PlanProposal   `json:"pendingPlan,omitempty"`
}

/*
outcome describes what applying one event asks the registry to do.
*/
type outcome struct {
	forward       bool
	statusChanged bool
	pairing       pairing
	pairedFrom    string
	toolName      string
}

/*
applyLocked validates and commits one event against the session state.
The caller holds sess.mu. The event may be rewritten in place when a
tool result pairs by fallback.
*/
func (sess *Session) applyLocked(ev *agui.Event) (outcome, error) {
	switch ev.Type {
	case agui.EventTypeRunStarted:
		return sess.applyRunStartedLocked(ev)

	case agui.EventTypeTextMessageStart,
		agui.EventTypeTextMessageContent,
		agui.EventTypeTextMessageEnd,
		agui.EventTypeToolCallArgs,
		agui.EventTypeToolCallEnd:
		if sess.status != StatusWorking {
			return outcome{}, sess.rejection(ev)
		}

		return outcome{forward: true}, nil

	case agui.EventTypeToolCallStart:
		if sess.status != StatusWorking {
			return outcome{}, sess.rejection(ev)
		}

		sess.tools.start(ev.ToolCallID, ev.ToolCallName)

		return outcome{forward: true}, nil

	case agui.EventTypeToolCallResult:
		if sess.status != StatusWorking {
			return outcome{}, sess.rejection(ev)
		}

		paired, disposition := sess.tools.result(ev.ToolCallID)

		out := outcome{
			forward:  true,
			pairing:  disposition,
			toolName: sess.tools.name(paired),
		}

		if disposition == pairFallback {
			out.pairedFrom = ev.ToolCallID
			ev.ToolCallID = paired
		}

		return out, nil

	case agui.EventTypeRunFinished:
		if sess.status != StatusWorking {
			return outcome{}, sess.rejection(ev)
		}

		sess.status = StatusCompleted

		return outcome{forward: true, statusChanged: true}, nil

	case agui.EventTypeRunError:
		if sess.status != StatusWorking {
			return outcome{}, sess.rejection(ev)
		}

		sess.status = StatusFailed

		return outcome{forward: true, statusChanged: true}, nil

	case agui.EventTypeCustom:
		return sess.applyCustomLocked(ev)
	}

	return outcome{}, sess.rejection(ev)
}

func (sess *Session) applyRunStartedLocked(ev *agui.Event) (outcome, error) {
	// Duplicate delivery of a known run is idempotent: the first
	// occurrence won, nothing is forwarded again.
	if _, seen := sess.runsSeen[ev.RunID]; seen {
		return outcome{}, nil
	}

	if !sess.status.CanStartRun() {
		return outcome{}, sess.rejection(ev)
	}

	sess.runsSeen[ev.RunID] = struct{}{}
	sess.runID = ev.RunID
	sess.status = StatusWorking
	sess.pendingQuestion = nil
	sess.pendingPlan = nil

	return outcome{forward: true, statusChanged: true}, nil
}

func (sess *Session) applyCustomLocked(ev *agui.Event) (outcome, error) {
	if sess.status != StatusWorking {
		return outcome{}, sess.rejection(ev)
	}

	switch ev.Name {
	case agui.CustomQuestionPending:
		prompt, ok := questionValue(ev.Value)

		if !ok {
			return outcome{}, sess.rejection(ev)
		}

		sess.status = StatusWaitingForQuestion
		sess.pendingQuestion = prompt

		return outcome{forward: true, statusChanged: true}, nil

	case agui.CustomPlanPending:
		proposal, ok := planValue(ev.Value)

		if !ok {
			return outcome{}, sess.rejection(ev)
		}

		sess.status = StatusWaitingForPlanApproval
		sess.pendingPlan = proposal

		return outcome{forward: true, statusChanged: true}, nil
	}

	return outcome{}, sess.rejection(ev)
}

func questionValue(value any) (*agui.QuestionPrompt, bool) {
	switch v := value.(type) {
	case agui.QuestionPrompt:
		return &v, true
	case *agui.QuestionPrompt:
		return v, true
	}

	return nil, false
}

func planValue(value any) (*agui.PlanProposal, bool) {
	switch v := value.(type) {
	case agui.PlanProposal:
		return &v, true
	case *agui.PlanProposal:
		return v, true
	}

	return nil, false
}

func (sess *Session) rejection(ev *agui.Event) error {
	return &errors.TransitionError{
		SessionID: sess.id,
		From:      string(sess.status),
		Event:     eventName(ev),
	}
}

func eventName(ev *agui.Event) string {
	if ev.Type == agui.EventTypeCustom {
		return string(ev.Type) + "(" + ev.Name + ")"
	}

	return string(ev.Type)
}

func (sess *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:              sess.id,
		Status:          sess.status,
		RunID:           sess.runID,
		PendingQuestion: sess.pendingQuestion,
		PendingPlan:     sess.pendingPlan,
		UpdatedAt:       sess.updatedAt,
	}
}

func (sess *Session) deltaLocked() Delta {
	return Delta{
		Status:          sess.status,
		RunID:           sess.runID,
		PendingQuestion: sess.pendingQuestion,
		PendingPlan:     sess.pendingPlan,
	}
}
