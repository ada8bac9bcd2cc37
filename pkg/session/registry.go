package session

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/agui-go/pkg/agui"
	"github.com/theapemachine/agui-go/pkg/errors"
	"github.com/theapemachine/agui-go/pkg/hub"
	"github.com/theapemachine/agui-go/pkg/metrics"
)

/*
Registry owns every live session and is the single writer of their
state. Each event is validated, committed and published under its
session's lock, so subscribers observe exactly the commit order;
sessions never contend with each other.
*/
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	hub      *hub.Hub
	metrics  *metrics.Bridge
}

type RegistryOption func(*Registry)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Bridge) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

func NewRegistry(h *hub.Hub, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		hub:      h,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

/*
Apply runs a batch of translated events through the state machine.
Rejections are logged and counted, never fatal: one bad event does not
stop the rest of the batch.
*/
func (r *Registry) Apply(sessionID string, events []agui.Event) {
	for _, ev := range events {
		if err := r.ApplyEvent(sessionID, ev); err != nil {
			log.Warn("event rejected",
				"session", sessionID, "event", eventName(&ev), "error", err)
			r.metrics.RecordRejectedTransition()
		}
	}
}

/*
ApplyEvent validates one event against the session state, commits it,
and publishes it to subscribers. Sessions are created implicitly by the
first RUN_STARTED; any other event for an unknown session is rejected.
*/
func (r *Registry) ApplyEvent(sessionID string, ev agui.Event) error {
	sess, err := r.sessionFor(sessionID, &ev)

	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status.Terminal() {
		return &errors.TransitionError{
			SessionID: sessionID,
			From:      string(sess.status),
			Event:     eventName(&ev),
		}
	}

	out, err := sess.applyLocked(&ev)

	if err != nil {
		return err
	}

	if !out.forward {
		log.Debug("duplicate run start ignored", "session", sessionID, "run", ev.RunID)
		return nil
	}

	sess.updatedAt = time.Now()

	switch out.pairing {
	case pairFallback:
		log.Warn("tool result paired with oldest open call",
			"session", sessionID,
			"resultId", out.pairedFrom,
			"pairedId", ev.ToolCallID,
			"tool", out.toolName)
		r.metrics.RecordFallbackPairing()
	case pairOrphan:
		log.Warn("tool result matches no open call",
			"session", sessionID, "resultId", ev.ToolCallID)
	case pairDuplicate:
		log.Debug("tool result for already closed call",
			"session", sessionID, "resultId", ev.ToolCallID)
	}

	r.hub.Publish(sessionID, ev)

	if out.statusChanged {
		r.hub.Publish(sessionID, agui.NewStateDelta(sess.deltaLocked()))
	}

	return nil
}

func (r *Registry) sessionFor(sessionID string, ev *agui.Event) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if ok {
		return sess, nil
	}

	if ev.Type != agui.EventTypeRunStarted {
		return nil, &errors.TransitionError{
			SessionID: sessionID,
			From:      "unregistered",
			Event:     eventName(ev),
		}
	}

	return r.getOrCreate(sessionID), nil
}

func (r *Registry) getOrCreate(sessionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[sessionID]; ok {
		return sess
	}

	sess := newSession(sessionID)
	r.sessions[sessionID] = sess
	r.metrics.SessionOpened()
	log.Info("session created", "session", sessionID)

	return sess
}

/*
Join atomically subscribes the caller to a session and returns the
state snapshot the subscription continues from. Holding the session
lock across both steps closes the race with a concurrent publish.
Unknown sessions are created idle so clients may join ahead of the
agent's first event.
*/
func (r *Registry) Join(sessionID string) (Snapshot, *hub.Subscriber) {
	sess := r.getOrCreate(sessionID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sub := r.hub.Subscribe(sessionID)

	return sess.snapshotLocked(), sub
}

/*
Get returns the current snapshot of a live session.
*/
func (r *Registry) Get(sessionID string) (Snapshot, *errors.RpcError) {
	r.mu.RLock()
	sess, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return Snapshot{}, errors.ErrSessionNotFound.WithMessagef("session %s not found", sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return sess.snapshotLocked(), nil
}

/*
Stop moves a session to its terminal state. Later inbound events are
discarded and logged. Stopping twice is a no-op.
*/
func (r *Registry) Stop(sessionID string) (Snapshot, *errors.RpcError) {
	r.mu.RLock()
	sess, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return Snapshot{}, errors.ErrSessionNotFound.WithMessagef("session %s not found", sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status != StatusStopped {
		sess.status = StatusStopped
		sess.pendingQuestion = nil
		sess.pendingPlan = nil
		sess.updatedAt = time.Now()

		log.Info("session stopped", "session", sessionID)
		r.hub.Publish(sessionID, agui.NewStateDelta(sess.deltaLocked()))
	}

	return sess.snapshotLocked(), nil
}

/*
ResolveQuestion clears a pending question and resumes the run. The
caller forwards the user's answers upstream separately; the agent does
not echo an acknowledgement.
*/
func (r *Registry) ResolveQuestion(sessionID string) *errors.RpcError {
	r.mu.RLock()
	sess, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return errors.ErrSessionNotFound.WithMessagef("session %s not found", sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status == StatusStopped {
		return errors.ErrSessionStopped.WithMessagef("session %s is stopped", sessionID)
	}

	if sess.status != StatusWaitingForQuestion {
		return errors.ErrNoPendingQuestion.WithMessagef("session %s has no pending question", sessionID)
	}

	sess.status = StatusWorking
	sess.pendingQuestion = nil
	sess.updatedAt = time.Now()

	r.hub.Publish(sessionID, agui.NewStateDelta(sess.deltaLocked()))

	return nil
}

/*
ResolvePlan clears a pending plan approval and resumes the run.
*/
func (r *Registry) ResolvePlan(sessionID string) *errors.RpcError {
	r.mu.RLock()
	sess, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return errors.ErrSessionNotFound.WithMessagef("session %s not found", sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.status == StatusStopped {
		return errors.ErrSessionStopped.WithMessagef("session %s is stopped", sessionID)
	}

	if sess.status != StatusWaitingForPlanApproval {
		return errors.ErrNoPendingPlan.WithMessagef("session %s has no pending plan approval", sessionID)
	}

	sess.status = StatusWorking
	sess.pendingPlan = nil
	sess.updatedAt = time.Now()

	r.hub.Publish(sessionID, agui.NewStateDelta(sess.deltaLocked()))

	return nil
}

/*
Sweep evicts stopped sessions and idle sessions nobody ever drove, once
they have been quiet for maxAge. Evicted snapshots are returned so the
caller can archive them. Subscribers of evicted sessions are
disconnected.
*/
func (r *Registry) Sweep(maxAge time.Duration) []Snapshot {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []Snapshot

	for id, sess := range r.sessions {
		sess.mu.Lock()
		stale := sess.updatedAt.Before(cutoff) &&
			(sess.status == StatusStopped || sess.status == StatusIdle)

		if stale {
			evicted = append(evicted, sess.snapshotLocked())
		}
		sess.mu.Unlock()

		if stale {
			delete(r.sessions, id)
			r.hub.CloseSession(id)
			r.metrics.SessionClosed()
			log.Info("session evicted", "session", id)
		}
	}

	return evicted
}
