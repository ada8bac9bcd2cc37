package hub

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/theapemachine/agui-go/pkg/agui"
	"github.com/theapemachine/agui-go/pkg/metrics"
)

const defaultBufferSize = 64

/*
Hub fans events out to the subscribers of each session. Delivery is
fire-and-forget: a subscriber whose buffer is full misses the event and
is expected to recover from the session's message log, not from the
hub. The hub never buffers history of its own.
*/
type Hub struct {
	mu       sync.RWMutex
	sessions map[string][]*Subscriber
	buffer   int
	metrics  *metrics.Bridge
}

/*
Subscriber is one live consumer of a session's event order. Events is
closed by Unsubscribe or CloseSession, never by the consumer.
*/
type Subscriber struct {
	ID        string
	SessionID string
	Events    chan agui.Event
}

type Option func(*Hub)

// WithBufferSize overrides the per-subscriber channel buffer.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Bridge) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{
		sessions: make(map[string][]*Subscriber),
		buffer:   defaultBufferSize,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

/*
Subscribe registers a new consumer for a session and returns it. The
caller owns the read side of Events until it calls Unsubscribe.
*/
func (h *Hub) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Events:    make(chan agui.Event, h.buffer),
	}

	h.mu.Lock()
	h.sessions[sessionID] = append(h.sessions[sessionID], sub)
	h.mu.Unlock()

	h.metrics.SubscriberAdded()
	log.Debug("subscriber joined", "session", sessionID, "subscriber", sub.ID)

	return sub
}

/*
Unsubscribe removes a consumer and closes its channel. Safe to call
once per subscriber; later calls are no-ops.
*/
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.sessions[sub.SessionID]

	for i, candidate := range subs {
		if candidate != sub {
			continue
		}

		h.sessions[sub.SessionID] = append(subs[:i], subs[i+1:]...)

		if len(h.sessions[sub.SessionID]) == 0 {
			delete(h.sessions, sub.SessionID)
		}

		close(sub.Events)
		h.metrics.SubscriberRemoved()
		log.Debug("subscriber left", "session", sub.SessionID, "subscriber", sub.ID)

		return
	}
}

/*
Publish sends one event to every subscriber of the session, in the
order Publish is called. Slow subscribers lose the event, except for
terminal events which get one eviction retry.
*/
func (h *Hub) Publish(sessionID string, event agui.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.sessions[sessionID] {
		select {
		case sub.Events <- event:
			h.metrics.RecordDelivered()
		default:
			if h.deliverCritical(sub, event) {
				continue
			}

			log.Warn("subscriber buffer full, dropping event",
				"session", sessionID, "subscriber", sub.ID, "type", event.Type)
			h.metrics.RecordDropped()
		}
	}
}

/*
deliverCritical makes room for events a client must not miss by
discarding the oldest buffered event.
*/
func (h *Hub) deliverCritical(sub *Subscriber, event agui.Event) bool {
	if !critical(event) {
		return false
	}

	// Retry first in case the consumer drained the buffer meanwhile.
	select {
	case sub.Events <- event:
		h.metrics.RecordDelivered()
		return true
	default:
	}

	select {
	case <-sub.Events:
		h.metrics.RecordDropped()
	default:
		return false
	}

	select {
	case sub.Events <- event:
		log.Warn("evicted oldest buffered event for terminal delivery",
			"session", sub.SessionID, "subscriber", sub.ID, "type", event.Type)
		h.metrics.RecordDelivered()
		return true
	default:
		return false
	}
}

func critical(event agui.Event) bool {
	switch event.Type {
	case agui.EventTypeRunFinished, agui.EventTypeRunError, agui.EventTypeStateDelta:
		return true
	}

	return false
}

/*
SubscriberCount reports how many consumers a session currently has.
*/
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions[sessionID])
}

/*
CloseSession disconnects every subscriber of a session, ending their
streams.
*/
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.sessions[sessionID] {
		close(sub.Events)
		h.metrics.SubscriberRemoved()
	}

	delete(h.sessions, sessionID)
}
