package stores

import (
	"sync"

	"github.com/theapemachine/agui-go/pkg/display"
)

/*
MessageLog keeps the ordered protocol messages seen per session so a
client can rebuild the transcript after a reconnect. The built-in
implementation is an in-memory map safe for concurrent use, which is
sufficient for dev and unit tests. Deployments that need durability
can swap in a persistent implementation.
*/
type MessageLog interface {
	Append(sessionID string, msg display.Message)
	Snapshot(sessionID string) []display.Message
	Drop(sessionID string)
}

// InMemoryMessageLog is the default implementation.
type InMemoryMessageLog struct {
	mu   sync.RWMutex
	logs map[string][]display.Message
}

func NewInMemoryMessageLog() *InMemoryMessageLog {
	return &InMemoryMessageLog{
		logs: make(map[string][]display.Message),
	}
}

func (l *InMemoryMessageLog) Append(sessionID string, msg display.Message) {
	l.mu.Lock()
	l.logs[sessionID] = append(l.logs[sessionID], msg)
	l.mu.Unlock()
}

/*
Snapshot returns a copy of the session's log so callers can iterate
without holding the lock.
*/
func (l *InMemoryMessageLog) Snapshot(sessionID string) []display.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	log, ok := l.logs[sessionID]

	if !ok {
		return nil
	}

	out := make([]display.Message, len(log))
	copy(out, log)

	return out
}

func (l *InMemoryMessageLog) Drop(sessionID string) {
	l.mu.Lock()
	delete(l.logs, sessionID)
	l.mu.Unlock()
}
