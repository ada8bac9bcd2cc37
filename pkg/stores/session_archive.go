package stores

// SessionArchive retains the final snapshot of sessions that left the
// live registry so `sessions/get` can still answer for them. Entries
// expire after a TTL; a background goroutine sweeps the expired ones.

import (
	"sync"
	"time"

	"github.com/theapemachine/agui-go/pkg/session"
)

// Archiver is the snapshot archive the bridge writes ended sessions
// to. SessionArchive keeps them in memory; the s3 store keeps them in
// an object bucket.
type Archiver interface {
	Put(snapshot session.Snapshot)
	Get(id string) (session.Snapshot, bool)
	Delete(id string)
}

// archiveEntry wraps the snapshot with its expiration time.
type archiveEntry struct {
	Snapshot  session.Snapshot
	ExpiresAt time.Time
}

type SessionArchive struct {
	mu         sync.RWMutex
	data       map[string]*archiveEntry
	expiration time.Duration
}

func NewSessionArchive() *SessionArchive {
	archive := NewSessionArchiveWithTTL(24 * time.Hour)

	go archive.sweepExpired()

	return archive
}

// NewSessionArchiveWithTTL builds an archive without the background
// sweeper, for tests and callers that drive Cleanup themselves.
func NewSessionArchiveWithTTL(ttl time.Duration) *SessionArchive {
	return &SessionArchive{
		data:       make(map[string]*archiveEntry),
		expiration: ttl,
	}
}

func (a *SessionArchive) Put(snapshot session.Snapshot) {
	a.mu.Lock()
	a.data[snapshot.ID] = &archiveEntry{
		Snapshot:  snapshot,
		ExpiresAt: time.Now().Add(a.expiration),
	}
	a.mu.Unlock()
}

func (a *SessionArchive) Get(id string) (session.Snapshot, bool) {
	a.mu.RLock()
	entry, ok := a.data[id]
	a.mu.RUnlock()

	if !ok {
		return session.Snapshot{}, false
	}

	if time.Now().After(entry.ExpiresAt) {
		a.Delete(id)
		return session.Snapshot{}, false
	}

	return entry.Snapshot, true
}

func (a *SessionArchive) Delete(id string) {
	a.mu.Lock()
	delete(a.data, id)
	a.mu.Unlock()
}

func (a *SessionArchive) Cleanup() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()

	for id, entry := range a.data {
		if now.After(entry.ExpiresAt) {
			delete(a.data, id)
		}
	}
}

// sweepExpired periodically drops expired snapshots.
func (a *SessionArchive) sweepExpired() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		a.Cleanup()
	}
}
