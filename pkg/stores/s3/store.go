package s3

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/agui-go/pkg/session"
)

/*
Store archives session snapshots in an S3-compatible bucket, so
sessions/get can still answer for sessions long gone from the live
registry. Writes are best-effort: a control call never blocks on
object storage, failures are logged and the call proceeds.
*/
type Store struct {
	conn    *Conn
	timeout time.Duration
}

/*
NewStore creates a bucket-backed archive with the given connection.
*/
func NewStore(conn *Conn) *Store {
	return &Store{conn: conn, timeout: 5 * time.Second}
}

func key(id string) string {
	return "sessions/" + id + ".json"
}

func (store *Store) Put(snapshot session.Snapshot) {
	data, err := json.Marshal(snapshot)

	if err != nil {
		log.Error("failed to marshal snapshot", "session", snapshot.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), store.timeout)
	defer cancel()

	if err := store.conn.Put(ctx, key(snapshot.ID), data); err != nil {
		log.Error("failed to archive snapshot", "session", snapshot.ID, "error", err)
	}
}

func (store *Store) Get(id string) (session.Snapshot, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), store.timeout)
	defer cancel()

	buf, err := store.conn.Get(ctx, key(id))

	if err != nil {
		return session.Snapshot{}, false
	}

	var snapshot session.Snapshot

	if err := json.Unmarshal(buf.Bytes(), &snapshot); err != nil {
		log.Error("failed to unmarshal archived snapshot", "session", id, "error", err)
		return session.Snapshot{}, false
	}

	return snapshot, true
}

func (store *Store) Delete(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), store.timeout)
	defer cancel()

	if err := store.conn.Del(ctx, key(id)); err != nil {
		log.Error("failed to delete archived snapshot", "session", id, "error", err)
	}
}
