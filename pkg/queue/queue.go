package queue

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/downfa11-org/duraq/pkg/storage"
	"github.com/downfa11-org/duraq/util"
)

const (
	logFileName     = "queue.log"
	offsetsFileName = "offsets.json"
)

// Queue is a durable broadcast queue. Messages live in an append-only
// log; each consumer identity advances its own persisted cursor, so
// every consumer independently sees the full message history.
//
// One mutex covers every operation. That single critical section is
// what gives all pushes and pulls one total order, observed identically
// by every client.
type Queue struct {
	mu      sync.Mutex
	log     *storage.Log
	offsets *storage.OffsetTable

	// index maps ordinal (0-based push order) to the physical byte
	// offset of the record in the log. Rebuilt from the log on open,
	// never persisted.
	index []int64
}

// Open opens the queue stored under dataDir, replaying the log to
// rebuild the ordinal index before any request is served.
func Open(dataDir string) (*Queue, error) {
	l, err := storage.OpenLog(filepath.Join(dataDir, logFileName))
	if err != nil {
		return nil, fmt.Errorf("open queue log: %w", err)
	}

	offsets, err := storage.OpenOffsetTable(filepath.Join(dataDir, offsetsFileName))
	if err != nil {
		if cerr := l.Close(); cerr != nil {
			util.Error("failed to close log after open error: %v", cerr)
		}
		return nil, fmt.Errorf("open offset table: %w", err)
	}

	q := &Queue{
		log:     l,
		offsets: offsets,
	}
	if err := q.recover(); err != nil {
		if cerr := l.Close(); cerr != nil {
			util.Error("failed to close log after recovery error: %v", cerr)
		}
		return nil, err
	}

	util.Info("queue opened: %d message(s), %d consumer(s)", len(q.index), len(offsets.All()))
	return q, nil
}

func (q *Queue) recover() error {
	replay, err := q.log.Replay()
	if err != nil {
		return fmt.Errorf("replay queue log: %w", err)
	}
	defer replay.Close()

	for replay.Next() {
		q.index = append(q.index, replay.Offset())
	}
	return replay.Err()
}

// Push appends message to the queue and returns its ordinal.
func (q *Queue) Push(message string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	offset, err := q.log.Append([]byte(message))
	if err != nil {
		return 0, err
	}

	q.index = append(q.index, offset)
	return int64(len(q.index) - 1), nil
}

// Pull delivers the next unread message for consumerID and advances its
// cursor durably. ok is false when the consumer has caught up; that is
// the expected steady state, not an error.
//
// A persisted cursor pointing past the index (possible after the log
// was truncated during recovery) is clamped to "nothing available" by
// the same bounds check.
func (q *Queue) Pull(consumerID string) (message string, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cursor := q.offsets.Get(consumerID)
	if cursor >= int64(len(q.index)) {
		return "", false, nil
	}

	data, err := q.log.ReadAt(q.index[cursor])
	if err != nil {
		return "", false, err
	}

	if err := q.offsets.Set(consumerID, cursor+1); err != nil {
		return "", false, fmt.Errorf("persist cursor for %q: %w", consumerID, err)
	}
	return string(data), true, nil
}

// Count returns the total number of messages ever pushed.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.index)
}

// CursorOf returns the persisted cursor for consumerID.
func (q *Queue) CursorOf(consumerID string) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.offsets.Get(consumerID)
}

// Cursors returns a snapshot of every consumer cursor.
func (q *Queue) Cursors() map[string]int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.offsets.All()
}

// Close closes the underlying log.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.log.Close()
}
