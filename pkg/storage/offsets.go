package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/downfa11-org/duraq/util"
)

// OffsetTable persists per-consumer cursors as a JSON object. Every Set
// rewrites the whole table through a temp file and an atomic rename, so
// a half-written table is never visible after a crash.
type OffsetTable struct {
	path    string
	offsets map[string]int64
}

// OpenOffsetTable loads the table at path. A missing or unparsable file
// is treated as an empty table, never as a fatal error.
func OpenOffsetTable(path string) (*OffsetTable, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create offsets directory: %w", err)
	}

	t := &OffsetTable{
		path:    path,
		offsets: make(map[string]int64),
	}
	t.Load()
	return t, nil
}

// Get returns the cursor for consumerID, 0 for an identity never seen.
func (t *OffsetTable) Get(consumerID string) int64 {
	return t.offsets[consumerID]
}

// Set updates the cursor for consumerID and persists the entire table
// durably before returning.
func (t *OffsetTable) Set(consumerID string, offset int64) error {
	t.offsets[consumerID] = offset
	return t.save()
}

// Load replaces the in-memory table with the persisted one. Corrupt or
// missing files fail open to an empty table.
func (t *OffsetTable) Load() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			util.Warn("offsets file %s unreadable, starting empty: %v", t.path, err)
		}
		t.offsets = make(map[string]int64)
		return
	}

	offsets := make(map[string]int64)
	if err := json.Unmarshal(data, &offsets); err != nil {
		util.Warn("offsets file %s corrupt, starting empty: %v", t.path, err)
		t.offsets = make(map[string]int64)
		return
	}
	t.offsets = offsets
}

// All returns a snapshot copy of every consumer cursor.
func (t *OffsetTable) All() map[string]int64 {
	snapshot := make(map[string]int64, len(t.offsets))
	for id, off := range t.offsets {
		snapshot[id] = off
	}
	return snapshot
}

func (t *OffsetTable) save() error {
	data, err := json.Marshal(t.offsets)
	if err != nil {
		return fmt.Errorf("marshal offsets: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(t.path), "offsets-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp offsets file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp offsets file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp offsets file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp offsets file: %w", err)
	}

	if err := os.Rename(tmpPath, t.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace offsets file: %w", err)
	}
	return nil
}
