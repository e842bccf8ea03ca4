package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is the portable export format of the store.
type Snapshot struct {
	Threads []ThreadSnapshot `json:"threads"`
}

// ThreadSnapshot is a thread together with its ordered messages.
type ThreadSnapshot struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// MessageCount returns the number of messages across all threads.
func (s *Snapshot) MessageCount() int {
	n := 0
	for _, t := range s.Threads {
		n += len(t.Messages)
	}
	return n
}

// Validate checks that the snapshot can be imported. Messages with an empty
// threadId are attributed to their enclosing thread.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	seen := make(map[string]bool, len(s.Threads))
	for i := range s.Threads {
		t := &s.Threads[i]
		if t.ID == "" {
			return fmt.Errorf("threads[%d]: id is required", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("threads[%d]: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true

		for j := range t.Messages {
			m := &t.Messages[j]
			if m.ID == "" {
				return fmt.Errorf("threads[%d].messages[%d]: id is required", i, j)
			}
			if !m.Role.Valid() {
				return fmt.Errorf("threads[%d].messages[%d]: invalid role %q", i, j, m.Role)
			}
			if m.ThreadID == "" {
				m.ThreadID = t.ID
			} else if m.ThreadID != t.ID {
				return fmt.Errorf("threads[%d].messages[%d]: threadId %q does not match thread %q", i, j, m.ThreadID, t.ID)
			}
		}
	}
	return nil
}

// WriteSnapshot encodes snap as indented JSON.
func WriteSnapshot(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ReadSnapshot decodes and validates a snapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return &snap, nil
}

// WriteSnapshotFile writes snap to path atomically.
func WriteSnapshotFile(path string, snap *Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteSnapshot(tmp, snap); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// ReadSnapshotFile reads and validates a snapshot file.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(f)
}
