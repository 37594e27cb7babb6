// Package snapshot provides a file-backed implementation of the lead
// scoring engine's persistence port.
//
// State is stored as a single versioned JSON document. Writes are atomic
// (tmp file + rename) so a crash mid-save never corrupts the previous
// snapshot. A corrupt or unreadable file is reported to the engine, which
// falls back to default rules and empty state rather than refusing to
// start.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/victor2025PH/tgkz2026-sub006/internal/leadscore"
)

// ErrSnapshotCorrupted indicates the snapshot file exists but cannot be
// decoded.
var ErrSnapshotCorrupted = errors.New("snapshot file corrupted")

// FileStore persists engine snapshots to a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path, creating parent directories
// as needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the snapshot file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the snapshot. A missing file returns (nil, nil): first run,
// nothing to restore.
func (f *FileStore) Load(ctx context.Context) (*leadscore.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap leadscore.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupted, err)
	}
	if snap.Scores == nil {
		snap.Scores = make(map[string]*leadscore.LeadScore)
	}
	return &snap, nil
}

// Save writes the snapshot atomically.
func (f *FileStore) Save(ctx context.Context, snap *leadscore.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}
