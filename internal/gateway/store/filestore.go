// Package store persists the maintenance states as JSON files on disk.
// Files are read fresh on every call so that out-of-band edits and other
// gateway instances sharing the volume are picked up immediately.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/internal/gateway/domain"
)

// FileStore reads and writes the maintenance state files named in the
// configuration.
type FileStore struct {
	maintenancePath string
	scheduledPath   string
}

// NewFileStore builds a FileStore over the configured file paths.
func NewFileStore(cfg config.MaintenanceConfig) *FileStore {
	return &FileStore{
		maintenancePath: cfg.MaintenancePath,
		scheduledPath:   cfg.ScheduledMaintenancePath,
	}
}

// Maintenance returns the current maintenance state.
func (s *FileStore) Maintenance() (domain.MaintenanceState, error) {
	var state domain.MaintenanceState
	if err := readJSONFile(s.maintenancePath, &state); err != nil {
		return domain.MaintenanceState{}, err
	}
	return state, nil
}

// SetMaintenance replaces the maintenance state on disk.
func (s *FileStore) SetMaintenance(state domain.MaintenanceState) error {
	return writeJSONFile(s.maintenancePath, state)
}

// ScheduledMaintenance returns the current scheduled maintenance state.
func (s *FileStore) ScheduledMaintenance() (domain.ScheduledMaintenanceState, error) {
	var state domain.ScheduledMaintenanceState
	if err := readJSONFile(s.scheduledPath, &state); err != nil {
		return domain.ScheduledMaintenanceState{}, err
	}
	return state, nil
}

// SetScheduledMaintenance replaces the scheduled maintenance state on
// disk.
func (s *FileStore) SetScheduledMaintenance(state domain.ScheduledMaintenanceState) error {
	return writeJSONFile(s.scheduledPath, state)
}

func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("store: parse %s: %w", path, err)
	}
	return nil
}

// writeJSONFile writes via a temp file and rename so readers never see a
// partially written state.
func writeJSONFile(path string, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: replace %s: %w", path, err)
	}
	return nil
}
