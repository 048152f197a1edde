package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datagateway/authgate/internal/gateway/config"
	"github.com/datagateway/authgate/internal/gateway/domain"
	"github.com/datagateway/authgate/internal/gateway/store"
)

func newTestStore(t *testing.T) *store.FileStore {
	t.Helper()

	dir := t.TempDir()
	maintenancePath := filepath.Join(dir, "maintenance.json")
	scheduledPath := filepath.Join(dir, "scheduled_maintenance.json")

	require.NoError(t, os.WriteFile(maintenancePath,
		[]byte(`{"show": false, "message": ""}`), 0o600))
	require.NoError(t, os.WriteFile(scheduledPath,
		[]byte(`{"show": false, "message": "", "severity": ""}`), 0o600))

	return store.NewFileStore(config.MaintenanceConfig{
		MaintenancePath:          maintenancePath,
		ScheduledMaintenancePath: scheduledPath,
	})
}

func TestFileStoreMaintenance(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	state, err := s.Maintenance()
	require.NoError(t, err)
	require.False(t, state.Show)

	update := domain.MaintenanceState{Show: true, Message: "down until 5pm"}
	require.NoError(t, s.SetMaintenance(update))

	state, err = s.Maintenance()
	require.NoError(t, err)
	require.Equal(t, update, state)
}

func TestFileStoreScheduledMaintenance(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	update := domain.ScheduledMaintenanceState{
		MaintenanceState: domain.MaintenanceState{Show: true, Message: "outage on Friday"},
		Severity:         "warning",
	}
	require.NoError(t, s.SetScheduledMaintenance(update))

	state, err := s.ScheduledMaintenance()
	require.NoError(t, err)
	require.Equal(t, update, state)
}

func TestFileStoreReadsFreshState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "maintenance.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"show": false, "message": ""}`), 0o600))

	s := store.NewFileStore(config.MaintenanceConfig{
		MaintenancePath:          path,
		ScheduledMaintenancePath: filepath.Join(dir, "scheduled.json"),
	})

	_, err := s.Maintenance()
	require.NoError(t, err)

	// An out-of-band edit must be visible on the next read.
	require.NoError(t, os.WriteFile(path, []byte(`{"show": true, "message": "edited"}`), 0o600))

	state, err := s.Maintenance()
	require.NoError(t, err)
	require.True(t, state.Show)
	require.Equal(t, "edited", state.Message)
}

func TestFileStoreMissingFile(t *testing.T) {
	t.Parallel()

	s := store.NewFileStore(config.MaintenanceConfig{
		MaintenancePath:          filepath.Join(t.TempDir(), "missing.json"),
		ScheduledMaintenancePath: filepath.Join(t.TempDir(), "missing.json"),
	})

	_, err := s.Maintenance()
	require.Error(t, err)
}
