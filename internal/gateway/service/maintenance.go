package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datagateway/authgate/internal/gateway/domain"
	"github.com/datagateway/authgate/pkg/slogx"
)

// ErrMaintenanceFile reports that a maintenance state file could not be
// read or written.
var ErrMaintenanceFile = errors.New("maintenance_file")

// MaintenanceStore persists the maintenance states.
type MaintenanceStore interface {
	Maintenance() (domain.MaintenanceState, error)
	SetMaintenance(domain.MaintenanceState) error
	ScheduledMaintenance() (domain.ScheduledMaintenanceState, error)
	SetScheduledMaintenance(domain.ScheduledMaintenanceState) error
}

// MaintenanceService reads and updates the maintenance states. Reads are
// open to everyone; updates require an admin token, which the HTTP layer
// checks through the token service before calling here.
type MaintenanceService struct {
	Store MaintenanceStore
}

// Maintenance returns the current maintenance state.
func (s *MaintenanceService) Maintenance(context.Context) (domain.MaintenanceState, error) {
	state, err := s.Store.Maintenance()
	if err != nil {
		return domain.MaintenanceState{}, fmt.Errorf("%w: %w", ErrMaintenanceFile, err)
	}
	return state, nil
}

// SetMaintenance replaces the maintenance state.
func (s *MaintenanceService) SetMaintenance(ctx context.Context, state domain.MaintenanceState) error {
	if err := s.Store.SetMaintenance(state); err != nil {
		return fmt.Errorf("%w: %w", ErrMaintenanceFile, err)
	}
	slogx.FromContext(ctx).Info("maintenance state updated", slog.Bool("show", state.Show))
	return nil
}

// ScheduledMaintenance returns the current scheduled maintenance state.
func (s *MaintenanceService) ScheduledMaintenance(context.Context) (domain.ScheduledMaintenanceState, error) {
	state, err := s.Store.ScheduledMaintenance()
	if err != nil {
		return domain.ScheduledMaintenanceState{}, fmt.Errorf("%w: %w", ErrMaintenanceFile, err)
	}
	return state, nil
}

// SetScheduledMaintenance replaces the scheduled maintenance state.
func (s *MaintenanceService) SetScheduledMaintenance(ctx context.Context, state domain.ScheduledMaintenanceState) error {
	if err := s.Store.SetScheduledMaintenance(state); err != nil {
		return fmt.Errorf("%w: %w", ErrMaintenanceFile, err)
	}
	slogx.FromContext(ctx).Info("scheduled maintenance state updated", slog.Bool("show", state.Show))
	return nil
}
