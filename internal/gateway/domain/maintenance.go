package domain

// MaintenanceState is the flag shown to users when the facility takes
// the service down for maintenance.
type MaintenanceState struct {
	Show    bool   `json:"show"`
	Message string `json:"message"`
}

// ScheduledMaintenanceState announces upcoming maintenance ahead of time.
type ScheduledMaintenanceState struct {
	MaintenanceState

	Severity string `json:"severity"`
}
