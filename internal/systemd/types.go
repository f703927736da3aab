package systemd

import (
	"fmt"
	"time"
)

// ServiceStatus represents the status of a systemd service
type ServiceStatus struct {
	Name        string
	Loaded      bool
	Active      bool
	Running     bool
	Enabled     bool
	MainPID     int
	SubState    string // running, exited, dead, failed, etc.
	LoadState   string // loaded, not-found, bad-setting, error, masked
	ActiveState string // active, inactive, activating, deactivating, failed
	Since       time.Time
	Memory      uint64 // bytes
	Tasks       int
}

// String returns a one-line summary suitable for logging
func (s *ServiceStatus) String() string {
	summary := fmt.Sprintf("%s: %s (%s)", s.Name, s.ActiveState, s.SubState)
	if s.MainPID > 0 {
		summary += fmt.Sprintf(", pid %d", s.MainPID)
	}
	if !s.Since.IsZero() {
		summary += ", since " + s.Since.Format("2006-01-02 15:04:05")
	}
	return summary
}
