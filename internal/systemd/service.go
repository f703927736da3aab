package systemd

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/catalystcommunity/bindeploy/internal/config"
	"github.com/catalystcommunity/bindeploy/internal/remote"
)

var commandPattern = regexp.MustCompile(`^[a-z][a-z-]*$`)

// Command returns the systemctl command line for a service
func Command(command, service string) string {
	return fmt.Sprintf("systemctl %s %s", command, service)
}

// Run issues systemctl <command> <service> on the remote host. The command
// runs through sudo when a credential is available and unprivileged
// otherwise.
func Run(ctx context.Context, exec remote.Executor, service, command string) (*remote.Result, error) {
	if service == "" {
		return nil, fmt.Errorf("%w: missing remote service name", config.ErrInvalid)
	}
	if err := remote.Check(remote.OpCmd, exec); err != nil {
		return nil, err
	}
	if !commandPattern.MatchString(command) {
		return nil, fmt.Errorf("invalid service command %q: only lowercase letters and dashes are allowed", command)
	}

	cmd := Command(command, service)

	var (
		result *remote.Result
		err    error
	)
	if exec.HasSudo() {
		result, err = exec.Sudo(ctx, cmd)
	} else {
		result, err = exec.Run(ctx, cmd)
	}
	if err != nil {
		return result, fmt.Errorf("failed to %s service %s: %w", command, service, err)
	}

	return result, nil
}

// GetServiceStatus queries the status of a systemd service
func GetServiceStatus(ctx context.Context, exec remote.Executor, name string) (*ServiceStatus, error) {
	if !strings.HasSuffix(name, ".service") {
		name = name + ".service"
	}

	result, err := exec.Run(ctx, fmt.Sprintf("systemctl show %s --no-pager", name), remote.Hide())
	if err != nil {
		return nil, fmt.Errorf("failed to get service status: %w", err)
	}

	status := parseShow(result.Stdout)
	status.Name = name
	return status, nil
}

// parseShow parses systemctl show output
func parseShow(output string) *ServiceStatus {
	status := &ServiceStatus{}

	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimRight(line, "\r"), "=")
		if !ok {
			continue
		}

		switch key {
		case "LoadState":
			status.LoadState = value
			status.Loaded = value == "loaded"
		case "ActiveState":
			status.ActiveState = value
			status.Active = value == "active"
		case "SubState":
			status.SubState = value
			status.Running = value == "running"
		case "UnitFileState":
			status.Enabled = value == "enabled"
		case "MainPID":
			if pid, err := strconv.Atoi(value); err == nil {
				status.MainPID = pid
			}
		case "ActiveEnterTimestamp":
			if t, err := parseSystemdTimestamp(value); err == nil {
				status.Since = t
			}
		case "MemoryCurrent":
			if value != "[not set]" {
				if mem, err := strconv.ParseUint(value, 10, 64); err == nil {
					status.Memory = mem
				}
			}
		case "TasksCurrent":
			if value != "[not set]" {
				if tasks, err := strconv.Atoi(value); err == nil {
					status.Tasks = tasks
				}
			}
		}
	}

	return status
}

var timestampPattern = regexp.MustCompile(`\w+ (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) \w+`)

// parseSystemdTimestamp parses systemd timestamp format
func parseSystemdTimestamp(ts string) (time.Time, error) {
	if ts == "" || ts == "n/a" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	// Systemd timestamps are in the format: "Day YYYY-MM-DD HH:MM:SS TZ"
	// Example: "Mon 2024-01-15 10:30:45 UTC"
	matches := timestampPattern.FindStringSubmatch(ts)
	if len(matches) < 2 {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %s", ts)
	}

	t, err := time.Parse("2006-01-02 15:04:05", matches[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	return t, nil
}
