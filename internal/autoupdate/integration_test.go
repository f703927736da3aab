//go:build integration

package autoupdate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	gossh "golang.org/x/crypto/ssh"

	"github.com/catalystcommunity/bindeploy/internal/remote"
	"github.com/catalystcommunity/bindeploy/internal/ssh"
)

const (
	containerUser     = "testuser"
	containerPassword = "testpass"
)

// startSSHHost starts an SSH server container whose login user has
// password-protected sudo and returns a connection to it
func startSSHHost(t *testing.T, ctx context.Context) *ssh.Connection {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "linuxserver/openssh-server:latest",
			ExposedPorts: []string{"2222/tcp"},
			Env: map[string]string{
				"PUID":            "1000",
				"PGID":            "1000",
				"TZ":              "UTC",
				"PASSWORD_ACCESS": "true",
				"USER_NAME":       containerUser,
				"USER_PASSWORD":   containerPassword,
				"SUDO_ACCESS":     "true",
			},
			WaitingFor: wait.ForLog("done.").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "starting the SSH container requires a reachable Docker daemon")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "2222")
	require.NoError(t, err)

	opts := ssh.DefaultConnectionOptions(host, containerUser, gossh.Password(containerPassword))
	opts.Port = port.Int()

	// sshd may still be coming up after the log line
	var conn *ssh.Connection
	require.Eventually(t, func() bool {
		c, dialErr := ssh.Connect(opts)
		if dialErr != nil {
			return false
		}
		conn = c
		return true
	}, 30*time.Second, time.Second, "SSH server never accepted connections")
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestToggle_AgainstSSHHost(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	conn := startSSHHost(t, ctx)
	log := testLog()
	host := remote.NewHost(conn, "sshd", containerPassword, log)

	cfg := testConfig(t)
	cfg.Deploy.CronPath = "/etc/bindeploy.daily"
	_, err := host.Sudo(ctx, "mkdir -p /etc/bindeploy.daily")
	require.NoError(t, err)

	toggle := New(cfg, host, log)
	job := toggle.JobPath("example.com")

	require.NoError(t, toggle.Enable(ctx, "example.com"))

	result, err := host.Run(ctx, "stat -c '%U %G' "+job+" && test -x "+job, remote.Hide())
	require.NoError(t, err)
	assert.Equal(t, "root root", strings.TrimSpace(result.Stdout))

	result, err = host.Run(ctx, "cat "+job, remote.Hide())
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "# example.com disable_root=false")

	// The upload is moved, not copied
	result, err = host.Run(ctx, "test -e updzone_example.com.sh", remote.Hide(), remote.Warn())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)

	// Removing twice succeeds and leaves nothing behind
	require.NoError(t, toggle.Disable(ctx, "example.com"))
	require.NoError(t, toggle.Disable(ctx, "example.com"))

	result, err = host.Run(ctx, "test -e "+job, remote.Hide(), remote.Warn())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
}
