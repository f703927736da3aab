package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env"
	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env/envtest"
	"github.com/catalystcommunity/bindeploy/internal/config"
	"github.com/catalystcommunity/bindeploy/internal/remote"
	"github.com/catalystcommunity/bindeploy/internal/remote/remotetest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var output bytes.Buffer
	app := &cli.Command{
		Name:     "test",
		Flags:    env.GlobalFlags(),
		Commands: []*cli.Command{Command},
		Writer:   &output,
	}
	err := app.Run(context.Background(), append([]string{"test"}, args...))
	return output.String(), err
}

func TestRunCmd_WithSudo(t *testing.T) {
	envtest.Setup(t)
	t.Setenv("BINDEPLOY_SUDO_PASSWORD", "pw")
	rec := remotetest.New()
	var dialed env.DialOptions
	envtest.UseRecorder(t, rec, &dialed)

	_, err := run(t, "--host", "admin@ns1.example.com:2222", "cmd", "restart")
	require.NoError(t, err)

	assert.Equal(t, []string{"sudo systemctl restart bind9"}, rec.Commands())
	assert.Equal(t, "admin@ns1.example.com:2222", dialed.Target)
	assert.Equal(t, "pw", dialed.SudoPassword)
}

func TestRunCmd_WithoutSudo(t *testing.T) {
	envtest.Setup(t)
	rec := remotetest.New()
	envtest.UseRecorder(t, rec, nil)

	_, err := run(t, "--host", "ns1.example.com", "cmd", "status")
	require.NoError(t, err)

	assert.Equal(t, []string{"run systemctl status bind9"}, rec.Commands())
}

func TestRunCmd_NotRemote(t *testing.T) {
	envtest.Setup(t)

	output, err := run(t, "cmd", "restart")
	require.Error(t, err)

	assert.ErrorIs(t, err, remote.ErrPrecondition)
	assert.Contains(t, output, "ERROR: ")
	assert.Contains(t, output, "task requires remote connection")
}

func TestRunCmd_MissingServiceName(t *testing.T) {
	dir := envtest.Setup(t)
	cfg := strings.Replace(envtest.Config, "  service_name: bind9\n", "", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(cfg), 0644))
	rec := remotetest.New()
	envtest.UseRecorder(t, rec, nil)

	_, err := run(t, "--host", "ns1.example.com", "cmd", "restart")
	require.Error(t, err)

	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Contains(t, err.Error(), "missing remote service name")
	assert.Empty(t, rec.Calls())
}

func TestRunCmd_ArgumentCount(t *testing.T) {
	envtest.Setup(t)

	_, err := run(t, "cmd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected exactly one service command")

	_, err = run(t, "cmd", "stop", "start")
	require.Error(t, err)
}

func TestRunCmd_CommandFails(t *testing.T) {
	envtest.Setup(t)
	rec := remotetest.New()
	rec.Respond("systemctl", nil, &remote.ExitError{Command: "systemctl restart bind9", ExitCode: 1})
	envtest.UseRecorder(t, rec, nil)

	_, err := run(t, "--host", "ns1.example.com", "cmd", "restart")
	require.Error(t, err)

	var exitErr *remote.ExitError
	assert.ErrorAs(t, err, &exitErr)
}

func TestRunCmd_RejectsUnsafeCommand(t *testing.T) {
	envtest.Setup(t)
	rec := remotetest.New()
	envtest.UseRecorder(t, rec, nil)

	for _, command := range []string{"restart;reboot", "Restart", "daemon_reload", "$(id)"} {
		_, err := run(t, "--host", "ns1.example.com", "cmd", command)
		require.Error(t, err, command)
		assert.Contains(t, err.Error(), "only lowercase letters and dashes are allowed", command)
	}
	assert.Empty(t, rec.Calls())
}

func TestRunCmd_HelpNamesAllowedCommands(t *testing.T) {
	output, err := run(t, "cmd", "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "lowercase letters and dashes")
}
