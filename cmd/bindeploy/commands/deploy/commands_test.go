package deploy

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

func TestRunDeploy(t *testing.T) {
	dir := envtest.Setup(t)
	t.Setenv("BINDEPLOY_SUDO_PASSWORD", "pw")
	rec := remotetest.New()
	rec.Respond("systemctl show", &remote.Result{Stdout: "ActiveState=active\nSubState=running\n"}, nil)
	envtest.UseRecorder(t, rec, nil)

	output, err := run(t, "--host", "ns1", "deploy")
	require.NoError(t, err)

	calls := rec.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "dpkg -s bind9", calls[0].Command)

	archive := filepath.Join(dir, "build", "bind.tar.gz")
	assert.FileExists(t, archive)
	assert.Equal(t, remotetest.Call{Kind: remotetest.KindPut, Command: "bind.tar.gz", Local: archive}, calls[1])

	cmds := rec.Commands()
	assert.Contains(t, cmds, "sudo tar -xzvf bind.tar.gz -C /etc/bind")
	assert.Contains(t, cmds, "sudo mv -f updzone_example.com.sh /etc/cron.daily/bind-upd-example.com")
	assert.NotContains(t, cmds, "sudo mv -f updzone_other.org.sh /etc/cron.daily/bind-upd-other.org")
	assert.Equal(t, "run systemctl show bind9.service --no-pager", cmds[len(cmds)-1])
	assert.Equal(t, "sudo systemctl restart bind9", cmds[len(cmds)-2])

	assert.Contains(t, output, "deployed bind.tar.gz to ns1")
}

func TestRunDeploy_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		password string
		config   func(string) string
		wantIs   error
		wantMsg  string
	}{
		{
			name:    "not remote",
			args:    []string{"deploy"},
			wantIs:  remote.ErrPrecondition,
			wantMsg: "task requires remote connection",
		},
		{
			name:    "no sudo credential",
			args:    []string{"--host", "ns1", "deploy"},
			wantIs:  remote.ErrPrecondition,
			wantMsg: "task requires sudo password",
		},
		{
			name:     "missing deploy user",
			args:     []string{"--host", "ns1", "deploy"},
			password: "pw",
			config: func(c string) string {
				return strings.Replace(c, "  user: bind\n", "", 1)
			},
			wantIs:  config.ErrInvalid,
			wantMsg: "user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := envtest.Setup(t)
			if tt.config != nil {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(tt.config(envtest.Config)), 0644))
			}
			t.Setenv("BINDEPLOY_SUDO_PASSWORD", tt.password)
			rec := remotetest.New()
			envtest.UseRecorder(t, rec, nil)

			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Contains(t, err.Error(), tt.wantMsg)

			assert.Empty(t, rec.Calls())
			// Nothing is built when the deploy cannot start
			assert.NoDirExists(t, filepath.Join(dir, "build"))
		})
	}
}

func TestRunDeploy_PackageNotInstalled(t *testing.T) {
	envtest.Setup(t)
	t.Setenv("BINDEPLOY_SUDO_PASSWORD", "pw")
	rec := remotetest.New()
	rec.Respond("dpkg -s", &remote.Result{ExitCode: 1}, nil)
	envtest.UseRecorder(t, rec, nil)

	_, err := run(t, "--host", "ns1", "deploy")
	require.Error(t, err)

	assert.ErrorIs(t, err, remote.ErrPrecondition)
	assert.Contains(t, err.Error(), "package bind9 is not installed")
	assert.Equal(t, []string{"run dpkg -s bind9"}, rec.Commands())
}
