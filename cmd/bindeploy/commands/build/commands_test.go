package build

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env"
	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env/envtest"
	"github.com/catalystcommunity/bindeploy/internal/config"
)

func testApp(output *bytes.Buffer) *cli.Command {
	return &cli.Command{
		Name:     "test",
		Flags:    env.GlobalFlags(),
		Commands: []*cli.Command{CleanCommand, BuildCommand},
		Writer:   output,
	}
}

func TestCommandsStructure(t *testing.T) {
	assert.Equal(t, "clean", CleanCommand.Name)
	assert.NotNil(t, CleanCommand.Action)
	assert.Equal(t, "build", BuildCommand.Name)
	assert.NotNil(t, BuildCommand.Action)
}

func TestRunClean(t *testing.T) {
	dir := envtest.Setup(t)
	stale := filepath.Join(dir, "build", "stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	var output bytes.Buffer
	err := testApp(&output).Run(context.Background(), []string{"test", "clean"})
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.DirExists(t, filepath.Join(dir, "build"))
	assert.Contains(t, output.String(), "INFO: cleaning build path at build")
}

func TestRunBuild(t *testing.T) {
	dir := envtest.Setup(t)

	var output bytes.Buffer
	err := testApp(&output).Run(context.Background(), []string{"test", "build"})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "build", "bind.tar.gz"))
	assert.Contains(t, output.String(), "build complete")

	// Every console record also reaches the log file
	logData, err := os.ReadFile(filepath.Join(dir, "output.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "creating build file at")
}

func TestRunBuild_MissingConfig(t *testing.T) {
	dir := envtest.Setup(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "config.yml")))

	var output bytes.Buffer
	err := testApp(&output).Run(context.Background(), []string{"test", "build"})
	require.Error(t, err)

	assert.ErrorIs(t, err, config.ErrInvalid)
	var reported *env.ReportedError
	assert.ErrorAs(t, err, &reported)
	assert.Contains(t, output.String(), "ERROR: ")
}

func TestRunBuild_TemplateMissing(t *testing.T) {
	dir := envtest.Setup(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "templates", "updzone.sh.tmpl")))

	var output bytes.Buffer
	err := testApp(&output).Run(context.Background(), []string{"test", "build"})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "build failed")
	assert.NoFileExists(t, filepath.Join(dir, "build", "bind.tar.gz"))
}
