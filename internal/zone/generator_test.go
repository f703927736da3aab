package zone

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystcommunity/bindeploy/internal/config"
	"github.com/catalystcommunity/bindeploy/internal/render"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logrus.NewEntry(logger)
}

func testConfig(t *testing.T, templatePath string) *config.Config {
	t.Helper()
	return &config.Config{
		Build: config.BuildConfig{
			OutputPath:   t.TempDir(),
			OutputFile:   "bind.tar.gz",
			TemplatePath: templatePath,
		},
		Deploy: config.DeployConfig{
			ServiceName: "bind9",
			AppPath:     "/etc/bind",
			User:        "bind",
			Group:       "bind",
		},
		Zones: config.NewZones([]string{"example.com", "other.org"}, map[string]*config.ZoneConfig{
			"example.com": {
				RPZ: config.RPZConfig{Enabled: true, Params: map[string]interface{}{"policy": "drop"}},
			},
			"other.org": {},
		}),
	}
}

func TestGenerator_Generate(t *testing.T) {
	cfg := testConfig(t, "testdata/templates")
	g := NewGenerator(cfg, testLog())

	for _, zone := range cfg.Zones.Names() {
		t.Run(zone, func(t *testing.T) {
			path, err := g.Generate(zone, true)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(cfg.Build.OutputPath, "updzone_"+zone+".sh"), path)
			assert.FileExists(t, path)
		})
	}

	data, err := os.ReadFile(g.ScriptPath("example.com"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n# zone=example.com policy=drop app_path=/etc/bind disable_root=true\n", string(data))
}

func TestGenerator_Generate_DisableRoot(t *testing.T) {
	cfg := testConfig(t, "testdata/templates")
	g := NewGenerator(cfg, testLog())

	path, err := g.Generate("other.org", false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "zone=other.org")
	assert.Contains(t, string(data), "disable_root=false")
}

func TestGenerator_Generate_MissingZone(t *testing.T) {
	cfg := testConfig(t, "testdata/templates")
	g := NewGenerator(cfg, testLog())

	path, err := g.Generate("missing.net", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrZoneNotFound)
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Empty(t, path)

	entries, err := os.ReadDir(cfg.Build.OutputPath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerator_Generate_ZoneWithoutSettings(t *testing.T) {
	cfg := testConfig(t, "testdata/templates")
	cfg.Zones = config.NewZones([]string{"empty.org"}, nil)
	g := NewGenerator(cfg, testLog())

	_, err := g.Generate("empty.org", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrZoneNotFound)
	assert.Contains(t, err.Error(), `no configuration found for zone "empty.org"`)
	assert.NoFileExists(t, g.ScriptPath("empty.org"))
}

func TestGenerator_Generate_MissingTemplate(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	g := NewGenerator(cfg, testLog())

	_, err := g.Generate("example.com", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, render.ErrTemplate)
	assert.NoFileExists(t, g.ScriptPath("example.com"))
}

func TestScriptName(t *testing.T) {
	assert.Equal(t, "updzone_example.com.sh", ScriptName("example.com"))
}
