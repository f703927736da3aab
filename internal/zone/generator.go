// Package zone produces the per-zone update scripts and checks the zone
// database files they generate.
package zone

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/catalystcommunity/bindeploy/internal/config"
	"github.com/catalystcommunity/bindeploy/internal/render"
)

// Generator renders zone update scripts into the build output directory
type Generator struct {
	cfg *config.Config
	log *logrus.Entry
}

// NewGenerator creates a Generator for cfg
func NewGenerator(cfg *config.Config, log *logrus.Entry) *Generator {
	return &Generator{cfg: cfg, log: log}
}

// ScriptPath returns where the update script for zone is written
func (g *Generator) ScriptPath(zone string) string {
	return filepath.Join(g.cfg.Build.OutputPath, ScriptName(zone))
}

// ScriptName returns the update script file name for zone
func ScriptName(zone string) string {
	return fmt.Sprintf("updzone_%s.sh", zone)
}

// Generate writes the update script for zone and returns its path.
// disableRoot is passed to the template to drop privilege escalation inside
// the script. The caller owns the returned file.
func (g *Generator) Generate(zone string, disableRoot bool) (string, error) {
	zoneData, err := g.cfg.ZoneData(zone)
	if err != nil {
		return "", err
	}

	tmplPath := filepath.Join(g.cfg.Build.TemplatePath, render.UpdateScriptTemplate)
	tmpl, err := render.Load(tmplPath, g.log)
	if err != nil {
		return "", err
	}

	scriptPath := g.ScriptPath(zone)
	err = tmpl.RenderToFile(scriptPath, map[string]interface{}{
		"disable_root": disableRoot,
		"zone":         zoneData,
		"remote":       g.cfg.Deploy.Data(),
	}, 0644)
	if err != nil {
		g.log.Errorf("failed to build update script for zone %q at %s", zone, scriptPath)
		return "", fmt.Errorf("failed to generate update script for zone %s: %w", zone, err)
	}

	g.log.Debugf("created update script for zone %q at %s", zone, scriptPath)
	return scriptPath, nil
}
