// Package build turns the base BIND tree and the zone configuration into
// the deployable archive.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/hashicorp/go-multierror"
	"github.com/moby/go-archive"
	"github.com/moby/go-archive/compression"
	"github.com/sirupsen/logrus"

	"github.com/catalystcommunity/bindeploy/internal/config"
	"github.com/catalystcommunity/bindeploy/internal/remote"
	"github.com/catalystcommunity/bindeploy/internal/render"
	"github.com/catalystcommunity/bindeploy/internal/zone"
)

// ExcludePatterns lists OS metadata files left out of the archive
var ExcludePatterns = []string{".DS_Store", "**/.DS_Store"}

const (
	customZonesFile = "zones/zone.custom"
	optionsFile     = "conf.d/options.conf"
)

// Builder runs the clean and build tasks
type Builder struct {
	cfg  *config.Config
	exec remote.Executor
	gen  *zone.Generator
	log  *logrus.Entry

	// RemoveAll deletes a directory tree; tests may replace it
	RemoveAll func(path string) error
}

// New creates a Builder. exec runs the generated update scripts and is
// normally a remote.Local.
func New(cfg *config.Config, exec remote.Executor, log *logrus.Entry) *Builder {
	log = log.WithField("component", "build")
	return &Builder{
		cfg:       cfg,
		exec:      exec,
		gen:       zone.NewGenerator(cfg, log),
		log:       log,
		RemoveAll: os.RemoveAll,
	}
}

// Generator returns the zone script generator bound to the build output path
func (b *Builder) Generator() *zone.Generator {
	return b.gen
}

// ArchivePath returns the absolute path of the build archive
func (b *Builder) ArchivePath() (string, error) {
	p, err := filepath.Abs(filepath.Join(b.cfg.Build.OutputPath, b.cfg.Build.OutputFile))
	if err != nil {
		return "", fmt.Errorf("failed to resolve build file path: %w", err)
	}
	return p, nil
}

// Clean removes and recreates the build output directory
func (b *Builder) Clean() error {
	outputPath := b.cfg.Build.OutputPath
	if strings.TrimSpace(outputPath) == "" {
		return fmt.Errorf("%w: missing build output path", config.ErrInvalid)
	}
	if err := b.cfg.Build.Validate(); err != nil {
		return err
	}

	b.log.Infof("cleaning build path at %s", outputPath)

	if err := b.RemoveAll(outputPath); err != nil {
		return fmt.Errorf("failed to remove %s: %w", outputPath, err)
	}
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outputPath, err)
	}

	return nil
}

// Build cleans the output directory and produces the archive, returning
// its absolute path. The temporary working tree is always removed.
func (b *Builder) Build(ctx context.Context) (archivePath string, err error) {
	if err := b.Clean(); err != nil {
		return "", err
	}

	work, err := os.MkdirTemp("", "bind_")
	if err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}
	b.log.Debugf("temporary path %s", work)
	defer func() {
		if rmErr := b.RemoveAll(work); rmErr != nil {
			err = multierror.Append(err, fmt.Errorf("failed to remove %s: %w", work, rmErr)).ErrorOrNil()
		}
	}()

	if err := copyTree(b.cfg.Build.BasePath, work); err != nil {
		return "", err
	}

	rpzZones, err := b.buildZones(ctx, work)
	if err != nil {
		b.log.WithError(err).Error("failed to create custom zones configuration")
		return "", err
	}

	if err := b.renderOptions(work, rpzZones); err != nil {
		b.log.WithError(err).Error("failed to create bind configuration")
		return "", err
	}

	archivePath, err = b.ArchivePath()
	if err != nil {
		return "", err
	}

	b.log.Infof("creating build file at %s", archivePath)
	if err := writeArchive(work, archivePath); err != nil {
		return "", err
	}

	return archivePath, nil
}

// buildZones writes every zone database and the custom zones file, returning
// the RPZ entries in zone order
func (b *Builder) buildZones(ctx context.Context, work string) ([]map[string]interface{}, error) {
	tmpl, err := render.Load(filepath.Join(b.cfg.Build.TemplatePath, render.ZoneTemplate), b.log)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{"db", "zones"} {
		if err := os.MkdirAll(filepath.Join(work, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	zonesPath := filepath.Join(work, customZonesFile)
	zonesFile, err := os.Create(zonesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", zonesPath, err)
	}
	defer zonesFile.Close()

	rpzZones := []map[string]interface{}{}
	for _, name := range b.cfg.Zones.Names() {
		zc, err := b.cfg.Zones.Get(name)
		if err != nil {
			return nil, err
		}

		if zc.RPZ.Enabled {
			rpz := zc.RPZ.Data()
			rpz["name"] = name
			rpzZones = append(rpzZones, rpz)
			b.log.Debugf("zone %q added to RPZ list", name)
		}

		dbName := "db." + name
		dbPath := filepath.Join(work, "db", dbName)
		if err := b.buildZoneDB(ctx, name, dbPath); err != nil {
			return nil, err
		}

		if b.cfg.Build.CheckZones {
			count, err := zone.CheckDB(dbPath, name)
			if err != nil {
				return nil, err
			}
			b.log.Debugf("zone %q database holds %d records", name, count)
		}

		stanza, err := tmpl.Render(map[string]interface{}{
			"zone_name": name,
			"db_file":   path.Join(b.cfg.Deploy.AppPath, "db", dbName),
		})
		if err != nil {
			return nil, err
		}
		if _, err := fmt.Fprintf(zonesFile, "%s\n", stanza); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", zonesPath, err)
		}
	}

	if err := zonesFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", zonesPath, err)
	}

	return rpzZones, nil
}

// buildZoneDB runs the zone update script once to produce dbPath. The
// script is removed whether or not it succeeded.
func (b *Builder) buildZoneDB(ctx context.Context, name, dbPath string) (err error) {
	script, err := b.gen.Generate(name, true)
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(script); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierror.Append(err, fmt.Errorf("failed to remove %s: %w", script, rmErr)).ErrorOrNil()
		}
	}()

	if err := os.Chmod(script, 0755); err != nil {
		return fmt.Errorf("failed to make %s executable: %w", script, err)
	}

	absScript, err := filepath.Abs(script)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", script, err)
	}

	b.log.Infof("building zone %q", name)
	cmd := fmt.Sprintf("%s -so %s", shellescape.Quote(absScript), shellescape.Quote(dbPath))
	if _, err := b.exec.Run(ctx, cmd, remote.Hide()); err != nil {
		return fmt.Errorf("failed to build database for zone %s: %w", name, err)
	}

	return nil
}

func (b *Builder) renderOptions(work string, rpzZones []map[string]interface{}) error {
	tmpl, err := render.Load(filepath.Join(b.cfg.Build.TemplatePath, render.OptionsTemplate), b.log)
	if err != nil {
		return err
	}

	optionsPath := filepath.Join(work, optionsFile)
	if err := os.MkdirAll(filepath.Dir(optionsPath), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(optionsPath), err)
	}

	return tmpl.RenderToFile(optionsPath, map[string]interface{}{
		"forwarders": b.cfg.Forwarders,
		"rpz_zones":  rpzZones,
	}, 0644)
}

// copyTree copies the contents of src into the existing directory dst
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to read base configuration %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: base configuration %s is not a directory", config.ErrInvalid, src)
	}

	rc, err := archive.TarWithOptions(src, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to read base configuration %s: %w", src, err)
	}
	defer rc.Close()

	if err := archive.Untar(rc, dst, &archive.TarOptions{NoLchown: true, BestEffortXattrs: true}); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	return nil
}

// writeArchive packages the contents of dir as a gzip tarball at dest.
// Entries are owned by root so the extracted tree starts root-owned.
func writeArchive(dir, dest string) (err error) {
	rc, err := archive.TarWithOptions(dir, &archive.TarOptions{
		Compression:     compression.Gzip,
		ExcludePatterns: ExcludePatterns,
		ChownOpts:       &archive.ChownOpts{UID: 0, GID: 0},
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", dir, err)
	}
	defer rc.Close()

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to write %s: %w", dest, closeErr)
		}
	}()

	if _, err := io.Copy(f, rc); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}

	return nil
}
