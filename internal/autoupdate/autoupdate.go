// Package autoupdate installs and removes the daily zone update jobs on the
// remote host.
package autoupdate

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"al.essio.dev/pkg/shellescape"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/catalystcommunity/bindeploy/internal/config"
	"github.com/catalystcommunity/bindeploy/internal/remote"
	"github.com/catalystcommunity/bindeploy/internal/zone"
)

// Toggle enables or disables the periodic update job of a zone
type Toggle struct {
	cfg  *config.Config
	exec remote.Executor
	gen  *zone.Generator
	log  *logrus.Entry
}

// New creates a Toggle working through exec
func New(cfg *config.Config, exec remote.Executor, log *logrus.Entry) *Toggle {
	log = log.WithField("component", "autoupdate")
	return &Toggle{
		cfg:  cfg,
		exec: exec,
		gen:  zone.NewGenerator(cfg, log),
		log:  log,
	}
}

// JobPath returns the periodic job path for zone on the remote host
func (t *Toggle) JobPath(zoneName string) string {
	return path.Join(t.cfg.Deploy.CronPath, "bind-upd-"+zoneName)
}

// Enable installs the update script of zoneName as a root-owned daily job
func (t *Toggle) Enable(ctx context.Context, zoneName string) (err error) {
	if err := remote.Check(remote.OpAutoUpdateOn, t.exec); err != nil {
		return err
	}

	script, err := t.gen.Generate(zoneName, false)
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(script); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierror.Append(err, fmt.Errorf("failed to remove %s: %w", script, rmErr)).ErrorOrNil()
		}
	}()

	jobPath := t.JobPath(zoneName)
	uploaded := filepath.Base(script)
	t.log.Infof("deploying update script at %s", jobPath)

	if err := t.exec.Put(ctx, script, uploaded); err != nil {
		return fmt.Errorf("failed to upload update script for zone %s: %w", zoneName, err)
	}

	job := shellescape.Quote(jobPath)
	for _, cmd := range []string{
		fmt.Sprintf("mv -f %s %s", shellescape.Quote(uploaded), job),
		fmt.Sprintf("chown root:root %s", job),
		fmt.Sprintf("chmod +x %s", job),
	} {
		if _, err := t.exec.Sudo(ctx, cmd, remote.Hide()); err != nil {
			return fmt.Errorf("failed to install update job for zone %s: %w", zoneName, err)
		}
	}

	return nil
}

// Disable removes the daily job of zoneName. A missing job is not an error.
func (t *Toggle) Disable(ctx context.Context, zoneName string) error {
	if err := remote.Check(remote.OpAutoUpdateOff, t.exec); err != nil {
		return err
	}

	jobPath := t.JobPath(zoneName)
	t.log.Infof("removing update script at %s", jobPath)

	if _, err := t.exec.Sudo(ctx, "rm -f "+shellescape.Quote(jobPath), remote.Hide()); err != nil {
		return fmt.Errorf("failed to remove update job for zone %s: %w", zoneName, err)
	}

	return nil
}
