// Package deploy installs a build archive on the remote BIND host
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"al.essio.dev/pkg/shellescape"
	"github.com/sirupsen/logrus"

	"github.com/catalystcommunity/bindeploy/internal/autoupdate"
	"github.com/catalystcommunity/bindeploy/internal/config"
	"github.com/catalystcommunity/bindeploy/internal/remote"
	"github.com/catalystcommunity/bindeploy/internal/systemd"
)

// Deployer pushes the build archive to the remote host and restarts the service
type Deployer struct {
	cfg    *config.Config
	exec   remote.Executor
	toggle *autoupdate.Toggle
	log    *logrus.Entry
}

// New creates a Deployer working through exec
func New(cfg *config.Config, exec remote.Executor, log *logrus.Entry) *Deployer {
	return &Deployer{
		cfg:    cfg,
		exec:   exec,
		toggle: autoupdate.New(cfg, exec, log),
		log:    log.WithField("component", "deploy"),
	}
}

// CheckPreconditions verifies, in order, the remote connection, the sudo
// credential, the deploy settings, the installed service package and the
// local archive. It changes nothing on the remote host.
func (d *Deployer) CheckPreconditions(ctx context.Context, archivePath string) error {
	if err := remote.Check(remote.OpDeploy, d.exec); err != nil {
		return err
	}

	if err := d.cfg.Deploy.Validate(); err != nil {
		return err
	}

	pkg := d.cfg.Deploy.PackageName
	if pkg == "" {
		pkg = d.cfg.Deploy.ServiceName
	}
	result, err := d.exec.Run(ctx, "dpkg -s "+shellescape.Quote(pkg), remote.Hide(), remote.Warn())
	if err != nil {
		return fmt.Errorf("failed to query package %s: %w", pkg, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: package %s is not installed", remote.ErrPrecondition, pkg)
	}

	info, err := os.Stat(archivePath)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: no build for deployment at %s", remote.ErrPrecondition, archivePath)
	}

	return nil
}

// Deploy installs the archive at archivePath into app_path, provisions the
// log directory, enables flagged auto-update jobs and restarts the service.
//
// The archive is uploaded and listed before the previous configuration is
// removed, so a failed transfer leaves the running configuration in place.
func (d *Deployer) Deploy(ctx context.Context, archivePath string) error {
	if err := d.CheckPreconditions(ctx, archivePath); err != nil {
		return err
	}

	dc := d.cfg.Deploy
	uploaded := filepath.Base(archivePath)
	if d.cfg.Build.OutputFile != "" {
		uploaded = d.cfg.Build.OutputFile
	}
	uploadedArg := shellescape.Quote(uploaded)
	appPath := shellescape.Quote(dc.AppPath)
	logPath := shellescape.Quote(dc.LogPath)
	owner := shellescape.Quote(dc.User + ":" + dc.Group)

	d.log.Infof("uploading %s", archivePath)
	if err := d.exec.Put(ctx, archivePath, uploaded); err != nil {
		return fmt.Errorf("failed to upload build: %w", err)
	}

	if _, err := d.exec.Run(ctx, "tar -tzf "+uploadedArg, remote.Hide()); err != nil {
		d.removeUpload(ctx, uploadedArg)
		return fmt.Errorf("uploaded build is not a valid archive: %w", err)
	}

	d.log.Infof("removing previous configuration from %s", dc.AppPath)
	for _, cmd := range []string{
		fmt.Sprintf("rm -f %s/named.conf*", appPath),
		fmt.Sprintf("rm -rf %s/db.*", appPath),
		fmt.Sprintf("rm -rf %s/zones*", appPath),
		fmt.Sprintf("rm -f %s/conf.d/*.conf", appPath),
	} {
		if _, err := d.exec.Sudo(ctx, cmd, remote.Hide()); err != nil {
			return fmt.Errorf("failed to remove previous configuration: %w", err)
		}
	}

	d.log.Infof("extracting build into %s", dc.AppPath)
	if _, err := d.exec.Sudo(ctx, fmt.Sprintf("tar -xzvf %s -C %s", uploadedArg, appPath), remote.Pty(), remote.Hide()); err != nil {
		return fmt.Errorf("failed to extract build: %w", err)
	}

	if _, err := d.exec.Run(ctx, "rm -f "+uploadedArg, remote.Hide()); err != nil {
		return fmt.Errorf("failed to remove uploaded build: %w", err)
	}

	for _, cmd := range []string{
		fmt.Sprintf("chown -R %s %s", owner, appPath),
		fmt.Sprintf("mkdir -p %s", logPath),
		fmt.Sprintf("chown -R %s %s", owner, logPath),
		fmt.Sprintf("chmod -R 755 %s", logPath),
	} {
		if _, err := d.exec.Sudo(ctx, cmd, remote.Hide()); err != nil {
			return fmt.Errorf("failed to set permissions: %w", err)
		}
	}

	for _, name := range d.cfg.Zones.Names() {
		zc, err := d.cfg.Zones.Get(name)
		if err != nil {
			return err
		}
		if !zc.AutoUpdate {
			continue
		}
		if err := d.toggle.Enable(ctx, name); err != nil {
			return err
		}
	}

	if _, err := systemd.Run(ctx, d.exec, dc.ServiceName, "restart"); err != nil {
		return err
	}

	status, err := systemd.GetServiceStatus(ctx, d.exec, dc.ServiceName)
	if err != nil {
		d.log.WithError(err).Warn("could not read service status after restart")
		return nil
	}
	if status.Active {
		d.log.Infof("service %s", status)
	} else {
		d.log.Warnf("service %s", status)
	}

	return nil
}

func (d *Deployer) removeUpload(ctx context.Context, uploadedArg string) {
	if _, err := d.exec.Run(ctx, "rm -f "+uploadedArg, remote.Hide()); err != nil {
		d.log.WithError(err).Warn("failed to remove uploaded build")
	}
}
