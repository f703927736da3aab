package remote

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/catalystcommunity/bindeploy/internal/ssh"
	"github.com/catalystcommunity/bindeploy/internal/sudo"
)

// Conn is the subset of *ssh.Connection used by Host
type Conn interface {
	ExecWithOptions(ctx context.Context, cmd string, opts ssh.ExecOptions) (*ssh.ExecResult, error)
	Upload(ctx context.Context, localPath, remotePath string, mode os.FileMode) error
}

// Host executes commands on a remote host over SSH
type Host struct {
	conn     Conn
	name     string
	password string
	log      *logrus.Entry
}

// NewHost returns an Executor for a connected host. An empty password means
// no sudo credential is available.
func NewHost(conn Conn, name, sudoPassword string, log *logrus.Entry) *Host {
	return &Host{
		conn:     conn,
		name:     name,
		password: sudoPassword,
		log:      log.WithField("host", name),
	}
}

// Name returns the host the executor is connected to
func (h *Host) Name() string {
	return h.name
}

// Remote always reports true
func (h *Host) Remote() bool {
	return true
}

// HasSudo reports whether a sudo password was supplied
func (h *Host) HasSudo() bool {
	return h.password != ""
}

// Run executes cmd as the login user
func (h *Host) Run(ctx context.Context, cmd string, opts ...Option) (*Result, error) {
	o := collect(opts)
	h.log.Debugf("run: %s", cmd)
	return h.exec(ctx, cmd, o.shellCommand(cmd), ssh.ExecOptions{Pty: o.pty}, o)
}

// Sudo executes cmd as root, feeding the password on stdin
func (h *Host) Sudo(ctx context.Context, cmd string, opts ...Option) (*Result, error) {
	o := collect(opts)
	h.log.Debugf("sudo: %s", cmd)

	execOpts := ssh.ExecOptions{Pty: o.pty}
	line := sudo.Wrap(o.shellCommand(cmd), h.HasSudo())
	if h.HasSudo() {
		execOpts.Stdin = sudo.Stdin(h.password, nil)
	}

	return h.exec(ctx, cmd, line, execOpts, o)
}

// Put uploads localPath keeping its permission bits
func (h *Host) Put(ctx context.Context, localPath, remotePath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot upload directory %s", localPath)
	}

	h.log.Infof("put: %s -> %s", localPath, remotePath)
	return h.conn.Upload(ctx, localPath, remotePath, info.Mode().Perm())
}

func (h *Host) exec(ctx context.Context, cmd, line string, execOpts ssh.ExecOptions, o *options) (*Result, error) {
	if !o.hide {
		stdout := newLineLogger(h.log, logrus.InfoLevel)
		stderr := newLineLogger(h.log, logrus.WarnLevel)
		defer stdout.Flush()
		defer stderr.Flush()
		execOpts.Stdout = stdout
		execOpts.Stderr = stderr
	}

	result, err := h.conn.ExecWithOptions(ctx, line, execOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to run %q on %s: %w", cmd, h.name, err)
	}

	return o.finish(cmd, result)
}
