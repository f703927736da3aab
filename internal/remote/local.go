package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Local executes commands on the build machine with /bin/sh
type Local struct {
	log *logrus.Entry
}

// NewLocal returns an Executor for the local machine
func NewLocal(log *logrus.Entry) *Local {
	return &Local{log: log.WithField("host", "local")}
}

// Remote always reports false
func (l *Local) Remote() bool {
	return false
}

// HasSudo always reports false; local commands never escalate
func (l *Local) HasSudo() bool {
	return false
}

// Run executes cmd through sh -c. Env entries are added to the process
// environment.
func (l *Local) Run(ctx context.Context, cmd string, opts ...Option) (*Result, error) {
	o := collect(opts)
	l.log.Debugf("local: %s", cmd)

	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Dir = o.dir
	c.Env = os.Environ()
	for k, v := range o.env {
		c.Env = append(c.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if !o.hide {
		outLog := newLineLogger(l.log, logrus.InfoLevel)
		errLog := newLineLogger(l.log, logrus.WarnLevel)
		defer outLog.Flush()
		defer errLog.Flush()
		c.Stdout = io.MultiWriter(&stdout, outLog)
		c.Stderr = io.MultiWriter(&stderr, errLog)
	}

	result := &Result{}
	err := c.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			return nil, fmt.Errorf("failed to run %q: %w", cmd, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return o.finish(cmd, result)
}

// Sudo is not available locally
func (l *Local) Sudo(ctx context.Context, cmd string, opts ...Option) (*Result, error) {
	return nil, fmt.Errorf("%w: sudo is not available in the local context", ErrPrecondition)
}

// Put copies localPath to remotePath on the local filesystem
func (l *Local) Put(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(remotePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", remotePath, err)
	}

	dst, err := os.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", remotePath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy %s: %w", localPath, err)
	}

	return dst.Close()
}
