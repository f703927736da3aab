// Package remote runs deployment commands either on a remote host over SSH
// or on the build machine, behind one Executor interface.
package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"al.essio.dev/pkg/shellescape"

	"github.com/catalystcommunity/bindeploy/internal/ssh"
)

// ErrPrecondition marks an operation that cannot start in the current context
var ErrPrecondition = errors.New("precondition failed")

// Result is the captured outcome of a command
type Result = ssh.ExecResult

// ExitError reports a command that exited with a non-zero status
type ExitError = ssh.ExitError

// Executor runs commands in an execution context
type Executor interface {
	// Run executes cmd as the connecting user
	Run(ctx context.Context, cmd string, opts ...Option) (*Result, error)
	// Sudo executes cmd as root
	Sudo(ctx context.Context, cmd string, opts ...Option) (*Result, error)
	// Put copies a local file to remotePath, relative to the login directory
	Put(ctx context.Context, localPath, remotePath string) error
	// Remote reports whether commands reach a remote host
	Remote() bool
	// HasSudo reports whether a sudo credential is available
	HasSudo() bool
}

// Option adjusts a single command execution
type Option func(*options)

type options struct {
	hide bool
	warn bool
	pty  bool
	env  map[string]string
	dir  string
}

// Hide suppresses echoing the command output to the log
func Hide() Option {
	return func(o *options) { o.hide = true }
}

// Warn returns a non-zero exit in the Result instead of as an *ExitError
func Warn() Option {
	return func(o *options) { o.warn = true }
}

// Pty requests a pseudo-terminal for the command
func Pty() Option {
	return func(o *options) { o.pty = true }
}

// Env sets environment variables for the command
func Env(env map[string]string) Option {
	return func(o *options) {
		if o.env == nil {
			o.env = make(map[string]string, len(env))
		}
		for k, v := range env {
			o.env[k] = v
		}
	}
}

// Dir runs the command from the given directory
func Dir(path string) Option {
	return func(o *options) { o.dir = path }
}

func collect(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// shellCommand prefixes cmd with the directory change and environment
// exports requested in o. Remote sessions cannot rely on SetEnv being
// accepted by the server, so both go into the command line.
func (o *options) shellCommand(cmd string) string {
	var parts []string
	if o.dir != "" {
		parts = append(parts, "cd "+shellescape.Quote(o.dir))
	}
	if len(o.env) > 0 {
		keys := make([]string, 0, len(o.env))
		for k := range o.env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("export %s=%s", k, shellescape.Quote(o.env[k])))
		}
	}
	parts = append(parts, cmd)
	return strings.Join(parts, " && ")
}

// finish turns a completed result into the caller-facing error
func (o *options) finish(cmd string, result *Result) (*Result, error) {
	if o.warn {
		return result, nil
	}
	if err := result.Err(cmd); err != nil {
		return result, err
	}
	return result, nil
}

// WarnSet reports whether opts include Warn
func WarnSet(opts []Option) bool {
	return collect(opts).warn
}
