// Package env wires a single bindeploy invocation: the logger, the loaded
// configuration and, on demand, the remote execution context.
package env

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/catalystcommunity/bindeploy/internal/config"
	"github.com/catalystcommunity/bindeploy/internal/logging"
	"github.com/catalystcommunity/bindeploy/internal/remote"
	"github.com/catalystcommunity/bindeploy/internal/secrets"
)

// Env holds everything a command needs for one run
type Env struct {
	Config *config.Config
	Log    *logrus.Entry

	cmd     *cli.Command
	exec    remote.Executor
	closers []io.Closer
}

// ReportedError is a command failure that has already been logged
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string {
	return e.Err.Error()
}

func (e *ReportedError) Unwrap() error {
	return e.Err
}

// Action adapts fn into a cli action. The environment is set up before fn
// runs and released afterwards; a failure is logged at error level and
// returned as a ReportedError.
func Action(fn func(ctx context.Context, cmd *cli.Command, e *Env) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		e, err := Load(cmd)
		if err != nil {
			return err
		}

		runErr := fn(ctx, cmd, e)
		if runErr != nil {
			e.Log.Error(runErr.Error())
		}

		if err := e.Close(); err != nil {
			fmt.Fprintf(cmd.Root().ErrWriter, "warning: %v\n", err)
		}

		if runErr != nil {
			return &ReportedError{Err: runErr}
		}
		return nil
	}
}

// Load creates the logger from the global flags and loads the configuration
func Load(cmd *cli.Command) (*Env, error) {
	logger, closer, err := logging.New(logging.Options{
		File:    cmd.String("log-file"),
		Verbose: cmd.Bool("verbose"),
		Console: cmd.Root().Writer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	e := &Env{
		Log:     logger.WithField(logging.ComponentField, logging.DefaultName),
		cmd:     cmd,
		closers: []io.Closer{closer},
	}

	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		e.Log.Error(err.Error())
		e.Close()
		return nil, &ReportedError{Err: err}
	}
	e.Config = cfg

	return e, nil
}

func loadConfig(name string) (*config.Config, error) {
	path, err := config.FindConfig(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Local returns the executor for commands run on the build machine
func (e *Env) Local() remote.Executor {
	return remote.NewLocal(e.Log)
}

// Remote returns the executor for the host given with --host. Without a
// host it returns nil, which operations report as a missing remote
// connection.
func (e *Env) Remote(ctx context.Context) (remote.Executor, error) {
	if e.exec != nil {
		return e.exec, nil
	}

	target := e.cmd.String("host")
	if target == "" {
		return nil, nil
	}

	opts := DialOptions{
		Target:   target,
		Identity: e.cmd.String("identity"),
	}

	host, err := TargetHost(target)
	if err != nil {
		return nil, err
	}

	password, err := e.SudoPassword(host)
	if err != nil {
		return nil, err
	}
	opts.SudoPassword = password

	exec, closer, err := Dial(ctx, opts, e.Log)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		e.closers = append(e.closers, closer)
	}

	e.exec = exec
	return exec, nil
}

// SudoPassword resolves the sudo password for host from, in order, stdin
// (--sudo-password-stdin), BINDEPLOY_SUDO_PASSWORD, a terminal prompt
// (--prompt-sudo) and the stored credential. An empty result means no
// credential is available.
func (e *Env) SudoPassword(host string) (string, error) {
	var resolvers []secrets.Resolver
	if e.cmd.Bool("sudo-password-stdin") {
		resolvers = append(resolvers, &secrets.ReaderResolver{Reader: os.Stdin})
	}
	resolvers = append(resolvers, secrets.NewEnvResolver())
	if e.cmd.Bool("prompt-sudo") {
		resolvers = append(resolvers, &secrets.PromptResolver{In: os.Stdin, Out: e.cmd.Root().ErrWriter})
	}
	resolvers = append(resolvers, secrets.KeyringResolver{})

	password, err := secrets.NewChainResolver(resolvers...).Resolve(host)
	if errors.Is(err, secrets.ErrNotFound) {
		e.Log.Debugf("no sudo credential for %s", host)
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return password, nil
}

// Close releases the remote connection and the log file
func (e *Env) Close() error {
	var result *multierror.Error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	e.closers = nil
	return result.ErrorOrNil()
}
