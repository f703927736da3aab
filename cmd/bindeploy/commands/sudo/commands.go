package sudo

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env"
	"github.com/catalystcommunity/bindeploy/internal/secrets"
	"github.com/catalystcommunity/bindeploy/internal/sudo"
)

// Conn is the SSH connection used to inspect sudo on the remote host
type Conn interface {
	sudo.CommandExecutor
	sudo.OptionsExecutor
	Close() error
}

// connect opens the SSH connection; tests replace it
var connect = func(target, identity string) (Conn, error) {
	return env.Connect(target, identity)
}

// Command is the top-level sudo command
var Command = &cli.Command{
	Name:  "sudo",
	Usage: "Manage the sudo credential used on the remote host",
	Commands: []*cli.Command{
		PasswordCommand,
		CheckCommand,
	},
}

// PasswordCommand stores or removes the sudo password of a host
var PasswordCommand = &cli.Command{
	Name:  "password",
	Usage: "Store or remove the sudo password for --host",
	Commands: []*cli.Command{
		{
			Name:  "set",
			Usage: "Store the sudo password in the OS keyring",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verify",
					Usage: "check the password against the remote host before storing it",
				},
			},
			Action: env.Action(runPasswordSet),
		},
		{
			Name:   "clear",
			Usage:  "Remove the stored sudo password",
			Action: env.Action(runPasswordClear),
		},
	},
}

// CheckCommand reports the sudo setup of the login user on the remote host
var CheckCommand = &cli.Command{
	Name:   "check",
	Usage:  "Show whether sudo is available on --host and test the sudo credential",
	Action: env.Action(runCheck),
}

func requireHost(cmd *cli.Command) (string, string, error) {
	target := cmd.String("host")
	if target == "" {
		return "", "", fmt.Errorf("--host is required")
	}
	host, err := env.TargetHost(target)
	if err != nil {
		return "", "", err
	}
	return target, host, nil
}

func runPasswordSet(ctx context.Context, cmd *cli.Command, e *env.Env) error {
	target, host, err := requireHost(cmd)
	if err != nil {
		return err
	}

	var resolver secrets.Resolver
	if cmd.Bool("sudo-password-stdin") {
		resolver = &secrets.ReaderResolver{Reader: os.Stdin}
	} else {
		resolver = secrets.NewChainResolver(
			secrets.NewEnvResolver(),
			&secrets.PromptResolver{In: os.Stdin, Out: cmd.Root().ErrWriter},
		)
	}
	password, err := resolver.Resolve(host)
	if err != nil {
		return err
	}

	if cmd.Bool("verify") {
		conn, err := connect(target, cmd.String("identity"))
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := sudo.Verify(ctx, conn, password); err != nil {
			return err
		}
		e.Log.Infof("sudo password accepted by %s", host)
	}

	if err := secrets.StoreSudoPassword(host, password); err != nil {
		return fmt.Errorf("failed to store sudo password: %w", err)
	}

	e.Log.Infof("sudo password stored for %s", host)
	return nil
}

func runPasswordClear(ctx context.Context, cmd *cli.Command, e *env.Env) error {
	_, host, err := requireHost(cmd)
	if err != nil {
		return err
	}

	if err := secrets.ClearSudoPassword(host); err != nil {
		return err
	}

	e.Log.Infof("sudo password removed for %s", host)
	return nil
}

func runCheck(ctx context.Context, cmd *cli.Command, e *env.Env) error {
	target, host, err := requireHost(cmd)
	if err != nil {
		return err
	}

	conn, err := connect(target, cmd.String("identity"))
	if err != nil {
		return err
	}
	defer conn.Close()

	status, err := sudo.GetSudoStatus(conn)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "%s: %s\n", host, status)

	if status != sudo.SudoRequiresPassword {
		return nil
	}

	password, err := e.SudoPassword(host)
	if err != nil {
		return err
	}
	if password == "" {
		fmt.Fprintf(cmd.Root().Writer, "%s: no sudo password available, tasks that need sudo will fail\n", host)
		return nil
	}

	if err := sudo.Verify(ctx, conn, password); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "%s: sudo password accepted\n", host)
	return nil
}
