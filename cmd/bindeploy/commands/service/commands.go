package service

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env"
	"github.com/catalystcommunity/bindeploy/internal/systemd"
)

// Command runs a systemctl command against the configured service
var Command = &cli.Command{
	Name:      "cmd",
	Usage:     "Run a service manager command (start, stop, restart, status, ...) for the BIND service",
	UsageText: "bindeploy cmd <command>\n\n<command> is passed to systemctl and may contain only lowercase letters and dashes",
	ArgsUsage: "<command>",
	Action:    env.Action(runCmd),
}

func runCmd(ctx context.Context, cmd *cli.Command, e *env.Env) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one service command, got %d", cmd.Args().Len())
	}
	command := cmd.Args().First()

	service := e.Config.Deploy.ServiceName
	exec, err := e.Remote(ctx)
	if err != nil {
		return err
	}

	if _, err := systemd.Run(ctx, exec, service, command); err != nil {
		return err
	}

	e.Log.Debugf("%s %s done", command, service)
	return nil
}
