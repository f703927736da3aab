package autoupdate

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env"
	"github.com/catalystcommunity/bindeploy/internal/autoupdate"
	"github.com/catalystcommunity/bindeploy/internal/build"
)

// Command is the top-level autoupdate command
var Command = &cli.Command{
	Name:  "autoupdate",
	Usage: "Manage the daily update job of a zone on the remote host",
	Commands: []*cli.Command{
		OnCommand,
		OffCommand,
	},
}

// OnCommand installs the update job for a zone
var OnCommand = &cli.Command{
	Name:      "on",
	Usage:     "Install the daily update job for a zone (runs clean first)",
	ArgsUsage: "<zone>",
	Action:    env.Action(runOn),
}

// OffCommand removes the update job for a zone
var OffCommand = &cli.Command{
	Name:      "off",
	Usage:     "Remove the daily update job for a zone (runs clean first)",
	ArgsUsage: "<zone>",
	Action:    env.Action(runOff),
}

// Commands returns the autoupdate command tree and the autoupdate_on and
// autoupdate_off shorthands
func Commands() []*cli.Command {
	return []*cli.Command{
		Command,
		{
			Name:      "autoupdate_on",
			Usage:     "Same as autoupdate on",
			ArgsUsage: "<zone>",
			Action:    env.Action(runOn),
		},
		{
			Name:      "autoupdate_off",
			Usage:     "Same as autoupdate off",
			ArgsUsage: "<zone>",
			Action:    env.Action(runOff),
		},
	}
}

func runOn(ctx context.Context, cmd *cli.Command, e *env.Env) error {
	zoneName, toggle, err := prepare(ctx, cmd, e)
	if err != nil {
		return err
	}
	return toggle.Enable(ctx, zoneName)
}

func runOff(ctx context.Context, cmd *cli.Command, e *env.Env) error {
	zoneName, toggle, err := prepare(ctx, cmd, e)
	if err != nil {
		return err
	}
	return toggle.Disable(ctx, zoneName)
}

// prepare validates the zone argument, cleans the build directory and
// connects to the remote host
func prepare(ctx context.Context, cmd *cli.Command, e *env.Env) (string, *autoupdate.Toggle, error) {
	if cmd.Args().Len() != 1 {
		return "", nil, fmt.Errorf("expected exactly one zone name, got %d", cmd.Args().Len())
	}
	zoneName := cmd.Args().First()

	if err := build.New(e.Config, e.Local(), e.Log).Clean(); err != nil {
		return "", nil, err
	}

	exec, err := e.Remote(ctx)
	if err != nil {
		return "", nil, err
	}

	return zoneName, autoupdate.New(e.Config, exec, e.Log), nil
}
