package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	autoupdatecmd "github.com/catalystcommunity/bindeploy/cmd/bindeploy/commands/autoupdate"
	buildcmd "github.com/catalystcommunity/bindeploy/cmd/bindeploy/commands/build"
	deploycmd "github.com/catalystcommunity/bindeploy/cmd/bindeploy/commands/deploy"
	servicecmd "github.com/catalystcommunity/bindeploy/cmd/bindeploy/commands/service"
	sudocmd "github.com/catalystcommunity/bindeploy/cmd/bindeploy/commands/sudo"
	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env"
)

var (
	// Version information (will be set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		// Failures inside commands have already been logged
		var reported *env.ReportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	// -v selects verbose logging
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version",
		Usage: "print the version",
	}

	commands := []*cli.Command{
		servicecmd.Command,
		buildcmd.CleanCommand,
		buildcmd.BuildCommand,
		deploycmd.Command,
	}
	commands = append(commands, autoupdatecmd.Commands()...)
	commands = append(commands, sudocmd.Command)

	return &cli.Command{
		Name:     "bindeploy",
		Usage:    "Build and deploy BIND9 configuration to a remote host",
		Version:  fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		Flags:    env.GlobalFlags(),
		Commands: commands,
	}
}
