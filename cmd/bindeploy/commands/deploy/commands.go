package deploy

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env"
	"github.com/catalystcommunity/bindeploy/internal/build"
	"github.com/catalystcommunity/bindeploy/internal/deploy"
	"github.com/catalystcommunity/bindeploy/internal/remote"
)

// Command builds the configuration and installs it on the remote host
var Command = &cli.Command{
	Name:   "deploy",
	Usage:  "Build the configuration, install it on the remote host and restart the service",
	Action: env.Action(runDeploy),
}

func runDeploy(ctx context.Context, cmd *cli.Command, e *env.Env) error {
	exec, err := e.Remote(ctx)
	if err != nil {
		return err
	}

	// Fail before building when the host cannot be deployed to at all
	if err := remote.Check(remote.OpDeploy, exec); err != nil {
		return err
	}
	if err := e.Config.Deploy.Validate(); err != nil {
		return err
	}

	archivePath, err := build.New(e.Config, e.Local(), e.Log).Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if err := deploy.New(e.Config, exec, e.Log).Deploy(ctx, archivePath); err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}

	e.Log.Infof("deployed %s to %s", e.Config.Build.OutputFile, cmd.String("host"))
	return nil
}
