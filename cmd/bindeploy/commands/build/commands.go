package build

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env"
	"github.com/catalystcommunity/bindeploy/internal/build"
)

// CleanCommand removes and recreates the build output directory
var CleanCommand = &cli.Command{
	Name:   "clean",
	Usage:  "Remove and recreate the build output directory",
	Action: env.Action(runClean),
}

// BuildCommand produces the deployable configuration archive
var BuildCommand = &cli.Command{
	Name:   "build",
	Usage:  "Build the BIND configuration archive (runs clean first)",
	Action: env.Action(runBuild),
}

func runClean(ctx context.Context, cmd *cli.Command, e *env.Env) error {
	return build.New(e.Config, e.Local(), e.Log).Clean()
}

func runBuild(ctx context.Context, cmd *cli.Command, e *env.Env) error {
	archivePath, err := build.New(e.Config, e.Local(), e.Log).Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	e.Log.Infof("build complete: %s", archivePath)
	return nil
}
