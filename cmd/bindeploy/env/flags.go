package env

import (
	"github.com/urfave/cli/v3"

	"github.com/catalystcommunity/bindeploy/internal/logging"
)

// GlobalFlags returns the flags accepted by every command
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to config file",
			Sources: cli.EnvVars("BINDEPLOY_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Aliases: []string{"H"},
			Usage:   "remote host as [user@]host[:port]",
			Sources: cli.EnvVars("BINDEPLOY_HOST"),
		},
		&cli.StringFlag{
			Name:    "identity",
			Aliases: []string{"i"},
			Usage:   "private key file for SSH authentication",
		},
		&cli.BoolFlag{
			Name:  "sudo-password-stdin",
			Usage: "read the sudo password from the first line of stdin",
		},
		&cli.BoolFlag{
			Name:  "prompt-sudo",
			Usage: "prompt for the sudo password on the terminal",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "log file path (empty disables file logging)",
			Value: logging.DefaultFile,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "show debug messages on the console",
		},
	}
}
