package cmd

import (
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "odmboard",
		Version: version,
		Usage:   "Dashboard backend for a NodeODM photogrammetry server: job control plus browser-ready conversion of orthomosaics, point clouds, and meshes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("ODMBOARD_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("ODM_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
		},
	}
}
