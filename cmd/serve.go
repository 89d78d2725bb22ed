package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"github.com/victoryforphil/cursed-next-odm/internal/config"
	"github.com/victoryforphil/cursed-next-odm/internal/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dashboard HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nodeodm-url",
				Usage:   "Base URL of the NodeODM processing server",
				Sources: cli.EnvVars("NODEODM_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if v := cmd.String("nodeodm-url"); v != "" {
				cfg.NodeODM.URL = v
			}
			if cmd.IsSet("log-level") {
				cfg.Logging.Level = cmd.String("log-level")
			}

			return server.Run(ctx, cfg)
		},
	}
}
