// Command mitopipe validates mitochondrial variant records, normalizes the
// m.3243A>G heteroplasmy and aggregates cohorts into flat tables.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

var version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "mitopipe",
		Usage:   "Mitochondrial cohort pipeline",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Sources: cli.EnvVars("MITO_CONFIG"),
				Usage:   "path to a config.yaml (default: ./config.yaml, ./config/, /etc/mitopipe/)",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			generateCommand(),
			serveCommand(),
			mcpCommand(),
			runsCommand(),
			migrateCommand(),
			setupCommand(),
		},
	}
}
