package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/mito-cohort-pipeline/internal/database"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Cohort warehouse migration commands",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Run all pending migrations",
				Action: withMigrationRunner(func(ctx context.Context, cmd *cli.Command, mr *database.MigrationRunner) error {
					return mr.Up(ctx)
				}),
			},
			{
				Name:   "down",
				Usage:  "Roll back every migration",
				Action: withMigrationRunner(func(ctx context.Context, cmd *cli.Command, mr *database.MigrationRunner) error {
					return mr.Down(ctx)
				}),
			},
			{
				Name:   "version",
				Usage:  "Print the current schema version",
				Action: withMigrationRunner(printVersion),
			},
		},
	}
}

func withMigrationRunner(action func(ctx context.Context, cmd *cli.Command, mr *database.MigrationRunner) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		env, err := loadEnvironment(cmd)
		if err != nil {
			return err
		}
		cfg := env.config.GetConfig().Database

		mr, err := database.NewMigrationRunner(database.ConnectionURL(cfg), cfg.MigrationsPath, env.logger)
		if err != nil {
			return err
		}
		defer mr.Close()

		return action(ctx, cmd, mr)
	}
}

func printVersion(ctx context.Context, cmd *cli.Command, mr *database.MigrationRunner) error {
	schemaVersion, dirty, err := mr.Version()
	if err != nil {
		return err
	}
	status := "clean"
	if dirty {
		status = "dirty"
	}
	fmt.Fprintf(cmd.Root().Writer, "version %d (%s)\n", schemaVersion, status)
	return nil
}
