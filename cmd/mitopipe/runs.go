package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/mito-cohort-pipeline/internal/domain"
)

// runExporter and runDeleter are implemented by both run store drivers
type runExporter interface {
	ExportJSON(ctx context.Context, writer io.Writer) error
}

type runDeleter interface {
	DeleteRun(ctx context.Context, runID string) error
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect the run history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum runs to show"},
					&cli.IntFlag{Name: "offset", Usage: "runs to skip"},
				},
				Action: withRunStore(listRuns),
			},
			{
				Name:      "show",
				Usage:     "Show one run with its rejections",
				ArgsUsage: "<run_id>",
				Action:    withRunStore(showRun),
			},
			{
				Name:  "export",
				Usage: "Export every run as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file (default: stdout)"},
				},
				Action: withRunStore(exportRuns),
			},
			{
				Name:      "delete",
				Usage:     "Delete one run",
				ArgsUsage: "<run_id>",
				Action:    withRunStore(deleteRun),
			},
		},
	}
}

type runStoreAction func(ctx context.Context, cmd *cli.Command, store domain.RunStore) error

func withRunStore(action runStoreAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		env, err := loadEnvironment(cmd)
		if err != nil {
			return err
		}
		store, err := env.openRunStore()
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("run store is disabled (store.driver is none)")
		}
		defer store.Close()

		return action(ctx, cmd, store)
	}
}

func listRuns(ctx context.Context, cmd *cli.Command, store domain.RunStore) error {
	runs, err := store.ListRuns(ctx, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return err
	}
	return printRuns(cmd.Root().Writer, runs)
}

func printRuns(out io.Writer, runs []*domain.RunReport) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tVALID/TOTAL\tPATIENTS\tTARGETS\tMODE")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			run.RunID,
			run.StartedAt.Local().Format(time.DateTime),
			run.ValidFiles, run.TotalFiles,
			run.Patients,
			strings.Join(run.Targets, ","),
			run.NormalizationMode)
	}
	return tw.Flush()
}

func showRun(ctx context.Context, cmd *cli.Command, store domain.RunStore) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	run, err := store.GetRun(ctx, cmd.Args().First())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func exportRuns(ctx context.Context, cmd *cli.Command, store domain.RunStore) error {
	exporter, ok := store.(runExporter)
	if !ok {
		return fmt.Errorf("run store does not support export")
	}

	out := cmd.Root().Writer
	if path := cmd.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	return exporter.ExportJSON(ctx, out)
}

func deleteRun(ctx context.Context, cmd *cli.Command, store domain.RunStore) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	deleter, ok := store.(runDeleter)
	if !ok {
		return fmt.Errorf("run store does not support deletion")
	}
	if err := deleter.DeleteRun(ctx, cmd.Args().First()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "deleted run %s\n", cmd.Args().First())
	return nil
}
