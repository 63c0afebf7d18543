package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mito-cohort-pipeline/internal/database"
	"github.com/mito-cohort-pipeline/internal/domain"
	"github.com/mito-cohort-pipeline/internal/repository"
	"github.com/mito-cohort-pipeline/internal/service"
	"github.com/mito-cohort-pipeline/pkg/mito"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Validate, normalize and aggregate a folder of patient records",
		Description: "Positional arguments override the pipeline and ontology settings of the configuration.\n" +
			"Omitted trailing arguments fall back to the configuration.",
		ArgsUsage: "<input_folder> <output_folder> <hpo_path|api> <invariants> <het_threshold> <yes|no|blood|urine>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-store",
				Usage: "do not record the run in the run store",
			},
		},
		Action: runPipeline,
	}
}

// runArgs are the resolved parameters of the run command
type runArgs struct {
	options        service.Options
	ontologySource string
}

// parseRunArgs applies the positional arguments over the configured values
func parseRunArgs(args []string, defaults domain.PipelineConfig, ontologySource string) (runArgs, error) {
	if len(args) > 6 {
		return runArgs{}, fmt.Errorf("run takes at most 6 arguments, got %d", len(args))
	}

	arg := func(i int, fallback string) string {
		if i < len(args) {
			return args[i]
		}
		return fallback
	}

	ra := runArgs{
		options: service.Options{
			InputFolder:  arg(0, defaults.InputFolder),
			OutputFolder: arg(1, defaults.OutputFolder),
		},
		ontologySource: arg(2, ontologySource),
	}

	if ra.options.InputFolder == "" || ra.options.OutputFolder == "" {
		return runArgs{}, fmt.Errorf("input_folder and output_folder are required")
	}
	if ra.ontologySource == "" {
		return runArgs{}, fmt.Errorf("hpo_path is required: a local hp.json or %q", service.OntologySourceAPI)
	}

	targets, err := mito.ParseTargets(arg(3, defaults.TargetVariants))
	if err != nil {
		return runArgs{}, fmt.Errorf("invalid invariants: %w", err)
	}
	ra.options.Targets = targets

	ra.options.HetThreshold = defaults.HetThreshold
	if len(args) > 4 {
		threshold, err := strconv.ParseFloat(args[4], 64)
		if err != nil {
			return runArgs{}, fmt.Errorf("invalid het_threshold %q: %w", args[4], err)
		}
		ra.options.HetThreshold = threshold
	}
	if ra.options.HetThreshold < 0 || ra.options.HetThreshold > 100 {
		return runArgs{}, fmt.Errorf("het_threshold must be within [0, 100], got %v", ra.options.HetThreshold)
	}

	mode := domain.NormalizationMode(strings.ToLower(strings.TrimSpace(arg(5, defaults.NormalizationMode))))
	if !mode.IsValid() {
		return runArgs{}, fmt.Errorf("norm_status must be one of yes, no, blood or urine, got %q", mode)
	}
	ra.options.Mode = mode

	return ra, nil
}

func runPipeline(ctx context.Context, cmd *cli.Command) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	cfg := env.config.GetConfig()

	ra, err := parseRunArgs(cmd.Args().Slice(), cfg.Pipeline, cfg.Ontology.Source)
	if err != nil {
		return err
	}

	ontology := cfg.Ontology
	ontology.Source = ra.ontologySource
	bundle, err := service.NewOntologyResolver(ontology, cfg.Cache, env.logger)
	if err != nil {
		return fmt.Errorf("failed to set up HPO lookup: %w", err)
	}
	defer bundle.Close()

	pipeline := service.NewPipeline(bundle.Resolver, cfg.Pipeline, env.logger)

	if !cmd.Bool("no-store") {
		store, err := env.openRunStore()
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
			pipeline.WithRunStore(store)
		}
	}

	if cfg.Database.Enabled {
		db, err := database.Open(ctx, cfg.Database, env.logger)
		if err != nil {
			return fmt.Errorf("failed to open cohort database: %w", err)
		}
		defer db.Close()
		pipeline.WithCohortRepository(repository.NewCohortRepository(db.Pool, env.logger))
	}

	report, err := pipeline.Run(ctx, ra.options)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "%d/%d files valid, %d variant rows, %d patients, %d rejections (run %s)\n",
		report.ValidFiles, report.TotalFiles, report.VariantRows, report.Patients, len(report.Rejections), report.RunID)
	return nil
}
