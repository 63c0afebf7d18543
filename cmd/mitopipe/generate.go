package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/mito-cohort-pipeline/internal/domain"
	"github.com/mito-cohort-pipeline/internal/logging"
	"github.com/mito-cohort-pipeline/internal/service"
)

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Synthesize a random control cohort",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "patients", Value: 100, Usage: "number of patients"},
			&cli.IntFlag{Name: "min-variants", Value: 30, Usage: "minimum variants per patient"},
			&cli.IntFlag{Name: "max-variants", Value: 50, Usage: "maximum variants per patient"},
			&cli.BoolFlag{Name: "hallmark", Usage: "give every patient an m.3243A>G call"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed (default: current time)"},
			&cli.StringFlag{Name: "csv", Usage: "write the variant table to this file, \"-\" for stdout"},
			&cli.StringFlag{Name: "records", Usage: "write one JSON record per patient into this folder"},
		},
		Action: generateCohort,
	}
}

func generateCohort(ctx context.Context, cmd *cli.Command) error {
	logger := logging.New(domain.LoggingConfig{Level: "info", Format: "text"}, nil)

	opts := service.GeneratorOptions{
		Patients:        cmd.Int("patients"),
		MinVariants:     cmd.Int("min-variants"),
		MaxVariants:     cmd.Int("max-variants"),
		IncludeHallmark: cmd.Bool("hallmark"),
	}

	seed := cmd.Uint64("seed")
	if !cmd.IsSet("seed") {
		seed = uint64(time.Now().UnixNano())
	}

	records, err := service.NewCohortGenerator(seed, logger).Generate(opts)
	if err != nil {
		return err
	}

	csvPath, folder := cmd.String("csv"), cmd.String("records")
	if csvPath == "" && folder == "" {
		csvPath = "-"
	}

	if folder != "" {
		if err := service.WriteRecords(folder, records); err != nil {
			return err
		}
		logger.WithField("folder", folder).Info("Wrote patient records")
	}

	switch csvPath {
	case "":
	case "-":
		return service.WriteCSV(cmd.Root().Writer, records)
	default:
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", csvPath, err)
		}
		if err := service.WriteCSV(f, records); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.WithField("file", csvPath).Info("Wrote variant table")
	}
	return nil
}
