package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/mito-cohort-pipeline/internal/config"
	"github.com/mito-cohort-pipeline/internal/domain"
	"github.com/mito-cohort-pipeline/internal/logging"
	"github.com/mito-cohort-pipeline/internal/runstore"
	"github.com/mito-cohort-pipeline/internal/service"
)

// environment is the configuration and logger shared by every command
type environment struct {
	config *config.Manager
	logger *logrus.Logger
}

func loadEnvironment(cmd *cli.Command) (*environment, error) {
	var (
		manager *config.Manager
		err     error
	)
	if path := cmd.String("config"); path != "" {
		manager, err = config.NewManagerFromFile(path)
	} else {
		manager, err = config.NewManager()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Logs go to stderr; stdout carries command output and the MCP stream.
	logger := logging.New(manager.GetConfig().Logging, nil)
	if used := manager.ConfigFileUsed(); used != "" {
		logger.WithField("config_file", used).Debug("Loaded configuration")
	}

	return &environment{config: manager, logger: logger}, nil
}

// openRunStore opens the configured run store; nil when the driver is "none"
func (e *environment) openRunStore() (domain.RunStore, error) {
	store, err := runstore.Open(e.config.GetConfig().Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return store, nil
}

// optionalServices opens the run store and ontology resolver for the
// long-running surfaces. Failures are logged and the dependency left nil.
func (e *environment) optionalServices() (domain.RunStore, *service.ResolverBundle, func()) {
	cfg := e.config.GetConfig()

	store, err := e.openRunStore()
	if err != nil {
		e.logger.WithError(err).Warn("Run history is unavailable")
		store = nil
	}

	var bundle *service.ResolverBundle
	if cfg.Ontology.Source != "" {
		bundle, err = service.NewOntologyResolver(cfg.Ontology, cfg.Cache, e.logger)
		if err != nil {
			e.logger.WithError(err).Warn("HPO lookup is unavailable")
			bundle = nil
		}
	}

	cleanup := func() {
		if store != nil {
			if err := store.Close(); err != nil {
				e.logger.WithError(err).Error("Failed to close run store")
			}
		}
		if bundle != nil {
			if err := bundle.Close(); err != nil {
				e.logger.WithError(err).Error("Failed to close ontology cache")
			}
		}
	}
	return store, bundle, cleanup
}

func resolverOf(bundle *service.ResolverBundle) domain.OntologyResolver {
	if bundle == nil {
		return nil
	}
	return bundle.Resolver
}

func requireArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() != n {
		return fmt.Errorf("%s expects %d argument(s): %s", cmd.Name, n, cmd.ArgsUsage)
	}
	return nil
}
