package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/mito-cohort-pipeline/internal/api"
	mcpserver "github.com/mito-cohort-pipeline/internal/mcp"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve run history, record validation and normalization over HTTP",
		Action: serveHTTP,
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:   "mcp",
		Usage:  "Serve the pipeline tools over MCP on stdio",
		Action: serveMCP,
	}
}

func serveHTTP(ctx context.Context, cmd *cli.Command) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	store, bundle, cleanup := env.optionalServices()
	defer cleanup()

	server := api.NewServer(env.config, api.Dependencies{
		RunStore: store,
		Resolver: resolverOf(bundle),
	}, env.logger)

	if err := server.Start(ctx); err != nil {
		return err
	}
	env.logger.Info("Server stopped")
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	store, bundle, cleanup := env.optionalServices()
	defer cleanup()

	server := mcpserver.NewServer(mcpserver.Dependencies{
		RunStore: store,
		Resolver: resolverOf(bundle),
	}, env.logger)

	return server.Run(ctx)
}
