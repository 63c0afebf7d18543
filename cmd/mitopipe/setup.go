package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/mito-cohort-pipeline/internal/setup"
)

func desktopConfigFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "desktop-config",
		Usage: "path to claude_desktop_config.json (default: platform location)",
	}
}

func setupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Register the MCP server with Claude Desktop",
		Commands: []*cli.Command{
			{
				Name:  "claude-desktop",
				Usage: "Add or update the mitopipe entry",
				Flags: []cli.Flag{
					desktopConfigFlag(),
					&cli.StringFlag{Name: "binary", Usage: "mitopipe binary (default: this executable)"},
				},
				Action: registerDesktop,
			},
			{
				Name:   "status",
				Usage:  "Show the registration status",
				Flags:  []cli.Flag{desktopConfigFlag()},
				Action: desktopStatus,
			},
			{
				Name:   "remove",
				Usage:  "Remove the mitopipe entry",
				Flags:  []cli.Flag{desktopConfigFlag()},
				Action: unregisterDesktop,
			},
		},
	}
}

func desktopConfigPath(cmd *cli.Command) (string, error) {
	if path := cmd.String("desktop-config"); path != "" {
		return path, nil
	}
	return setup.ClaudeDesktopConfigPath()
}

func registerDesktop(ctx context.Context, cmd *cli.Command) error {
	configPath, err := desktopConfigPath(cmd)
	if err != nil {
		return err
	}

	binary := cmd.String("binary")
	if binary == "" {
		if binary, err = os.Executable(); err != nil {
			return fmt.Errorf("locating mitopipe binary: %w", err)
		}
	}

	opts := setup.Options{BinaryPath: binary}
	if configFile := cmd.String("config"); configFile != "" {
		if opts.ConfigFile, err = filepath.Abs(configFile); err != nil {
			return err
		}
	}

	entry, err := setup.Register(configPath, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "registered %s in %s: %s %v\n", setup.ServerName, configPath, entry.Command, entry.Args)
	return nil
}

func desktopStatus(ctx context.Context, cmd *cli.Command) error {
	configPath, err := desktopConfigPath(cmd)
	if err != nil {
		return err
	}
	status, err := setup.GetStatus(configPath)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	fmt.Fprintf(out, "config:     %s\n", status.ConfigPath)
	fmt.Fprintf(out, "registered: %t\n", status.Registered)
	if status.Registered {
		fmt.Fprintf(out, "command:    %s %v\n", status.Command, status.Args)
	}
	for _, issue := range status.Issues {
		fmt.Fprintf(out, "issue:      %s\n", issue)
	}
	return nil
}

func unregisterDesktop(ctx context.Context, cmd *cli.Command) error {
	configPath, err := desktopConfigPath(cmd)
	if err != nil {
		return err
	}
	removed, err := setup.Unregister(configPath)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(cmd.Root().Writer, "%s was not registered\n", setup.ServerName)
		return nil
	}
	fmt.Fprintf(cmd.Root().Writer, "removed %s from %s\n", setup.ServerName, configPath)
	return nil
}
