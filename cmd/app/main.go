package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/lectern/internal"
	pkgconfig "github.com/starford/lectern/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "lectern",
		Usage:  "EPUB library with highlights, synchronized with a WebDAV replica",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and web event stream",
				Action: serve,
			},
			{
				Name:   "list",
				Usage:  "List the books in the local library",
				Action: listCmd,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "removed", Usage: "include removed books"},
				},
			},
			{
				Name:   "sync",
				Usage:  "Synchronize the library with the remote",
				Action: syncCmd,
			},
			{
				Name:      "add",
				Usage:     "Add an EPUB file to the library",
				ArgsUsage: "<file.epub>",
				Action:    addCmd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a book from the library",
				ArgsUsage: "<hash>",
				Action:    removeCmd,
			},
			{
				Name:      "import",
				Usage:     "Import a Kindle notebook export into a book",
				ArgsUsage: "<hash> <export.html>",
				Action:    importCmd,
			},
			{
				Name:      "migrate",
				Usage:     "Copy the local library into another directory",
				ArgsUsage: "<dir>",
				Action:    migrateCmd,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the library to MCP clients over stdio",
				Action: mcpCmd,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
