package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/voxsync/internal"
	pkgconfig "github.com/starford/voxsync/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err == nil {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default config: %w", err)
	}
	if tok := os.Getenv("VOICENOTES_TOKEN"); tok != "" && cfg.Voicenotes.Token == "" {
		cfg.Voicenotes.Token = tok
	}
	return cfg, nil
}

func withConfig(run func(ctx context.Context, cfg *internal.Config, cmd *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return run(ctx, cfg, cmd)
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "voxsync",
		Usage: "Sync Voicenotes voice recordings into a local Markdown vault",
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
				Name:  "sync",
				Usage: "Run a single sync pass and exit",
				Action: withConfig(func(ctx context.Context, cfg *internal.Config, _ *cli.Command) error {
					return internal.RunSync(ctx, internal.WithConfig(cfg))
				}),
			},
			{
				Name:  "daemon",
				Usage: "Run the HTTP API, file watcher, and periodic sync",
				Action: withConfig(func(ctx context.Context, cfg *internal.Config, _ *cli.Command) error {
					return internal.Run(ctx, internal.WithConfig(cfg))
				}),
			},
			{
				Name:  "today",
				Usage: "List recordings synced for a given day",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "day",
						Usage: "Day in YYYY-MM-DD form (default: today)",
					},
				},
				Action: withConfig(func(ctx context.Context, cfg *internal.Config, cmd *cli.Command) error {
					return internal.RunToday(ctx, cmd.String("day"), internal.WithConfig(cfg))
				}),
			},
			{
				Name:      "delete-remote",
				Usage:     "Delete a synced document's recording on the server and detach the document",
				ArgsUsage: "<path>",
				Action: withConfig(func(ctx context.Context, cfg *internal.Config, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return fmt.Errorf("document path is required")
					}
					return internal.RunDeleteRemote(ctx, path, internal.WithConfig(cfg))
				}),
			},
			{
				Name:  "whoami",
				Usage: "Verify credentials and print the remote account",
				Action: withConfig(func(ctx context.Context, cfg *internal.Config, _ *cli.Command) error {
					return internal.RunWhoami(ctx, internal.WithConfig(cfg))
				}),
			},
			{
				Name:  "mcp",
				Usage: "Serve MCP tools over stdio",
				Action: withConfig(func(ctx context.Context, cfg *internal.Config, _ *cli.Command) error {
					return internal.RunMCP(ctx, internal.WithConfig(cfg))
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
