package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultgraph/internal"
	pkgconfig "github.com/starford/vaultgraph/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	path := cmd.String("config")
	cfg := internal.NewDefaultConfig()
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if _, err := pkgconfig.LoadOptional(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func runIndex(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	stats, err := internal.RunIndex(ctx, opts...)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return output(cmd, stats, renderIndexStats(stats))
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunWatch(ctx, opts...)
}

func runStats(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	stats, err := internal.RunStats(ctx, opts...)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	return output(cmd, stats, renderGraphStats(stats))
}

func runDuplicates(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	groups, err := internal.RunDuplicates(ctx, opts...)
	if err != nil {
		return fmt.Errorf("duplicates: %w", err)
	}
	return output(cmd, groups, renderDuplicates(groups))
}

func runPrune(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	removed, err := internal.RunPrune(ctx, opts...)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	return output(cmd, removed, renderPruned(removed))
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:    "vaultgraph",
		Usage:   "Mirror an Obsidian-style Markdown vault into a property graph and keep it in sync",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory (overrides vault.path)",
				Sources: cli.EnvVars("OBSIDIAN_VAULT_PATH"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Index the whole vault once and print statistics",
				Action: runIndex,
			},
			{
				Name:   "watch",
				Usage:  "Index the vault, then keep the graph in sync with file changes",
				Action: runWatch,
			},
			{
				Name:   "stats",
				Usage:  "Count graph nodes by label and relationships by type",
				Action: runStats,
			},
			{
				Name:   "duplicates",
				Usage:  "List notes with identical content",
				Action: runDuplicates,
			},
			{
				Name:   "prune",
				Usage:  "Delete tags, links, headers and entities no note references",
				Action: runPrune,
			},
			{
				Name:   "mcp",
				Usage:  "Serve graph queries as MCP tools on stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
