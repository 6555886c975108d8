// Package main is the entry point for the content-hub server.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration (defaults, YAML file, environment, .env)
//  2. Create the logger
//  3. Hand over to internal/server
//
// Commands:
//
//	content-hub [serve] [--config path]   run the HTTP server (default)
//	content-hub migrate [--config path]   apply the database schema and exit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/content-hub/internal/config"
	sqliteRepo "github.com/sakif/content-hub/internal/repository/sqlite"
	"github.com/sakif/content-hub/internal/server"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "content-hub",
	Short: "Content management API with categories, files, targets and ML inference",
	Long: `content-hub serves a JSON API for user accounts, a category tree, tagged
content items, file uploads, per-user targets with progress logs, and a
single-model prediction endpoint.

Configuration is read from built-in defaults, then an optional YAML file
(--config, CONFIG_PATH, or ./config.yaml), then environment variables.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	Long: `Apply the embedded schema to the configured SQLite database.

Every statement is CREATE ... IF NOT EXISTS, so running it against an
existing database is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger it describes.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if strings.EqualFold(cfg.Logging.Format, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)

	return cfg, logger, nil
}

func runServe(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until the server is shut down (via Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func runMigrate(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	// New applies the schema on open; Migrate is repeated so the command
	// reports its own result.
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("schema applied", slog.String("database", cfg.Database.Path))
	return nil
}
