package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yukikurage/rollout-ready-api/internal/config"
	"github.com/yukikurage/rollout-ready-api/internal/database"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/seed"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Rollout Ready API server",
	Long: `Rollout Ready turns role checklists into dated project tasks.

Without a subcommand the HTTP server is started. Configuration comes from
.env, the YAML file named by CONFIG_FILE and the environment.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the housekeeping scheduler",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap()
		if err != nil {
			return err
		}
		defer app.close()
		return database.Migrate(app.db, app.logger)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo users, roles and templates",
	Long: `Load the demo accounts (admin, manager, alice, bob, charlie), four roles and
three auto-assigned templates. Existing rows are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap()
		if err != nil {
			return err
		}
		defer app.close()

		if err := database.Migrate(app.db, app.logger); err != nil {
			return err
		}
		result, err := seed.Run(repository.New(app.db), app.logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d users, %d roles, %d templates\n", result.Users, result.Roles, result.Templates)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// app holds what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.DB, cfg.Log.Level, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
