package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes the config file when missing, initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			r.config = config
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.OpenConfigured(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("%s database ready at %s\n", ui.OK("✓"), r.config.Database.Path)
}

// SetupMigrations prints each known migration and whether it has been applied.
func (r *Runner) SetupMigrations(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.OpenConfigured(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := shared.Migrations(db)
	if err != nil {
		return err
	}

	r.writePlainHeader("Migrations")
	for _, m := range statuses {
		state := ui.Warn("pending")
		if m.Applied {
			state = ui.OK("applied")
		}
		r.writePlain("%03d  %-32s %s\n", m.Version, m.Name, state)
	}
	return nil
}

// SetupRollback rolls back the latest applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.OpenConfigured(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.logger.Warn("rolled back latest migration", "database", r.config.Database.Path)
	return r.writePlain("%s rolled back latest migration\n", ui.OK("✓"))
}
