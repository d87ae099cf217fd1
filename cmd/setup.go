package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/moodbeats/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the local store and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.writePlain("✓ Setup complete for database: %v\n", r.config.Database.Path)
	return nil
}

// SetupMigrations prints which migrations have been applied.
func (r *Runner) SetupMigrations(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	states, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	r.writePlainHeader("Migrations")
	for _, s := range states {
		mark := "pending"
		if s.Applied {
			mark = "applied"
		}
		r.writePlain("%03d %-24s %s\n", s.Version, s.Name, mark)
	}
	return nil
}

// SetupConfig writes config.toml to the configured path.
//
// Without --api-url the commented template is written as is.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if exists && !cmd.Bool("force") {
		return fmt.Errorf("%w: %s already exists, pass --force to overwrite", shared.ErrInvalidArgument, path)
	}

	if apiURL := cmd.String("api-url"); apiURL != "" {
		config := shared.DefaultConfig()
		config.API.BaseURL = apiURL
		if err := config.Validate(); err != nil {
			return err
		}
		if err := shared.SaveConfig(path, config); err != nil {
			return err
		}
		r.writePlain("✓ Config written to %s\n", path)
		return nil
	}

	if exists {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to replace config file: %w", err)
		}
	}
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set api.base_url to your MoodBeats backend\n")
	r.writePlain("2. Run 'moodbeats setup database'\n")
	r.writePlain("3. Run 'moodbeats session login'\n")
	return nil
}
