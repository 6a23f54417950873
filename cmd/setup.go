package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jamworks/jambot/internal/models"
	"github.com/jamworks/jambot/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return r.writePlainln("Database ready at %s.", config.Database.Path)
}

// SetupTenant creates or updates a tenant configuration. Flags that are
// not given leave the stored values untouched.
func (r *Runner) SetupTenant(ctx context.Context, cmd *cli.Command) error {
	tenantID := cmd.String("tenant")

	r.loadConfig(cmd)
	if err := r.bootstrap(ctx); err != nil {
		return err
	}

	config, err := r.configs.Get(tenantID)
	if err != nil {
		return err
	}
	if config == nil {
		config = &models.TenantConfig{TenantID: tenantID}
	}

	if leaders := cmd.StringSlice("leader"); len(leaders) > 0 {
		config.LeaderIDs = leaders
	}
	if approvers := cmd.StringSlice("approver"); len(approvers) > 0 {
		config.ApproverIDs = approvers
	}
	if admins := cmd.StringSlice("admin"); len(admins) > 0 {
		config.AdminIDs = admins
	}
	if channel := cmd.String("channel"); channel != "" {
		config.ChannelID = channel
	}
	if template := cmd.String("playlist-template"); template != "" {
		config.PlaylistNameTemplate = template
	}
	config.UpdatedBy = cmd.String("updated-by")

	if len(config.ApproverIDs) == 0 {
		return fmt.Errorf("%w: at least one approver is required", shared.ErrNoApprovers)
	}

	if err := r.configs.Upsert(config); err != nil {
		return err
	}
	r.patterns.Invalidate(tenantID)

	return r.writePlainln("Tenant %s configured: %d leaders, %d approvers, %d admins.",
		tenantID, len(config.LeaderIDs), len(config.ApproverIDs), len(config.AdminIDs))
}
