package database

import (
	"context"
	"fmt"
	"log/slog"

	"xplore/internal/config"
	"xplore/internal/middleware"

	"gorm.io/gorm"
)

// ApplySchema brings the tables for PersistentModels up to date.
// AutoMigrate only adds tables, columns and indexes, so repeated runs are safe.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate", slog.String("env", cfg.Env))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
