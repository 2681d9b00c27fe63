package main

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"focusflow/backend/internal/config"
	"focusflow/backend/internal/db"
	"focusflow/backend/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.OpenSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()

		applied, err := db.RunMigrations(cmd.Context(), database, migrationSource(cfg), logger)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		logger.Info("migrations applied",
			zap.String("db_path", cfg.DBPath),
			zap.Int("count", len(applied)))
		return nil
	},
}

// migrationSource prefers MIGRATIONS_DIR and falls back to the migrations
// compiled into the binary.
func migrationSource(cfg *config.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}
