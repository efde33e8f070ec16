package database

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/manorfm/recoveryM/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewMigrate creates a migrate instance reading migrations from dir
func NewMigrate(cfg *config.Config, dir string) (*migrate.Migrate, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("error resolving migrations directory: %w", err)
	}

	m, err := migrate.New("file://"+absDir, migrationURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("error creating migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies every pending migration found in dir
func RunMigrations(cfg *config.Config, dir string, log *zap.Logger) error {
	m, err := NewMigrate(cfg, dir)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error running migrations: %w", err)
	}

	log.Info("Migrations completed successfully", zap.String("dir", dir))
	return nil
}
