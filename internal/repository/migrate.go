package repository

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the embedded schema migrations.
type Migrator struct {
	databaseURL string
	logger      *zap.Logger
}

// NewMigrator constructs a Migrator for the given Postgres URL.
func NewMigrator(databaseURL string, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.L()
	}
	return &Migrator{databaseURL: databaseURL, logger: logger}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	migrator, err := migrate.NewWithSourceInstance("iofs", src, m.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return migrator, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	migrator, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrator(migrator)

	err = migrator.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("no migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	m.logger.Info("migrations applied")
	return nil
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	migrator, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrator(migrator)

	err = migrator.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	m.logger.Info("migrations rolled back")
	return nil
}

func closeMigrator(m *migrate.Migrate) {
	_, _ = m.Close()
}
