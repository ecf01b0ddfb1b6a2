package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func GetDatabase(filename string) (*sql.DB, error) {
	return sql.Open("sqlite", filename)
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("while loading migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("while preparing migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("while preparing migrations: %w", err)
	}
	return m, nil
}

// Migrate brings the schema up to date and returns the resulting version.
func Migrate(db *sql.DB, logger *slog.Logger) (uint, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMigrate(db)
	if err != nil {
		return 0, err
	}
	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("schema already up to date")
	case err != nil:
		return 0, fmt.Errorf("while applying migrations: %w", err)
	default:
		logger.Info("migrations applied")
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("while reading schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// OpenDatabase opens filename and migrates it.
func OpenDatabase(filename string, logger *slog.Logger) (*sql.DB, error) {
	db, err := GetDatabase(filename)
	if err != nil {
		return nil, fmt.Errorf("while opening database '%s': %w", filename, err)
	}
	if _, err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
