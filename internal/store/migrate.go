package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/hangouts/internal/store/migrations"
)

// ErrDirtySchema is returned when an earlier migration stopped halfway.
// The kv table needs manual repair before the daemon can use it.
var ErrDirtySchema = errors.New("store schema is dirty")

// Schema is the kv schema version before and after Migrate.
type Schema struct {
	From uint
	To   uint
}

// Changed reports whether Migrate applied anything.
func (s Schema) Changed() bool { return s.From != s.To }

// Migrate brings the kv schema up to the embedded version.
func (db *DB) Migrate() (Schema, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return Schema{}, fmt.Errorf("migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return Schema{}, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return Schema{}, fmt.Errorf("migration instance: %w", err)
	}

	from, err := version(m)
	if err != nil {
		return Schema{}, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Schema{From: from}, fmt.Errorf("migration up from %d: %w", from, err)
	}
	to, err := version(m)
	if err != nil {
		return Schema{From: from}, err
	}
	return Schema{From: from, To: to}, nil
}

// version is 0 on an empty database.
func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("migration version: %w", err)
	case dirty:
		return v, fmt.Errorf("%w at version %d", ErrDirtySchema, v)
	}
	return v, nil
}
