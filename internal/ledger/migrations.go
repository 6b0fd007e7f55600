package ledger

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsTable is the table tracking the ledger schema version. It is
// prefixed so the ledger can live in a database shared with other schemas.
const migrationsTable = "ledger_schema_migrations"

//go:embed migrations
var migrationFS embed.FS

// schema describes where the migrations of a backend live and how to wrap a
// database handle into a migrate driver.
type schema struct {
	name      string
	dir       string
	newDriver func(*sql.DB) (database.Driver, error)
}

var (
	sqliteSchema = schema{
		name: "sqlite",
		dir:  "migrations/sqlite",
		newDriver: func(db *sql.DB) (database.Driver, error) {
			return sqlite.WithInstance(db, &sqlite.Config{
				MigrationsTable: migrationsTable,
			})
		},
	}

	postgresSchema = schema{
		name: "postgres",
		dir:  "migrations/postgres",
		newDriver: func(db *sql.DB) (database.Driver, error) {
			return postgres.WithInstance(db, &postgres.Config{
				MigrationsTable: migrationsTable,
			})
		},
	}
)

// migrate brings the ledger tables of db up to the latest version. A
// database that is already current is left untouched.
func (s schema) migrate(db *sql.DB) error {
	source, err := iofs.New(migrationFS, s.dir)
	if err != nil {
		return fmt.Errorf("open %s migrations: %w", s.name, err)
	}

	driver, err := s.newDriver(db)
	if err != nil {
		return fmt.Errorf("create %s migration driver: %w", s.name, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, s.name, driver)
	if err != nil {
		return fmt.Errorf("create %s migrator: %w", s.name, err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debugf("Ledger %s schema is up to date", s.name)

	case err != nil:
		return fmt.Errorf("migrate %s ledger: %w", s.name, err)

	default:
		version, _, _ := m.Version()
		log.Infof("Migrated ledger %s schema to version %d", s.name,
			version)
	}

	return nil
}

// ApplySQLiteMigrations brings the ledger tables of a SQLite database up to
// date.
func ApplySQLiteMigrations(db *sql.DB) error {
	return sqliteSchema.migrate(db)
}

// ApplyPostgresMigrations brings the ledger tables of a PostgreSQL database
// up to date.
func ApplyPostgresMigrations(db *sql.DB) error {
	return postgresSchema.migrate(db)
}
