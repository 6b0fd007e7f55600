package ledger

import (
	"context"
	"database/sql"
	"fmt"

	sqlcpg "github.com/btcsuite/btcmix/internal/ledger/sqlc/postgres"

	// Register the pgx database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore is the PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	db      *sql.DB
	queries *sqlcpg.Queries
}

// A compile-time check to ensure that PostgresStore implements the Store
// interface.
var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to the PostgreSQL database at dsn and brings its
// schema up to date.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres ledger: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres ledger: %w", err)
	}

	if err := ApplyPostgresMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewPostgresStore creates a new PostgreSQL based Store.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	return &PostgresStore{
		db:      db,
		queries: sqlcpg.New(db),
	}, nil
}

// ExecuteTx runs fn with queries bound to a new transaction. The
// transaction is committed if fn succeeds and rolled back otherwise.
func (s *PostgresStore) ExecuteTx(ctx context.Context,
	fn func(*sqlcpg.Queries) error) error {

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(s.queries.WithTx(tx))
	})
}
