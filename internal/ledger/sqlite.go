package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sqlcsqlite "github.com/btcsuite/btcmix/internal/ledger/sqlc/sqlite"

	// Register the pure Go SQLite driver.
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite implementation of the Store interface.
type SQLiteStore struct {
	db      *sql.DB
	queries *sqlcsqlite.Queries
}

// A compile-time check to ensure that SQLiteStore implements the Store
// interface.
var _ Store = (*SQLiteStore)(nil)

// sqliteDSN returns the data source name for the database file at path.
func sqliteDSN(path string) string {
	// Enable foreign keys (required for proper constraint enforcement).
	dsn := path + "?_pragma=foreign_keys=on"

	// Enable WAL mode so readers do not block the writer.
	dsn += "&_pragma=journal_mode=WAL"

	// Take the write lock when a transaction begins.
	dsn += "&_txlock=immediate"

	// Retry acquiring locks for up to 5 seconds instead of failing with
	// SQLITE_BUSY.
	dsn += "&_pragma=busy_timeout=5000"

	return dsn
}

// OpenSQLite opens the SQLite database at path, creating it and its
// directory if needed, and brings its schema up to date.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	err := os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite ledger: %w", err)
	}

	if err := ApplySQLiteMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite based Store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	return &SQLiteStore{
		db:      db,
		queries: sqlcsqlite.New(db),
	}, nil
}

// ExecuteTx runs fn with queries bound to a new transaction. The
// transaction is committed if fn succeeds and rolled back otherwise.
func (s *SQLiteStore) ExecuteTx(ctx context.Context,
	fn func(*sqlcsqlite.Queries) error) error {

	return execInTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(s.queries.WithTx(tx))
	})
}
