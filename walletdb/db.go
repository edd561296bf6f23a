// Package walletdb is the Wallet DB (§4.D): the transactional relational
// store of accounts, subaddresses, txos, transaction logs, and gift codes.
// It is backed by database/sql over mattn/go-sqlite3, the concrete
// grounding for a schema spec.md describes with explicit foreign keys and
// joins rather than a key-value layout.
package walletdb

import (
	"context"
	"database/sql"

	"github.com/decred/slog"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger used by the Wallet DB.
func UseLogger(logger slog.Logger) { log = logger }

// ChangeSubaddressIndex is the reserved index for an account's change
// subaddress. spec.md describes the sentinel conceptually as u64::MAX-1;
// SQLite's INTEGER columns are signed 64-bit, so the largest value
// representable without reinterpretation is used instead, which still
// sits far outside any index a real account will ever assign explicitly.
const ChangeSubaddressIndex = uint64(1<<63 - 2)

// DB is the Wallet DB handle. Every multi-statement update runs inside one
// transaction (§5 "Every multi-statement DB update ... runs inside one
// transaction and is all-or-nothing").
type DB struct {
	sql *sql.DB
}

// Open opens (creating and migrating if necessary) the Wallet DB at path.
func Open(path string) (*DB, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, err)
	}
	// The Wallet DB serializes writers (§5); a single open connection
	// avoids SQLITE_BUSY from concurrent writer connections racing each
	// other, leaving readers to use the driver's own snapshotting.
	sqlDB.SetMaxOpenConns(1)

	if err := applyMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, errs.Wrap(errs.KindDatabase, err)
	}

	return &DB{sql: sqlDB}, nil
}

// Close releases the underlying database handle.
func (d *DB) Close() error { return d.sql.Close() }

// WithTx runs fn inside a single transaction, committing on success and
// rolling back on any error fn returns (§5 "all-or-nothing"). Exported so
// callers composing several Wallet DB operations into one atomic unit
// (the Account Scanner advancing a block; Submission Manager writing a
// log) can do so without the store exposing its underlying *sql.DB.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return d.withTx(ctx, fn)
}

// withTx runs fn inside a single transaction, committing on success and
// rolling back on any error fn returns (§5 "all-or-nothing").
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindDatabase, err)
	}
	return nil
}
