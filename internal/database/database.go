// Package database persists resolved metadata records and the barcode cache
// in SQLite.
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

// Store implements the catalog and barcode storage contracts. Writes go
// through db, whose transactions take the write lock up front so concurrent
// refreshes queue instead of failing on upgrade. Reads use their own pool of
// deferred transactions, which under WAL never wait on a writer.
type Store struct {
	db     *sqlx.DB
	reader *sqlx.DB
	logger *zap.Logger
}

// Open connects to the SQLite file at path and applies the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_txlock=immediate&_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := InitDatabase(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	reader, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?_txlock=deferred&_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open database reader: %w", err)
	}
	return New(db, reader, logger), nil
}

// New wraps a writer and a reader pool; reader may be the writer itself.
func New(db, reader *sqlx.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reader == nil {
		reader = db
	}
	return &Store{db: db, reader: reader, logger: logger.Named("store")}
}

// InitDatabase runs the embedded schema and sets performance PRAGMAs
func InitDatabase(db *sql.DB) error {
	// WAL so refresh writes don't block concurrent reads of other items
	_, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA cache_size=-2000;")
	if err != nil {
		return err
	}
	_, err = db.Exec(schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	var err error
	if s.reader != s.db {
		err = s.reader.Close()
	}
	return errors.Join(err, s.db.Close())
}

// withTx runs fn in one write transaction, rolled back on any error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return runTx(ctx, s.db, fn)
}

// withReadTx runs fn on one consistent snapshot without taking the write lock.
func (s *Store) withReadTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return runTx(ctx, s.reader, fn)
}

func runTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
