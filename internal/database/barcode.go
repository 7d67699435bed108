package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"shelf-meta-srv/internal/models"
)

type barcodeRow struct {
	Barcode   string    `db:"barcode"`
	Provider  string    `db:"provider"`
	CreatedAt time.Time `db:"created_at"`
}

// Barcode returns the cached entry for code, or nil on a miss.
func (s *Store) Barcode(ctx context.Context, code string) (*models.BarcodeEntry, error) {
	var entry *models.BarcodeEntry
	err := s.withReadTx(ctx, func(tx *sqlx.Tx) error {
		sb := sqlbuilder.SQLite.NewSelectBuilder()
		sb.Select("barcode", "provider", "created_at")
		sb.From("barcode_cache")
		sb.Where(sb.Equal("barcode", code))
		query, args := sb.Build()

		var row barcodeRow
		if err := tx.GetContext(ctx, &row, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("read barcode: %w", err)
		}

		sb = sqlbuilder.SQLite.NewSelectBuilder()
		sb.Select("name")
		sb.From("barcode_raw_names")
		sb.Where(sb.Equal("barcode", code))
		sb.OrderBy("position")
		query, args = sb.Build()

		var names []string
		if err := tx.SelectContext(ctx, &names, query, args...); err != nil {
			return fmt.Errorf("read barcode names: %w", err)
		}

		entry = &models.BarcodeEntry{
			Barcode:   row.Barcode,
			Provider:  row.Provider,
			RawNames:  names,
			CreatedAt: row.CreatedAt.UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreateBarcode caches entry permanently. The first entry stored for a
// barcode wins; later ones are ignored without error.
func (s *Store) CreateBarcode(ctx context.Context, entry *models.BarcodeEntry) error {
	if entry == nil || entry.Barcode == "" {
		return errors.New("create barcode: empty entry")
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertInto("barcode_cache")
		ib.Cols("barcode", "provider", "created_at")
		ib.Values(entry.Barcode, entry.Provider, created.UTC())
		ib.SQL("ON CONFLICT(barcode) DO NOTHING")
		query, args := ib.Build()

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert barcode: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}

		if len(entry.RawNames) == 0 {
			return nil
		}
		ib = sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertInto("barcode_raw_names")
		ib.Cols("barcode", "position", "name")
		for i, name := range entry.RawNames {
			ib.Values(entry.Barcode, i, name)
		}
		query, args = ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert barcode names: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to cache barcode", zap.String("barcode", entry.Barcode), zap.Error(err))
	}
	return err
}
