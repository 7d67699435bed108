package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"shelf-meta-srv/internal/models"
)

type metadataRow struct {
	ID          string         `db:"id"`
	ItemID      string         `db:"item_id"`
	Title       sql.NullString `db:"title"`
	Duration    sql.NullInt64  `db:"duration"`
	PageCount   sql.NullInt64  `db:"page_count"`
	TrackCount  sql.NullInt64  `db:"tracks_count"`
	Description sql.NullString `db:"description"`
	ReleaseDate sql.NullString `db:"release_date"`
	ImageURL    sql.NullString `db:"image_url"`
	SourceType  string         `db:"source_type"`
	SourceQuery string         `db:"source_query"`
	LastFetched time.Time      `db:"last_fetched"`
}

type attachmentRow struct {
	Kind     string         `db:"type"`
	Title    sql.NullString `db:"title"`
	Duration sql.NullInt64  `db:"duration"`
	URL      string         `db:"url"`
}

type personRow struct {
	Name     string         `db:"name"`
	ImageURL sql.NullString `db:"image_url"`
}

// people tables are fixed names, never user input
type peopleTables struct {
	entity string
	link   string
	fk     string
}

var (
	authorTables    = peopleTables{entity: "authors", link: "metadata_authors", fk: "author_id"}
	publisherTables = peopleTables{entity: "publishers", link: "metadata_publishers", fk: "publisher_id"}
)

const upsertMetadataQuery = `
INSERT INTO metadata (
	id, item_id, title, duration, page_count, tracks_count, description,
	release_date, image_url, source_type, source_query, last_fetched
) VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)
ON CONFLICT(item_id) DO UPDATE SET
	title = excluded.title,
	duration = excluded.duration,
	page_count = excluded.page_count,
	tracks_count = excluded.tracks_count,
	description = excluded.description,
	release_date = excluded.release_date,
	image_url = excluded.image_url,
	source_type = excluded.source_type,
	source_query = excluded.source_query,
	last_fetched = excluded.last_fetched,
	updated_at = CURRENT_TIMESTAMP
RETURNING id`

// Metadata returns the record stored for itemID, or nil when there is none.
func (s *Store) Metadata(ctx context.Context, itemID string) (*models.Record, error) {
	var rec *models.Record
	err := s.withReadTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		rec, err = readMetadata(ctx, tx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpsertMetadata replaces everything stored for itemID with rec in a single
// transaction and returns the record as read back. The row id survives
// refreshes; attachments and people links are swapped wholesale.
func (s *Store) UpsertMetadata(ctx context.Context, itemID string, rec *models.Record) (*models.Record, error) {
	if rec == nil {
		return nil, errors.New("upsert metadata: nil record")
	}

	var stored *models.Record
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var id string
		err := tx.GetContext(ctx, &id, upsertMetadataQuery,
			uuid.NewString(), itemID, rec.Title,
			nullInt(rec.Duration), nullInt(rec.PageCount), nullInt(rec.TrackCount),
			rec.Description, rec.ReleaseDate, rec.CoverImage,
			string(rec.SourceType), rec.SourceQuery, rec.LastFetched.UTC())
		if err != nil {
			return fmt.Errorf("upsert metadata row: %w", err)
		}

		if err := replaceAttachments(ctx, tx, id, rec.UniqueAttachments()); err != nil {
			return err
		}
		if err := linkPeople(ctx, tx, authorTables, id, rec.Authors); err != nil {
			return err
		}
		if err := linkPeople(ctx, tx, publisherTables, id, rec.Publishers); err != nil {
			return err
		}

		stored, err = readMetadata(ctx, tx, itemID)
		return err
	})
	if err != nil {
		s.logger.Error("failed to store metadata", zap.String("item_id", itemID), zap.Error(err))
		return nil, err
	}
	return stored, nil
}

// DeleteMetadata drops the record of itemID with its attachments and people
// links. Shared authors and publishers are kept.
func (s *Store) DeleteMetadata(ctx context.Context, itemID string) (bool, error) {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom("metadata")
	del.Where(del.Equal("item_id", itemID))
	query, args := del.Build()

	var deleted bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete metadata: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

func replaceAttachments(ctx context.Context, tx *sqlx.Tx, metadataID string, attachments []models.Attachment) error {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom("attachments")
	del.Where(del.Equal("metadata_id", metadataID))
	query, args := del.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete attachments: %w", err)
	}

	if len(attachments) == 0 {
		return nil
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("attachments")
	ib.Cols("metadata_id", "position", "type", "title", "duration", "url")
	for i, a := range attachments {
		title := sql.NullString{String: a.Title, Valid: a.Title != ""}
		ib.Values(metadataID, i, string(a.Kind), title, nullInt(a.Duration), a.URI)
	}
	query, args = ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert attachments: %w", err)
	}
	return nil
}

// linkPeople resets the links of one record and reconnects them in order,
// creating people on first sight and reusing them by name afterwards. A known
// image is only replaced by a new non-empty one.
func linkPeople(ctx context.Context, tx *sqlx.Tx, t peopleTables, metadataID string, people []models.Person) error {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom(t.link)
	del.Where(del.Equal("metadata_id", metadataID))
	query, args := del.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset %s: %w", t.link, err)
	}

	upsert := fmt.Sprintf(`
	INSERT INTO %[1]s (name, image_url) VALUES (?, NULLIF(?, ''))
	ON CONFLICT(name) DO UPDATE SET
		image_url = COALESCE(excluded.image_url, %[1]s.image_url)
	RETURNING id`, t.entity)
	link := fmt.Sprintf(`INSERT INTO %s (metadata_id, %s, position) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, t.link, t.fk)

	for i, p := range people {
		if p.Name == "" {
			continue
		}
		var personID int64
		if err := tx.GetContext(ctx, &personID, upsert, p.Name, p.ImageURL); err != nil {
			return fmt.Errorf("upsert %s %q: %w", t.entity, p.Name, err)
		}
		if _, err := tx.ExecContext(ctx, link, metadataID, personID, i); err != nil {
			return fmt.Errorf("link %s %q: %w", t.entity, p.Name, err)
		}
	}
	return nil
}

func readMetadata(ctx context.Context, q sqlx.QueryerContext, itemID string) (*models.Record, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id", "item_id", "title", "duration", "page_count", "tracks_count", "description",
		"release_date", "image_url", "source_type", "source_query", "last_fetched")
	sb.From("metadata")
	sb.Where(sb.Equal("item_id", itemID))
	query, args := sb.Build()

	var row metadataRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	rec := &models.Record{
		Title:       row.Title.String,
		Duration:    intPtr(row.Duration),
		PageCount:   intPtr(row.PageCount),
		TrackCount:  intPtr(row.TrackCount),
		Description: row.Description.String,
		ReleaseDate: row.ReleaseDate.String,
		CoverImage:  row.ImageURL.String,
		SourceType:  models.Type(row.SourceType),
		SourceQuery: row.SourceQuery,
		LastFetched: row.LastFetched.UTC(),
		Attachments: []models.Attachment{},
	}

	sb = sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("type", "title", "duration", "url")
	sb.From("attachments")
	sb.Where(sb.Equal("metadata_id", row.ID))
	sb.OrderBy("position")
	query, args = sb.Build()

	var attachments []attachmentRow
	if err := sqlx.SelectContext(ctx, q, &attachments, query, args...); err != nil {
		return nil, fmt.Errorf("read attachments: %w", err)
	}
	for _, a := range attachments {
		rec.Attachments = append(rec.Attachments, models.Attachment{
			Kind:     models.AttachmentKind(a.Kind),
			Title:    a.Title.String,
			Duration: intPtr(a.Duration),
			URI:      a.URL,
		})
	}

	var err error
	if rec.Authors, err = readPeople(ctx, q, authorTables, row.ID); err != nil {
		return nil, err
	}
	if rec.Publishers, err = readPeople(ctx, q, publisherTables, row.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

func readPeople(ctx context.Context, q sqlx.QueryerContext, t peopleTables, metadataID string) ([]models.Person, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("p.name AS name", "p.image_url AS image_url")
	sb.From(t.link + " l")
	sb.Join(t.entity+" p", "p.id = l."+t.fk)
	sb.Where(sb.Equal("l.metadata_id", metadataID))
	sb.OrderBy("l.position")
	query, args := sb.Build()

	var rows []personRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("read %s: %w", t.entity, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	people := make([]models.Person, len(rows))
	for i, r := range rows {
		people[i] = models.Person{Name: r.Name, ImageURL: r.ImageURL.String}
	}
	return people, nil
}
