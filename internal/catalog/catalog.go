// Package catalog resolves a free-text name to one normalized record from
// the external catalog matching the content type, and keeps the result
// attached to its inventory item.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/barcode"
	"shelf-meta-srv/internal/models"
)

const DefaultTimeout = 8 * time.Second

// Query is what an adapter looks up. Barcode holds digits only.
type Query struct {
	Name    string
	Barcode string
}

// Adapter fetches from one external catalog. Fetch returns nil, nil when
// the catalog has no candidate.
type Adapter interface {
	Type() models.Type
	Fetch(ctx context.Context, q Query) (*models.Record, error)
}

// Store persists one record per item. Metadata returns nil, nil when the
// item has none. UpsertMetadata replaces every non-key field atomically and
// returns the stored record as read back.
type Store interface {
	Metadata(ctx context.Context, itemID string) (*models.Record, error)
	UpsertMetadata(ctx context.Context, itemID string, rec *models.Record) (*models.Record, error)
	DeleteMetadata(ctx context.Context, itemID string) (bool, error)
}

type ResolveRequest struct {
	ItemID       string
	Name         string
	Type         models.Type
	Barcode      string
	ForceRefresh bool
}

type Resolver struct {
	adapters map[models.Type]Adapter
	store    Store
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewResolver(store Store, adapters []Adapter, timeout time.Duration, logger *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byType := make(map[models.Type]Adapter, len(adapters))
	for _, a := range adapters {
		byType[a.Type()] = a
	}
	return &Resolver{
		adapters: byType,
		store:    store,
		timeout:  timeout,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// Preview looks name up in the catalog for typ without persisting anything.
// Every failure is logged and reported as nil.
func (r *Resolver) Preview(ctx context.Context, name string, typ models.Type, code string) *models.Record {
	name = strings.TrimSpace(name)
	q := Query{Name: name, Barcode: barcode.Normalize(code)}
	log := r.logger.With(zap.String("type", string(typ)), zap.String("query", name))

	adapter, ok := r.adapters[typ]
	if !ok {
		log.Warn("no adapter for type")
		return nil
	}
	if q.Name == "" && q.Barcode == "" {
		return nil
	}
	log = log.With(zap.String("adapter", fmt.Sprintf("%T", adapter)))

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec, err := adapter.Fetch(ctx, q)
	if err != nil {
		log.Warn("catalog lookup failed", zap.Error(err))
		return nil
	}
	if rec == nil {
		log.Info("no catalog match")
		return nil
	}

	rec.Authors = uniquePeople(rec.Authors)
	rec.Publishers = uniquePeople(rec.Publishers)
	rec.Attachments = rec.UniqueAttachments()
	rec.SourceType = typ
	rec.SourceQuery = name
	rec.LastFetched = r.now()
	return rec
}

// ResolveAndStore returns the stored record unless a refresh is forced,
// otherwise fetches and fully replaces it. Nothing found upstream yields
// nil, nil and leaves any stored record untouched. When saving fails the
// fetched record is returned with an error wrapping models.ErrPersist.
func (r *Resolver) ResolveAndStore(ctx context.Context, req ResolveRequest) (*models.Record, error) {
	log := r.logger.With(zap.String("item_id", req.ItemID))

	if !req.ForceRefresh {
		stored, err := r.store.Metadata(ctx, req.ItemID)
		if err != nil {
			return nil, fmt.Errorf("read metadata: %w", err)
		}
		if stored != nil {
			log.Debug("metadata cache hit")
			return stored, nil
		}
	}

	rec := r.Preview(ctx, req.Name, req.Type, req.Barcode)
	if rec == nil {
		return nil, nil
	}

	saved, err := r.store.UpsertMetadata(ctx, req.ItemID, rec)
	if err != nil {
		log.Error("failed to store metadata", zap.Error(err))
		return rec, fmt.Errorf("%w: %w", models.ErrPersist, err)
	}
	log.Info("metadata stored", zap.String("title", saved.Title), zap.Bool("refresh", req.ForceRefresh))
	return saved, nil
}

// Stored returns the item's record without any upstream call.
func (r *Resolver) Stored(ctx context.Context, itemID string) (*models.Record, error) {
	return r.store.Metadata(ctx, itemID)
}

// Forget drops the item's record. It reports false when there was none.
func (r *Resolver) Forget(ctx context.Context, itemID string) (bool, error) {
	deleted, err := r.store.DeleteMetadata(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("delete metadata: %w", err)
	}
	if deleted {
		r.logger.Info("metadata deleted", zap.String("item_id", itemID))
	}
	return deleted, nil
}

// Types lists the content types with a configured adapter.
func (r *Resolver) Types() []models.Type {
	var out []models.Type
	for _, t := range models.Types {
		if _, ok := r.adapters[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func uniquePeople(people []models.Person) []models.Person {
	if len(people) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(people))
	out := make([]models.Person, 0, len(people))
	for _, p := range people {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out
}

var errNoDetails = errors.New("candidate details missing")
