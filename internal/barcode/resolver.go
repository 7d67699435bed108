// Package barcode names a product from its barcode by walking a chain of web
// search providers, caching the first successful answer forever.
package barcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"shelf-meta-srv/internal/models"
	"shelf-meta-srv/internal/productname"
	"shelf-meta-srv/internal/serp"
)

const DefaultProviderTimeout = 8 * time.Second

var ErrEmptyBarcode = errors.New("barcode has no digits")

// Store is the barcode cache. Barcode returns nil, nil when absent.
type Store interface {
	Barcode(ctx context.Context, code string) (*models.BarcodeEntry, error)
	CreateBarcode(ctx context.Context, entry *models.BarcodeEntry) error
}

// NameResult is a resolved barcode with its reduced product name.
type NameResult struct {
	Barcode   string   `json:"barcode"`
	Provider  string   `json:"provider"`
	RawNames  []string `json:"names"`
	CleanName string   `json:"cleanName"`
	Cached    bool     `json:"cached"`
}

type Resolver struct {
	store     Store
	providers []serp.Provider
	timeout   time.Duration
	logger    *zap.Logger
	group     singleflight.Group
}

func NewResolver(store Store, providers []serp.Provider, timeout time.Duration, logger *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:     store,
		providers: providers,
		timeout:   timeout,
		logger:    logger,
	}
}

// Resolve returns the cached entry for raw or asks the providers in order.
// ErrNotRecognized when every provider comes back empty. A cache write
// failure returns the entry along with an error wrapping models.ErrPersist.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*models.BarcodeEntry, error) {
	entry, _, err := r.resolve(ctx, raw)
	return entry, err
}

// ResolveName is Resolve followed by the name reduction of the raw names.
func (r *Resolver) ResolveName(ctx context.Context, raw string) (*NameResult, error) {
	entry, cached, err := r.resolve(ctx, raw)
	if entry == nil {
		return nil, err
	}
	return &NameResult{
		Barcode:   entry.Barcode,
		Provider:  entry.Provider,
		RawNames:  entry.RawNames,
		CleanName: productname.Clean(productname.Extract(entry.RawNames)),
		Cached:    cached,
	}, err
}

type outcome struct {
	entry  *models.BarcodeEntry
	cached bool
}

func (r *Resolver) resolve(ctx context.Context, raw string) (*models.BarcodeEntry, bool, error) {
	code := Normalize(raw)
	if code == "" {
		return nil, false, ErrEmptyBarcode
	}

	// concurrent lookups of one barcode share a single provider walk, which
	// outlives any one caller; providers stay bounded by their own timeout
	walk := context.WithoutCancel(ctx)
	ch := r.group.DoChan(code, func() (any, error) {
		entry, cached, err := r.lookup(walk, code)
		return outcome{entry: entry, cached: cached}, err
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		out := res.Val.(outcome)
		return out.entry, out.cached, res.Err
	}
}

func (r *Resolver) lookup(ctx context.Context, code string) (*models.BarcodeEntry, bool, error) {
	log := r.logger.With(zap.String("barcode", code))

	cached, err := r.store.Barcode(ctx, code)
	if err != nil {
		return nil, false, fmt.Errorf("read barcode cache: %w", err)
	}
	if cached != nil {
		log.Debug("barcode cache hit", zap.String("provider", cached.Provider))
		return cached, true, nil
	}

	query := BuildSearchQuery(code)
	for _, p := range r.providers {
		names := r.search(ctx, p, query)
		if len(names) == 0 {
			log.Info("provider returned nothing", zap.String("provider", p.Name()))
			continue
		}

		entry := &models.BarcodeEntry{
			Barcode:   code,
			Provider:  p.Name(),
			RawNames:  names,
			CreatedAt: time.Now().UTC(),
		}
		if err := r.store.CreateBarcode(ctx, entry); err != nil {
			log.Error("failed to cache barcode", zap.String("provider", p.Name()), zap.Error(err))
			return entry, false, fmt.Errorf("%w: %w", models.ErrPersist, err)
		}
		log.Info("barcode resolved", zap.String("provider", p.Name()), zap.Int("names", len(names)))
		return entry, false, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return nil, false, models.ErrNotRecognized
}

// search runs one provider under the per-call timeout.
func (r *Resolver) search(ctx context.Context, p serp.Provider, query string) (names []string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("provider panicked", zap.String("provider", p.Name()), zap.Any("panic", rec))
			names = nil
		}
	}()
	return p.Search(ctx, query)
}
