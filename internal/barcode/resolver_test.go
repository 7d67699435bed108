package barcode

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"shelf-meta-srv/internal/models"
	"shelf-meta-srv/internal/serp"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Barcode(ctx context.Context, code string) (*models.BarcodeEntry, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BarcodeEntry), args.Error(1)
}

func (m *mockStore) CreateBarcode(ctx context.Context, entry *models.BarcodeEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// countingProvider records every call and answers with fixed names.
type countingProvider struct {
	name  string
	names []string
	delay time.Duration
	calls atomic.Int32
	query atomic.Value
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Search(ctx context.Context, query string) []string {
	p.calls.Add(1)
	p.query.Store(query)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil
		}
	}
	return p.names
}

func chain(ps ...*countingProvider) []serp.Provider {
	out := make([]serp.Provider, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "9782266320481", Normalize(" 978-2-266-32048-1 "))
	assert.Equal(t, "0045496", Normalize("0045496\n"))
	assert.Equal(t, "", Normalize("abc"))
}

func TestBuildSearchQuery(t *testing.T) {
	q := BuildSearchQuery("978-2266320481")

	assert.True(t, strings.HasPrefix(q, "9782266320481 (site:allocine.fr OR site:amazon.fr OR "))
	assert.True(t, strings.HasSuffix(q, "site:rueducommerce.fr OR site:trictrac.net)"))
	assert.Equal(t, len(searchSites)-1, strings.Count(q, " OR "))
	assert.Len(t, searchSites, 33)
}

func TestResolveStopsAtFirstProviderWithNames(t *testing.T) {
	store := new(mockStore)
	store.On("Barcode", mock.Anything, "3760052141324").Return(nil, nil)
	store.On("CreateBarcode", mock.Anything, mock.MatchedBy(func(e *models.BarcodeEntry) bool {
		return e.Barcode == "3760052141324" && e.Provider == "first" && len(e.RawNames) == 2
	})).Return(nil)

	first := &countingProvider{name: "first", names: []string{"Catan - Kosmos", "Catan le jeu"}}
	second := &countingProvider{name: "second", names: []string{"other"}}

	r := NewResolver(store, chain(first, second), time.Second, zaptest.NewLogger(t))
	entry, err := r.Resolve(context.Background(), "3 760052 141324")

	require.NoError(t, err)
	assert.Equal(t, "first", entry.Provider)
	assert.EqualValues(t, 1, first.calls.Load())
	assert.Zero(t, second.calls.Load())
	assert.Equal(t, BuildSearchQuery("3760052141324"), first.query.Load())
	store.AssertExpectations(t)
}

func TestResolveFallsThroughEmptyProviders(t *testing.T) {
	store := new(mockStore)
	store.On("Barcode", mock.Anything, "123").Return(nil, nil)
	store.On("CreateBarcode", mock.Anything, mock.Anything).Return(nil)

	empty := &countingProvider{name: "empty"}
	slow := &countingProvider{name: "slow", names: []string{"late"}, delay: time.Second}
	last := &countingProvider{name: "last", names: []string{"Zelda"}}

	r := NewResolver(store, chain(empty, slow, last), 20*time.Millisecond, zaptest.NewLogger(t))
	entry, err := r.Resolve(context.Background(), "123")

	require.NoError(t, err)
	assert.Equal(t, "last", entry.Provider)
	assert.Equal(t, []string{"Zelda"}, entry.RawNames)
	assert.EqualValues(t, 1, empty.calls.Load())
	assert.EqualValues(t, 1, slow.calls.Load())
}

func TestResolveAllProvidersFail(t *testing.T) {
	store := new(mockStore)
	store.On("Barcode", mock.Anything, "123").Return(nil, nil)

	a := &countingProvider{name: "a"}
	b := &countingProvider{name: "b", names: []string{}}

	r := NewResolver(store, chain(a, b), time.Second, zaptest.NewLogger(t))
	entry, err := r.Resolve(context.Background(), "123")

	assert.Nil(t, entry)
	assert.ErrorIs(t, err, models.ErrNotRecognized)
	store.AssertNotCalled(t, "CreateBarcode", mock.Anything, mock.Anything)
}

func TestResolveCacheHit(t *testing.T) {
	cached := &models.BarcodeEntry{Barcode: "123", Provider: "SerpWow", RawNames: []string{"Dune"}}
	store := new(mockStore)
	store.On("Barcode", mock.Anything, "123").Return(cached, nil)

	p := &countingProvider{name: "p", names: []string{"x"}}
	r := NewResolver(store, chain(p), time.Second, zaptest.NewLogger(t))

	res, err := r.ResolveName(context.Background(), "123")

	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, "SerpWow", res.Provider)
	assert.Equal(t, "Dune", res.CleanName)
	assert.Zero(t, p.calls.Load())
}

func TestResolveEmptyBarcode(t *testing.T) {
	store := new(mockStore)
	r := NewResolver(store, nil, time.Second, zaptest.NewLogger(t))

	_, err := r.ResolveName(context.Background(), "n/a")

	assert.ErrorIs(t, err, ErrEmptyBarcode)
	store.AssertNotCalled(t, "Barcode", mock.Anything, mock.Anything)
}

func TestResolveCacheReadFailure(t *testing.T) {
	store := new(mockStore)
	store.On("Barcode", mock.Anything, "123").Return(nil, errors.New("disk I/O error"))

	p := &countingProvider{name: "p", names: []string{"x"}}
	r := NewResolver(store, chain(p), time.Second, zaptest.NewLogger(t))

	_, err := r.Resolve(context.Background(), "123")

	assert.ErrorContains(t, err, "disk I/O error")
	assert.NotErrorIs(t, err, models.ErrNotRecognized)
	assert.Zero(t, p.calls.Load())
}

func TestResolveNameKeepsEntryOnPersistFailure(t *testing.T) {
	store := new(mockStore)
	store.On("Barcode", mock.Anything, "123").Return(nil, nil)
	store.On("CreateBarcode", mock.Anything, mock.Anything).Return(errors.New("database is locked"))

	p := &countingProvider{name: "p", names: []string{
		"Sony PS5 Console - 825GB",
		"PS5 Console 825GB Sony",
		"sony ps5 console 825gb",
	}}
	r := NewResolver(store, chain(p), time.Second, zaptest.NewLogger(t))

	res, err := r.ResolveName(context.Background(), "123")

	assert.ErrorIs(t, err, models.ErrPersist)
	require.NotNil(t, res)
	assert.Equal(t, "PS5 Console 825GB", res.CleanName)
	assert.False(t, res.Cached)
}

func TestResolveSharedWalkSurvivesCallerTimeout(t *testing.T) {
	store := new(mockStore)
	store.On("Barcode", mock.Anything, "0711719541028").Return(nil, nil)
	store.On("CreateBarcode", mock.Anything, mock.Anything).Return(nil)

	p := &countingProvider{name: "slow", names: []string{"PS5 Console"}, delay: 200 * time.Millisecond}
	r := NewResolver(store, chain(p), time.Second, zaptest.NewLogger(t))

	impatient, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	type result struct {
		entry *models.BarcodeEntry
		err   error
	}
	first := make(chan result, 1)
	go func() {
		entry, err := r.Resolve(impatient, "0711719541028")
		first <- result{entry, err}
	}()
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)

	entry, err := r.Resolve(context.Background(), "0711719541028")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "slow", entry.Provider)

	got := <-first
	assert.Nil(t, got.entry)
	assert.ErrorIs(t, got.err, context.DeadlineExceeded)
	assert.NotErrorIs(t, got.err, models.ErrNotRecognized)
	assert.EqualValues(t, 1, p.calls.Load())
	store.AssertNumberOfCalls(t, "CreateBarcode", 1)
}

func TestResolveCancelledCallerGetsContextError(t *testing.T) {
	store := new(mockStore)
	store.On("Barcode", mock.Anything, "42").Return(nil, nil)
	store.On("CreateBarcode", mock.Anything, mock.Anything).Return(nil)

	p := &countingProvider{name: "slow", names: []string{"x"}, delay: 100 * time.Millisecond}
	r := NewResolver(store, chain(p), time.Second, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "42")
	assert.ErrorIs(t, err, context.Canceled)

	// the walk keeps going for later callers
	entry, err := r.Resolve(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, entry.RawNames)
}
