package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"shelf-meta-srv/internal/httpx"
	"shelf-meta-srv/internal/models"
)

var testHTTP = httpx.Options{MaxAttempts: 1, BaseDelay: time.Millisecond}

type booksFake struct {
	mu       sync.Mutex
	searches []string
	volumes  map[string]string
	status   map[string]int
	details  map[string]string
	srv      *httptest.Server
}

func newBooksFake(t *testing.T) *booksFake {
	f := &booksFake{volumes: map[string]string{}, status: map[string]int{}, details: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		f.mu.Lock()
		f.searches = append(f.searches, q)
		body, ok := f.volumes[q]
		code := f.status[q]
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		if !ok {
			body = `{"totalItems": 0}`
		}
		w.Write([]byte(body))
	})
	mux.HandleFunc("/volumes/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/volumes/"):]
		body, ok := f.details[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	})
	mux.HandleFunc("/content", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Query().Get("zoom") > "3" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
	})
	mux.HandleFunc("/search/authors.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Frank Herbert" {
			w.Write([]byte(`{"numFound": 1, "docs": [{"key": "OL79034A", "name": "Frank Herbert"}]}`))
			return
		}
		w.Write([]byte(`{"numFound": 0, "docs": []}`))
	})
	mux.HandleFunc("/authors/OL79034A.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "Frank Herbert", "photos": [-1, 6257815]}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *booksFake) adapter(t *testing.T) *Books {
	b := NewBooks("", nil, testHTTP, zaptest.NewLogger(t))
	b.apiURL = f.srv.URL
	b.olURL = f.srv.URL
	return b
}

func edition(id, title, published, lang, isbn string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"volumeInfo": {
			"title": %q,
			"publishedDate": %q,
			"language": %q,
			"industryIdentifiers": [{"type": "ISBN_13", "identifier": %q}]
		}
	}`, id, title, published, lang, isbn)
}

func TestBooksYearAwareRanking(t *testing.T) {
	f := newBooksFake(t)
	f.volumes["Dune"] = `{"items": [` +
		edition("new", "Dune", "2021-05-06", "fr", "9782221255690") + `,` +
		edition("old", "Dune (Chilton)", "1965", "en", "9780801950773") + `]}`
	f.details["old"] = fmt.Sprintf(`{
		"id": "old",
		"volumeInfo": {
			"title": "Dune",
			"authors": ["Frank Herbert"],
			"publisher": "Chilton Books",
			"publishedDate": "1965-08-01",
			"description": "Set on the desert planet Arrakis.",
			"pageCount": 412,
			"imageLinks": {"thumbnail": "%s/content?id=old&printsec=frontcover&img=1&zoom=1&source=gbs_api"}
		},
		"accessInfo": {"webReaderLink": "http://play.google.com/books/reader?id=old"}
	}`, f.srv.URL)

	rec, err := f.adapter(t).Fetch(context.Background(), Query{Name: "Dune (1965)"})

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"Dune"}, f.searches)
	assert.Equal(t, "Dune", rec.Title)
	assert.Equal(t, "1965-08-01", rec.ReleaseDate)
	assert.Equal(t, 412, *rec.PageCount)
	assert.Equal(t, []models.Person{{Name: "Chilton Books"}}, rec.Publishers)
	assert.Equal(t, []models.Person{{
		Name:     "Frank Herbert",
		ImageURL: "https://covers.openlibrary.org/a/id/6257815-L.jpg",
	}}, rec.Authors)
	assert.Equal(t, f.srv.URL+"/content?id=old&printsec=frontcover&img=1&zoom=3&source=gbs_api", rec.CoverImage)
	assert.Equal(t, []models.Attachment{{Kind: models.AttachmentBook, URI: "http://play.google.com/books/reader?id=old"}}, rec.Attachments)
	assert.Nil(t, rec.Duration)
}

func TestBooksWithoutYearPrefersLanguageThenTitle(t *testing.T) {
	f := newBooksFake(t)
	f.volumes["Dune"] = `{"items": [` +
		edition("de", "Dune", "2001", "de", "1") + `,` +
		edition("en", "Dune", "2005", "en", "2") + `,` +
		edition("fr-long", "Dune - Tome 1", "2012", "fr", "3") + `,` +
		edition("fr", "Dune", "2021", "fr", "4") + `]}`

	rec, err := f.adapter(t).Fetch(context.Background(), Query{Name: "Dune"})

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "2021", rec.ReleaseDate)
}

func TestBooksBarcodeShortCircuit(t *testing.T) {
	f := newBooksFake(t)
	f.volumes["isbn:9782266320481"] = `{"items": [` +
		edition("close", "Dune", "2020", "fr", "9782221255690") + `,` +
		edition("exact", "Le Cycle de Dune, tome 1", "2022", "fr", "9782266320481") + `]}`

	rec, err := f.adapter(t).Fetch(context.Background(), Query{Name: "Dune", Barcode: "9782266320481"})

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Le Cycle de Dune, tome 1", rec.Title)
	assert.Equal(t, []string{"isbn:9782266320481"}, f.searches)
}

func TestBooksFallsBackToNameSearch(t *testing.T) {
	f := newBooksFake(t)
	f.volumes["Dune"] = `{"items": [` + edition("a", "Dune", "2020", "fr", "1") + `]}`

	rec, err := f.adapter(t).Fetch(context.Background(), Query{Name: "Dune", Barcode: "123"})

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"isbn:123", "Dune"}, f.searches)
}

func TestBooksFailedIdentifierSearchFallsBackToName(t *testing.T) {
	f := newBooksFake(t)
	f.status["isbn:123"] = http.StatusBadRequest
	f.volumes["Dune"] = `{"items": [` + edition("a", "Dune", "2020", "fr", "1") + `]}`

	rec, err := f.adapter(t).Fetch(context.Background(), Query{Name: "Dune", Barcode: "123"})

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Dune", rec.Title)
	assert.Equal(t, []string{"isbn:123", "Dune"}, f.searches)

	f.status["isbn:456"] = http.StatusForbidden
	_, err = f.adapter(t).Fetch(context.Background(), Query{Barcode: "456"})
	assert.Error(t, err)
}

func TestBooksNoResults(t *testing.T) {
	f := newBooksFake(t)

	rec, err := f.adapter(t).Fetch(context.Background(), Query{Name: "zzzz"})

	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSplitYear(t *testing.T) {
	tests := []struct {
		in   string
		name string
		year int
	}{
		{"Dune (1965)", "Dune", 1965},
		{"Dune ( 2021 ) poche", "Dune poche", 2021},
		{"Dune", "Dune", 0},
		{"Blade Runner (film)", "Blade Runner (film)", 0},
	}
	for _, tt := range tests {
		name, year := splitYear(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.year, year, tt.in)
	}
}
