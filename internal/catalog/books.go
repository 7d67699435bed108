package catalog

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shelf-meta-srv/internal/httpx"
	"shelf-meta-srv/internal/models"
	"shelf-meta-srv/internal/similarity"
)

const (
	GoogleBooksURL       = "https://www.googleapis.com/books/v1"
	OpenLibraryURL       = "https://openlibrary.org"
	OpenLibraryCoversURL = "https://covers.openlibrary.org"

	maxCoverZoom    = 6
	portraitWorkers = 4
	booksMaxResults = 20
	yearMatchSpread = 1
)

var (
	yearSuffix = regexp.MustCompile(`\(\s*(\d{4})\s*\)`)
	zoomParam  = regexp.MustCompile(`zoom=\d+`)
)

var DefaultBookLanguages = []string{"fr", "en"}

// Books looks editions up on Google Books and author portraits on Open
// Library.
type Books struct {
	apiURL      string
	olURL       string
	coversURL   string
	apiKey      string
	languages   []string
	client      *httpx.Client
	probe       *httpx.Client
	openLibrary *httpx.Client
	logger      *zap.Logger
}

func NewBooks(apiKey string, languages []string, opts httpx.Options, logger *zap.Logger) *Books {
	if len(languages) == 0 {
		languages = DefaultBookLanguages
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts.Name = "googlebooks"
	client := httpx.New(opts, logger)

	probeOpts := opts
	probeOpts.Name = "googlebooks-covers"
	probeOpts.MaxAttempts = 1
	probe := httpx.New(probeOpts, logger)

	olOpts := opts
	olOpts.Name = "openlibrary"
	olOpts.MaxAttempts = 1
	olOpts.RPS = 5
	openLibrary := httpx.New(olOpts, logger)

	return &Books{
		apiURL:      GoogleBooksURL,
		olURL:       OpenLibraryURL,
		coversURL:   OpenLibraryCoversURL,
		apiKey:      apiKey,
		languages:   languages,
		client:      client,
		probe:       probe,
		openLibrary: openLibrary,
		logger:      logger.With(zap.String("adapter", "books")),
	}
}

func (b *Books) Type() models.Type { return models.TypeBooks }

type volume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		PageCount           int      `json:"pageCount"`
		Language            string   `json:"language"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
	AccessInfo struct {
		WebReaderLink string `json:"webReaderLink"`
	} `json:"accessInfo"`
}

func (v volume) title() string { return v.VolumeInfo.Title }

func (v volume) identifiers() []string {
	ids := make([]string, 0, len(v.VolumeInfo.IndustryIdentifiers))
	for _, id := range v.VolumeInfo.IndustryIdentifiers {
		ids = append(ids, id.Identifier)
	}
	return ids
}

// year is the publication year, 0 when unknown.
func (v volume) year() int {
	d := v.VolumeInfo.PublishedDate
	if len(d) < 4 {
		return 0
	}
	y, err := strconv.Atoi(d[:4])
	if err != nil {
		return 0
	}
	return y
}

func (b *Books) Fetch(ctx context.Context, q Query) (*models.Record, error) {
	name, year := splitYear(q.Name)

	var items []volume
	if q.Barcode != "" {
		found, err := b.search(ctx, "isbn:"+q.Barcode)
		if err != nil && name == "" {
			return nil, err
		}
		if err != nil {
			b.logger.Debug("identifier search failed, trying name", zap.String("barcode", q.Barcode), zap.Error(err))
		}
		items = found
	}
	if len(items) == 0 && name != "" {
		found, err := b.search(ctx, name)
		if err != nil {
			return nil, err
		}
		items = found
	}
	if len(items) == 0 {
		return nil, nil
	}

	best := b.rank(name, year, q.Barcode, items)

	if detailed, err := b.volume(ctx, best.ID); err != nil {
		b.logger.Debug("volume details unavailable", zap.String("id", best.ID), zap.Error(err))
	} else {
		best = *detailed
	}

	info := best.VolumeInfo
	rec := &models.Record{
		Title:       info.Title,
		Authors:     b.portraits(ctx, info.Authors),
		PageCount:   models.IntPtr(info.PageCount),
		Description: info.Description,
		ReleaseDate: info.PublishedDate,
		CoverImage:  b.cover(ctx, info.ImageLinks.Thumbnail),
	}
	if info.Publisher != "" {
		rec.Publishers = []models.Person{{Name: info.Publisher}}
	}
	if link := best.AccessInfo.WebReaderLink; link != "" {
		rec.Attachments = append(rec.Attachments, models.Attachment{Kind: models.AttachmentBook, URI: link})
	}
	return rec, nil
}

func (b *Books) search(ctx context.Context, query string) ([]volume, error) {
	params := url.Values{
		"q":          {query},
		"maxResults": {strconv.Itoa(booksMaxResults)},
	}
	if b.apiKey != "" {
		params.Set("key", b.apiKey)
	}

	var res struct {
		Items []volume `json:"items"`
	}
	if err := b.client.GetJSON(ctx, b.apiURL+"/volumes?"+params.Encode(), &res); err != nil {
		return nil, fmt.Errorf("search volumes: %w", err)
	}
	return res.Items, nil
}

func (b *Books) volume(ctx context.Context, id string) (*volume, error) {
	if id == "" {
		return nil, errNoDetails
	}
	u := b.apiURL + "/volumes/" + url.PathEscape(id)
	if b.apiKey != "" {
		u += "?key=" + url.QueryEscape(b.apiKey)
	}
	var v volume
	if err := b.client.GetJSON(ctx, u, &v); err != nil {
		return nil, err
	}
	if v.VolumeInfo.Title == "" {
		return nil, errNoDetails
	}
	return &v, nil
}

// rank orders editions by year match, then language preference, then title
// distance, then response order. A barcode matching an edition identifier
// wins outright.
func (b *Books) rank(name string, year int, code string, items []volume) volume {
	if code != "" {
		for _, v := range items {
			if hasIdentifier(v, code) {
				return v
			}
		}
	}

	type ranked struct {
		v         volume
		yearMatch bool
		lang      int
		dist      int
	}
	target := strings.ToLower(name)
	list := make([]ranked, len(items))
	for i, v := range items {
		list[i] = ranked{
			v:         v,
			yearMatch: year > 0 && v.year() > 0 && abs(v.year()-year) <= yearMatchSpread,
			lang:      b.languageRank(v.VolumeInfo.Language),
			dist:      similarity.Distance(target, strings.ToLower(v.title())),
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, c := list[i], list[j]
		if a.yearMatch != c.yearMatch {
			return a.yearMatch
		}
		if a.lang != c.lang {
			return a.lang < c.lang
		}
		return a.dist < c.dist
	})
	return list[0].v
}

func hasIdentifier(v volume, code string) bool {
	for _, id := range v.identifiers() {
		if id == code {
			return true
		}
	}
	return false
}

func (b *Books) languageRank(lang string) int {
	for i, l := range b.languages {
		if strings.EqualFold(l, lang) {
			return i
		}
	}
	return len(b.languages)
}

// cover probes the thumbnail from the largest zoom down and keeps the first
// variant that answers.
func (b *Books) cover(ctx context.Context, thumbnail string) string {
	if thumbnail == "" || !zoomParam.MatchString(thumbnail) {
		return thumbnail
	}
	for zoom := maxCoverZoom; zoom >= 0; zoom-- {
		candidate := zoomParam.ReplaceAllString(thumbnail, "zoom="+strconv.Itoa(zoom))
		if err := b.probe.Head(ctx, candidate); err == nil {
			return candidate
		}
		b.logger.Debug("cover zoom unavailable", zap.Int("zoom", zoom))
	}
	return thumbnail
}

// portraits looks every author up concurrently. Lookups are best effort and
// each result stays at its author's index.
func (b *Books) portraits(ctx context.Context, names []string) []models.Person {
	if len(names) == 0 {
		return nil
	}
	people := make([]models.Person, len(names))

	var g errgroup.Group
	g.SetLimit(portraitWorkers)
	for i, name := range names {
		people[i].Name = name
		g.Go(func() error {
			people[i].ImageURL = b.portrait(ctx, name)
			return nil
		})
	}
	g.Wait()
	return people
}

func (b *Books) portrait(ctx context.Context, name string) string {
	params := url.Values{"q": {name}, "limit": {"1"}}
	var search struct {
		Docs []struct {
			Key string `json:"key"`
		} `json:"docs"`
	}
	if err := b.openLibrary.GetJSON(ctx, b.olURL+"/search/authors.json?"+params.Encode(), &search); err != nil {
		b.logger.Debug("author search failed", zap.String("author", name), zap.Error(err))
		return ""
	}
	if len(search.Docs) == 0 || search.Docs[0].Key == "" {
		return ""
	}

	key := strings.TrimPrefix(search.Docs[0].Key, "/authors/")
	var author struct {
		Photos []int `json:"photos"`
	}
	if err := b.openLibrary.GetJSON(ctx, b.olURL+"/authors/"+url.PathEscape(key)+".json", &author); err != nil {
		b.logger.Debug("author lookup failed", zap.String("author", name), zap.Error(err))
		return ""
	}
	for _, id := range author.Photos {
		if id > 0 {
			return fmt.Sprintf("%s/a/id/%d-L.jpg", b.coversURL, id)
		}
	}
	return ""
}

// splitYear removes a "(YYYY)" marker from name and returns the year, 0
// when absent.
func splitYear(name string) (string, int) {
	m := yearSuffix.FindStringSubmatchIndex(name)
	if m == nil {
		return strings.TrimSpace(name), 0
	}
	year, _ := strconv.Atoi(name[m[2]:m[3]])
	stripped := strings.Join(strings.Fields(name[:m[0]]+" "+name[m[1]:]), " ")
	return stripped, year
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
