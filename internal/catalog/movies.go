package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shelf-meta-srv/internal/httpx"
	"shelf-meta-srv/internal/models"
	"shelf-meta-srv/internal/similarity"
)

const (
	TMDBURL      = "https://api.themoviedb.org/3"
	TMDBImageURL = "https://image.tmdb.org/t/p"
)

// Movies looks films up on TMDB.
type Movies struct {
	apiURL   string
	imageURL string
	apiKey   string
	language string
	client   *httpx.Client
	logger   *zap.Logger
}

func NewMovies(apiKey, language string, opts httpx.Options, logger *zap.Logger) *Movies {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Name = "tmdb"
	return &Movies{
		apiURL:   TMDBURL,
		imageURL: TMDBImageURL,
		apiKey:   apiKey,
		language: language,
		client:   httpx.New(opts, logger),
		logger:   logger.With(zap.String("adapter", "movies")),
	}
}

func (m *Movies) Type() models.Type { return models.TypeMovies }

type tmdbMovie struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
}

type tmdbDetails struct {
	Runtime             int    `json:"runtime"`
	Overview            string `json:"overview"`
	ReleaseDate         string `json:"release_date"`
	ProductionCompanies []struct {
		Name     string `json:"name"`
		LogoPath string `json:"logo_path"`
	} `json:"production_companies"`
}

type tmdbCredits struct {
	Crew []struct {
		Name        string `json:"name"`
		Job         string `json:"job"`
		ProfilePath string `json:"profile_path"`
	} `json:"crew"`
}

func (m *Movies) Fetch(ctx context.Context, q Query) (*models.Record, error) {
	if q.Name == "" {
		return nil, nil
	}

	var search struct {
		Results []tmdbMovie `json:"results"`
	}
	if err := m.client.GetJSON(ctx, m.endpoint("/search/movie", url.Values{"query": {q.Name}}), &search); err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}

	best, ok := similarity.Closest(q.Name, search.Results, func(r tmdbMovie) string { return r.Title })
	if !ok {
		return nil, nil
	}

	var (
		details tmdbDetails
		credits tmdbCredits
	)
	id := strconv.Itoa(best.ID)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.client.GetJSON(gctx, m.endpoint("/movie/"+id, nil), &details)
	})
	g.Go(func() error {
		return m.client.GetJSON(gctx, m.endpoint("/movie/"+id+"/credits", nil), &credits)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("movie %s details: %w", id, err)
	}

	rec := &models.Record{
		Title:       best.Title,
		Duration:    models.IntPtr(details.Runtime * 60),
		Description: details.Overview,
		ReleaseDate: details.ReleaseDate,
		CoverImage:  m.image("w780", best.PosterPath),
	}
	for _, c := range credits.Crew {
		if c.Job == "Director" {
			rec.Authors = append(rec.Authors, models.Person{Name: c.Name, ImageURL: m.image("w780", c.ProfilePath)})
		}
	}
	for _, pc := range details.ProductionCompanies {
		rec.Publishers = append(rec.Publishers, models.Person{Name: pc.Name, ImageURL: m.image("w780", pc.LogoPath)})
	}
	if backdrop := m.image("w1280", best.BackdropPath); backdrop != "" {
		rec.Attachments = append(rec.Attachments, models.Attachment{Kind: models.AttachmentImage, URI: backdrop})
	}
	return rec, nil
}

func (m *Movies) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", m.apiKey)
	if m.language != "" {
		params.Set("language", m.language)
	}
	return m.apiURL + path + "?" + params.Encode()
}

func (m *Movies) image(size, path string) string {
	if path == "" {
		return ""
	}
	return m.imageURL + "/" + size + path
}
