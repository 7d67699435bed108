// Package config reads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/catalog"
	"shelf-meta-srv/internal/httpx"
	"shelf-meta-srv/internal/serp"
)

type Config struct {
	Port       int
	DBPath     string
	LogLevel   string
	PrettyLogs bool

	ProviderTimeout time.Duration
	CatalogTimeout  time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration

	GoogleBooksKey string
	BookLanguages  []string
	TMDBKey        string
	TMDBLanguage   string
	RAWGKey        string
	BGGToken       string
	MusicCatalog   string
	SpotifyID      string
	SpotifySecret  string

	SerpKeys serp.Keys
	Locale   serp.Locale
}

// Load reads every setting, falling back to defaults for unset variables.
// Malformed numbers and durations are reported together.
func Load() (*Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := &Config{
		Port:       p.integer("PORT", 8080),
		DBPath:     env("DB_PATH", "./data/shelf.db"),
		LogLevel:   env("LOG_LEVEL", "info"),
		PrettyLogs: p.boolean("PRETTY_LOGS", false),

		ProviderTimeout: p.duration("PROVIDER_TIMEOUT", 8*time.Second),
		CatalogTimeout:  p.duration("CATALOG_TIMEOUT", 8*time.Second),
		RetryAttempts:   p.integer("RETRY_ATTEMPTS", httpx.DefaultMaxAttempts),
		RetryBaseDelay:  p.duration("RETRY_BASE_DELAY", httpx.DefaultBaseDelay),

		GoogleBooksKey: os.Getenv("GOOGLE_BOOKS_API_KEY"),
		BookLanguages:  list(env("BOOK_LANGUAGES", "fr,en")),
		TMDBKey:        os.Getenv("TMDB_API_KEY"),
		TMDBLanguage:   os.Getenv("TMDB_LANGUAGE"),
		RAWGKey:        os.Getenv("RAWG_API_KEY"),
		BGGToken:       os.Getenv("BGG_API_TOKEN"),
		MusicCatalog:   env("MUSIC_CATALOG", catalog.MusicDeezer),
		SpotifyID:      os.Getenv("SPOTIFY_ID"),
		SpotifySecret:  os.Getenv("SPOTIFY_SECRET"),

		SerpKeys: serp.Keys{
			SerpWow:    os.Getenv("SERPWOW_API_KEY"),
			ValueSerp:  os.Getenv("VALUE_SERP_API_KEY"),
			ScaleSerp:  os.Getenv("SCALE_SERP_API_KEY"),
			SerpAPI:    os.Getenv("SERP_API_KEY"),
			AvesAPI:    os.Getenv("AVES_API_KEY"),
			DataForSEO: os.Getenv("DATA_FOR_SEO_API_KEY"),
		},
		Locale: serp.Locale{
			Country:  env("SERP_COUNTRY", "fr"),
			Language: env("SERP_LANGUAGE", "fr"),
		},
	}

	cfg.SerpKeys.MusicBrainz = p.boolean("MUSICBRAINZ_FALLBACK", false)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: out of range: %d", cfg.Port))
	}
	if cfg.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("RETRY_ATTEMPTS: must be at least 1, got %d", cfg.RetryAttempts))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HTTP is the upstream client template shared by catalogs and providers.
func (c *Config) HTTP() httpx.Options {
	return httpx.Options{
		MaxAttempts: c.RetryAttempts,
		BaseDelay:   c.RetryBaseDelay,
	}
}

func (c *Config) Catalog() catalog.Config {
	return catalog.Config{
		GoogleBooksKey: c.GoogleBooksKey,
		BookLanguages:  c.BookLanguages,
		TMDBKey:        c.TMDBKey,
		TMDBLanguage:   c.TMDBLanguage,
		RAWGKey:        c.RAWGKey,
		BGGToken:       c.BGGToken,
		MusicCatalog:   c.MusicCatalog,
		SpotifyID:      c.SpotifyID,
		SpotifySecret:  c.SpotifySecret,
		HTTP:           c.HTTP(),
	}
}

func (c *Config) Serp(logger *zap.Logger) serp.Settings {
	return serp.Settings{
		Locale: c.Locale,
		HTTP:   c.HTTP(),
		Logger: logger,
	}
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type parser struct {
	errs *[]error
}

func (p parser) integer(key string, def int) int {
	v := env(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p parser) boolean(key string, def bool) bool {
	v := env(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := env(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
