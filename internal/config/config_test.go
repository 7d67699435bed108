package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "DB_PATH", "LOG_LEVEL", "PRETTY_LOGS", "PROVIDER_TIMEOUT", "CATALOG_TIMEOUT",
	"RETRY_ATTEMPTS", "RETRY_BASE_DELAY", "GOOGLE_BOOKS_API_KEY", "BOOK_LANGUAGES",
	"TMDB_API_KEY", "TMDB_LANGUAGE", "RAWG_API_KEY", "BGG_API_TOKEN", "MUSIC_CATALOG",
	"SPOTIFY_ID", "SPOTIFY_SECRET", "SERPWOW_API_KEY", "VALUE_SERP_API_KEY",
	"SCALE_SERP_API_KEY", "SERP_API_KEY", "AVES_API_KEY", "DATA_FOR_SEO_API_KEY",
	"SERP_COUNTRY", "SERP_LANGUAGE", "MUSICBRAINZ_FALLBACK",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./data/shelf.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.PrettyLogs)
	assert.Equal(t, 8*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 8*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, []string{"fr", "en"}, cfg.BookLanguages)
	assert.Equal(t, "deezer", cfg.MusicCatalog)
	assert.Equal(t, "fr", cfg.Locale.Country)
	assert.Equal(t, "fr", cfg.Locale.Language)
	assert.Empty(t, cfg.SerpKeys.SerpWow)
	assert.False(t, cfg.SerpKeys.MusicBrainz)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("PRETTY_LOGS", "true")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("RETRY_ATTEMPTS", "5")
	t.Setenv("BOOK_LANGUAGES", " en , de,, ")
	t.Setenv("MUSIC_CATALOG", "spotify")
	t.Setenv("SERPWOW_API_KEY", "wow")
	t.Setenv("DATA_FOR_SEO_API_KEY", "seo")
	t.Setenv("SERP_COUNTRY", "de")
	t.Setenv("MUSICBRAINZ_FALLBACK", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.PrettyLogs)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []string{"en", "de"}, cfg.BookLanguages)
	assert.Equal(t, "wow", cfg.SerpKeys.SerpWow)
	assert.Equal(t, "seo", cfg.SerpKeys.DataForSEO)
	assert.Equal(t, "de", cfg.Locale.Country)
	assert.True(t, cfg.SerpKeys.MusicBrainz)

	cat := cfg.Catalog()
	assert.Equal(t, "spotify", cat.MusicCatalog)
	assert.Equal(t, 5, cat.HTTP.MaxAttempts)
	assert.Equal(t, []string{"en", "de"}, cat.BookLanguages)

	s := cfg.Serp(nil)
	assert.Equal(t, "de", s.Locale.Country)
	assert.Equal(t, 5, s.HTTP.MaxAttempts)
}

func TestLoadReportsEveryMalformedValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("CATALOG_TIMEOUT", "soon")
	t.Setenv("RETRY_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "PORT")
	assert.ErrorContains(t, err, "CATALOG_TIMEOUT")
	assert.ErrorContains(t, err, "RETRY_ATTEMPTS")
}
