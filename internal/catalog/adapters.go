package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/httpx"
)

const (
	MusicDeezer  = "deezer"
	MusicSpotify = "spotify"
)

// Config carries the catalog credentials and preferences.
type Config struct {
	GoogleBooksKey string
	BookLanguages  []string
	TMDBKey        string
	TMDBLanguage   string
	RAWGKey        string
	BGGToken       string
	MusicCatalog   string
	SpotifyID      string
	SpotifySecret  string
	HTTP           httpx.Options
}

// Adapters builds one adapter per content type.
func Adapters(ctx context.Context, cfg Config, logger *zap.Logger) []Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TMDBKey == "" {
		logger.Warn("TMDB_API_KEY is not set, movie lookups will fail")
	}
	if cfg.RAWGKey == "" {
		logger.Warn("RAWG_API_KEY is not set, game lookups will fail")
	}

	return []Adapter{
		NewBooks(cfg.GoogleBooksKey, cfg.BookLanguages, cfg.HTTP, logger),
		NewMovies(cfg.TMDBKey, cfg.TMDBLanguage, cfg.HTTP, logger),
		NewGames(cfg.RAWGKey, cfg.HTTP, logger),
		NewBoardGames(cfg.BGGToken, cfg.HTTP, logger),
		musicAdapter(ctx, cfg, logger),
	}
}

func musicAdapter(ctx context.Context, cfg Config, logger *zap.Logger) Adapter {
	switch strings.ToLower(cfg.MusicCatalog) {
	case MusicSpotify:
		if cfg.SpotifyID != "" && cfg.SpotifySecret != "" {
			return NewSpotify(ctx, cfg.SpotifyID, cfg.SpotifySecret, logger)
		}
		logger.Warn("SPOTIFY_ID and SPOTIFY_SECRET are required for the spotify catalog, using deezer")
	case "", MusicDeezer:
	default:
		logger.Warn("unknown music catalog, using deezer", zap.String("catalog", cfg.MusicCatalog))
	}
	return NewDeezer(cfg.HTTP, logger)
}

var (
	_ Adapter = (*Books)(nil)
	_ Adapter = (*Movies)(nil)
	_ Adapter = (*Games)(nil)
	_ Adapter = (*BoardGames)(nil)
	_ Adapter = (*Deezer)(nil)
	_ Adapter = (*Spotify)(nil)
)
