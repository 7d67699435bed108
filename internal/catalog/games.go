package catalog

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/httpx"
	"shelf-meta-srv/internal/models"
	"shelf-meta-srv/internal/similarity"
)

const RAWGURL = "https://api.rawg.io/api"

// Games looks video games up on RAWG. RAWG does not expose developers and
// publishers on search results, so records carry neither.
type Games struct {
	apiURL string
	apiKey string
	client *httpx.Client
	logger *zap.Logger
}

func NewGames(apiKey string, opts httpx.Options, logger *zap.Logger) *Games {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Name = "rawg"
	return &Games{
		apiURL: RAWGURL,
		apiKey: apiKey,
		client: httpx.New(opts, logger),
		logger: logger.With(zap.String("adapter", "games")),
	}
}

func (g *Games) Type() models.Type { return models.TypeGames }

type rawgGame struct {
	Name             string `json:"name"`
	Released         string `json:"released"`
	BackgroundImage  string `json:"background_image"`
	ShortScreenshots []struct {
		Image string `json:"image"`
	} `json:"short_screenshots"`
}

func (g *Games) Fetch(ctx context.Context, q Query) (*models.Record, error) {
	if q.Name == "" {
		return nil, nil
	}

	params := url.Values{"search": {q.Name}, "key": {g.apiKey}}
	var res struct {
		Results []rawgGame `json:"results"`
	}
	if err := g.client.GetJSON(ctx, g.apiURL+"/games?"+params.Encode(), &res); err != nil {
		return nil, fmt.Errorf("search games: %w", err)
	}

	best, ok := similarity.Closest(q.Name, res.Results, func(r rawgGame) string { return r.Name })
	if !ok {
		return nil, nil
	}

	rec := &models.Record{
		Title:       best.Name,
		ReleaseDate: best.Released,
		CoverImage:  best.BackgroundImage,
	}
	for _, s := range best.ShortScreenshots {
		rec.Attachments = append(rec.Attachments, models.Attachment{Kind: models.AttachmentImage, URI: s.Image})
	}
	return rec, nil
}
