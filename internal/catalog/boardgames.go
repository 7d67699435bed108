package catalog

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/httpx"
	"shelf-meta-srv/internal/models"
	"shelf-meta-srv/internal/similarity"
	"shelf-meta-srv/internal/xmltree"
)

const (
	BGGURL = "https://boardgamegeek.com/xmlapi2"
	bggRPS = 2
)

// BoardGames looks board games up on the BoardGameGeek XML API.
type BoardGames struct {
	apiURL string
	client *httpx.Client
	logger *zap.Logger
}

func NewBoardGames(token string, opts httpx.Options, logger *zap.Logger) *BoardGames {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Name = "bgg"
	opts.RPS = bggRPS
	if token != "" {
		opts.Headers = map[string]string{"Authorization": "Bearer " + token}
	}
	return &BoardGames{
		apiURL: BGGURL,
		client: httpx.New(opts, logger),
		logger: logger.With(zap.String("adapter", "boardgames")),
	}
}

func (b *BoardGames) Type() models.Type { return models.TypeBoardGames }

func primaryName(n *xmltree.Node) string {
	return html.UnescapeString(n.Find(xmltree.TagType("name", "primary")).Attr("value"))
}

func (b *BoardGames) Fetch(ctx context.Context, q Query) (*models.Record, error) {
	if q.Name == "" {
		return nil, nil
	}

	params := url.Values{"query": {q.Name}, "type": {"boardgame"}}
	root, err := b.get(ctx, "/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("search boardgames: %w", err)
	}

	best, ok := similarity.Closest(q.Name, root.Filter(xmltree.Tag("item")), primaryName)
	if !ok {
		return nil, nil
	}
	id := best.Attr("id")
	if id == "" {
		return nil, nil
	}

	detail, err := b.get(ctx, "/thing?"+url.Values{"id": {id}, "stats": {"1"}}.Encode())
	if err != nil {
		return nil, fmt.Errorf("boardgame %s: %w", id, err)
	}
	game := detail.Find(xmltree.Tag("item"))
	if game == nil {
		return nil, nil
	}

	return thingRecord(game), nil
}

func (b *BoardGames) get(ctx context.Context, path string) (*xmltree.Node, error) {
	body, err := b.client.GetText(ctx, b.apiURL+path)
	if err != nil {
		return nil, err
	}
	return xmltree.Parse(body)
}

func thingRecord(game *xmltree.Node) *models.Record {
	rec := &models.Record{
		Title:       primaryName(game),
		Description: decodeDescription(game.Find(xmltree.Tag("description")).Text()),
		ReleaseDate: game.Find(xmltree.Tag("yearpublished")).Attr("value"),
		CoverImage:  game.Find(xmltree.Tag("image")).Text(),
	}
	for _, l := range game.Filter(xmltree.TagType("link", "boardgamedesigner")) {
		rec.Authors = append(rec.Authors, models.Person{Name: html.UnescapeString(l.Attr("value"))})
	}
	for _, l := range game.Filter(xmltree.TagType("link", "boardgamepublisher")) {
		rec.Publishers = append(rec.Publishers, models.Person{Name: html.UnescapeString(l.Attr("value"))})
	}
	if rec.CoverImage != "" {
		rec.Attachments = []models.Attachment{{Kind: models.AttachmentImage, URI: rec.CoverImage}}
	}
	return rec
}

// decodeDescription resolves the HTML entities BGG leaves in descriptions,
// including line breaks encoded as &#10;.
func decodeDescription(s string) string {
	s = strings.ReplaceAll(html.UnescapeString(s), "&#10;", "\n")
	return strings.TrimSpace(s)
}
