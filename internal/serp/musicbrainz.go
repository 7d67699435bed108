package serp

import (
	"context"
	"net/url"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/httpx"
)

const (
	MusicBrainzURL = "https://musicbrainz.org/ws/2"

	// releases scoring at or below this are loose text matches, not the barcode
	musicBrainzMinScore = 80
)

// MusicBrainz needs no key. It only knows music releases and answers on the
// barcode itself, read from the leading token of the query; the site filters
// are ignored.
type MusicBrainz struct {
	baseURL string
	client  *httpx.Client
	logger  *zap.Logger
}

func NewMusicBrainz(s Settings) *MusicBrainz {
	opts := s.HTTP
	opts.Name = "MusicBrainz"
	opts.RPS = 1 // 1 req/s per MB guidelines

	return &MusicBrainz{
		baseURL: MusicBrainzURL,
		client:  httpx.New(opts, s.logger()),
		logger:  s.logger().With(zap.String("provider", "MusicBrainz")),
	}
}

func (p *MusicBrainz) Name() string { return "MusicBrainz" }

func (p *MusicBrainz) Search(ctx context.Context, query string) []string {
	code := leadingDigits(query)
	if code == "" {
		return nil
	}

	q := url.Values{
		"query": {"barcode:" + code},
		"fmt":   {"json"},
		"limit": {"5"},
	}

	var res struct {
		Releases []struct {
			Title        string `json:"title"`
			Score        int    `json:"score"`
			ArtistCredit []struct {
				Name       string `json:"name"`
				JoinPhrase string `json:"joinphrase"`
			} `json:"artist-credit"`
		} `json:"releases"`
	}
	if err := p.client.GetJSON(ctx, p.baseURL+"/release?"+q.Encode(), &res); err != nil {
		p.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	var names []string
	for _, r := range res.Releases {
		if r.Score <= musicBrainzMinScore || strings.TrimSpace(r.Title) == "" {
			continue
		}
		var artist strings.Builder
		for _, c := range r.ArtistCredit {
			artist.WriteString(c.Name)
			artist.WriteString(c.JoinPhrase)
		}
		if a := strings.TrimSpace(artist.String()); a != "" {
			names = append(names, a+" - "+r.Title)
			continue
		}
		names = append(names, r.Title)
	}
	return names
}

func leadingDigits(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	if strings.IndexFunc(fields[0], func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return ""
	}
	return fields[0]
}
