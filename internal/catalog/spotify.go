package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"shelf-meta-srv/internal/models"
	"shelf-meta-srv/internal/similarity"
)

const spotifySearchLimit = 10

var copyrightPrefix = regexp.MustCompile(`^\s*(\(P\)|℗|\(C\)|©)?\s*(\d{4})?\s*`)

// Spotify looks albums up through the Spotify Web API with the client
// credentials flow.
type Spotify struct {
	client  *spotify.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewSpotify(ctx context.Context, clientID, clientSecret string, logger *zap.Logger) *Spotify {
	if logger == nil {
		logger = zap.NewNop()
	}
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return &Spotify{
		client:  spotify.New(config.Client(ctx)),
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		logger:  logger.With(zap.String("adapter", "music")),
	}
}

func (s *Spotify) Type() models.Type { return models.TypeMusic }

func (s *Spotify) Fetch(ctx context.Context, q Query) (*models.Record, error) {
	if q.Barcode != "" {
		found, err := s.search(ctx, "upc:"+q.Barcode)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return s.album(ctx, found[0].ID)
		}
	}
	if q.Name == "" {
		return nil, nil
	}

	candidates, err := s.search(ctx, q.Name)
	if err != nil {
		return nil, err
	}
	best, ok := similarity.Closest(q.Name, candidates, func(a spotify.SimpleAlbum) string { return a.Name })
	if !ok {
		return nil, nil
	}
	return s.album(ctx, best.ID)
}

func (s *Spotify) album(ctx context.Context, id spotify.ID) (*models.Record, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	album, err := s.client.GetAlbum(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get album: %w", err)
	}

	rec := spotifyRecord(album)
	s.artistImages(ctx, album.Artists, rec.Authors)
	return rec, nil
}

func (s *Spotify) search(ctx context.Context, query string) ([]spotify.SimpleAlbum, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := s.client.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(spotifySearchLimit))
	if err != nil {
		return nil, fmt.Errorf("search albums: %w", err)
	}
	if res.Albums == nil {
		return nil, nil
	}
	return res.Albums.Albums, nil
}

// artistImages fills author portraits in place, best effort.
func (s *Spotify) artistImages(ctx context.Context, artists []spotify.SimpleArtist, authors []models.Person) {
	if len(artists) == 0 || len(artists) != len(authors) {
		return
	}
	ids := make([]spotify.ID, len(artists))
	for i, a := range artists {
		ids[i] = a.ID
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	full, err := s.client.GetArtists(ctx, ids...)
	if err != nil {
		s.logger.Debug("artist images unavailable", zap.Error(err))
		return
	}
	for i, a := range full {
		if i < len(authors) && a != nil && len(a.Images) > 0 {
			authors[i].ImageURL = a.Images[0].URL
		}
	}
}

func spotifyRecord(a *spotify.FullAlbum) *models.Record {
	rec := &models.Record{
		Title:       a.Name,
		TrackCount:  models.IntPtr(len(a.Tracks.Tracks)),
		ReleaseDate: a.ReleaseDate,
	}
	if len(a.Images) > 0 {
		rec.CoverImage = a.Images[0].URL
	}
	for _, artist := range a.Artists {
		rec.Authors = append(rec.Authors, models.Person{Name: artist.Name})
	}
	if label := phonogramOwner(a.Copyrights); label != "" {
		rec.Publishers = []models.Person{{Name: label}}
	}

	total := 0
	for _, t := range a.Tracks.Tracks {
		seconds := int(t.Duration) / 1000
		total += seconds
		if t.PreviewURL == "" {
			continue
		}
		rec.Attachments = append(rec.Attachments, models.Attachment{
			Kind:     models.AttachmentAudio,
			Title:    t.Name,
			Duration: models.IntPtr(seconds),
			URI:      t.PreviewURL,
		})
	}
	rec.Duration = models.IntPtr(total)
	return rec
}

// phonogramOwner is the label named by the (P) copyright, falling back to
// the first copyright line.
func phonogramOwner(copyrights []spotify.Copyright) string {
	text := ""
	for _, c := range copyrights {
		if strings.EqualFold(c.Type, "P") {
			text = c.Text
			break
		}
	}
	if text == "" && len(copyrights) > 0 {
		text = copyrights[0].Text
	}
	return strings.TrimSpace(copyrightPrefix.ReplaceAllString(text, ""))
}
