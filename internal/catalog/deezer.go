package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/httpx"
	"shelf-meta-srv/internal/models"
	"shelf-meta-srv/internal/similarity"
)

const DeezerURL = "https://api.deezer.com"

// Deezer looks albums up on the public Deezer API, by UPC first when a
// barcode is known.
type Deezer struct {
	apiURL string
	client *httpx.Client
	logger *zap.Logger
}

func NewDeezer(opts httpx.Options, logger *zap.Logger) *Deezer {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Name = "deezer"
	return &Deezer{
		apiURL: DeezerURL,
		client: httpx.New(opts, logger),
		logger: logger.With(zap.String("adapter", "music")),
	}
}

func (d *Deezer) Type() models.Type { return models.TypeMusic }

// deezerError is set on HTTP 200 answers for unknown ids and quota errors.
type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type deezerAlbum struct {
	Error        *deezerError `json:"error"`
	ID           int          `json:"id"`
	Title        string       `json:"title"`
	UPC          string       `json:"upc"`
	Label        string       `json:"label"`
	Duration     int          `json:"duration"`
	NbTracks     int          `json:"nb_tracks"`
	ReleaseDate  string       `json:"release_date"`
	CoverBig     string       `json:"cover_big"`
	Contributors []struct {
		Name      string `json:"name"`
		PictureXL string `json:"picture_xl"`
	} `json:"contributors"`
	Tracks struct {
		Data []struct {
			Title    string `json:"title"`
			Duration int    `json:"duration"`
			Preview  string `json:"preview"`
		} `json:"data"`
	} `json:"tracks"`
}

func (d *Deezer) Fetch(ctx context.Context, q Query) (*models.Record, error) {
	if q.Barcode != "" {
		album, err := d.album(ctx, "upc:"+q.Barcode)
		if err == nil {
			return deezerRecord(album), nil
		}
		d.logger.Debug("no album for upc", zap.String("barcode", q.Barcode), zap.Error(err))
	}
	if q.Name == "" {
		return nil, nil
	}

	var search struct {
		Error *deezerError `json:"error"`
		Data  []struct {
			ID    int    `json:"id"`
			Title string `json:"title"`
		} `json:"data"`
	}
	if err := d.client.GetJSON(ctx, d.apiURL+"/search/album?"+url.Values{"q": {q.Name}}.Encode(), &search); err != nil {
		return nil, fmt.Errorf("search albums: %w", err)
	}
	if search.Error != nil {
		return nil, fmt.Errorf("search albums: %s", search.Error.Message)
	}

	titles := make([]string, len(search.Data))
	for i, a := range search.Data {
		titles[i] = a.Title
	}
	idx := similarity.BestMatch(q.Name, titles)
	if idx < 0 {
		return nil, nil
	}

	album, err := d.album(ctx, strconv.Itoa(search.Data[idx].ID))
	if err != nil {
		return nil, err
	}
	return deezerRecord(album), nil
}

func (d *Deezer) album(ctx context.Context, id string) (*deezerAlbum, error) {
	var album deezerAlbum
	if err := d.client.GetJSON(ctx, d.apiURL+"/album/"+id, &album); err != nil {
		return nil, fmt.Errorf("album %s: %w", id, err)
	}
	if album.Error != nil {
		return nil, fmt.Errorf("album %s: %s", id, album.Error.Message)
	}
	if album.Title == "" {
		return nil, errNoDetails
	}
	return &album, nil
}

func deezerRecord(a *deezerAlbum) *models.Record {
	rec := &models.Record{
		Title:       a.Title,
		Duration:    models.IntPtr(a.Duration),
		TrackCount:  models.IntPtr(a.NbTracks),
		ReleaseDate: a.ReleaseDate,
		CoverImage:  a.CoverBig,
	}
	for _, c := range a.Contributors {
		rec.Authors = append(rec.Authors, models.Person{Name: c.Name, ImageURL: c.PictureXL})
	}
	if a.Label != "" {
		rec.Publishers = []models.Person{{Name: a.Label}}
	}
	for _, t := range a.Tracks.Data {
		rec.Attachments = append(rec.Attachments, models.Attachment{
			Kind:     models.AttachmentAudio,
			Title:    t.Title,
			Duration: models.IntPtr(t.Duration),
			URI:      t.Preview,
		})
	}
	return rec
}
