package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrPersist marks a result that was resolved upstream but could not be saved.
	ErrPersist = errors.New("persist metadata")
	// ErrNotRecognized is returned when no provider could name a barcode.
	ErrNotRecognized = errors.New("barcode not recognized")
	ErrUnknownType   = errors.New("unknown content type")
)

type Type string

const (
	TypeBooks      Type = "books"
	TypeMovies     Type = "movies"
	TypeGames      Type = "games"
	TypeBoardGames Type = "boardgames"
	TypeMusic      Type = "music"
)

var Types = []Type{TypeBooks, TypeMovies, TypeGames, TypeBoardGames, TypeMusic}

// ParseType accepts the canonical names plus the legacy plural "musics".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "books", "book":
		return TypeBooks, nil
	case "movies", "movie":
		return TypeMovies, nil
	case "games", "game":
		return TypeGames, nil
	case "boardgames", "boardgame":
		return TypeBoardGames, nil
	case "music", "musics":
		return TypeMusic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentBook  AttachmentKind = "book"
)

type Attachment struct {
	Kind     AttachmentKind `json:"type"`
	Title    string         `json:"title,omitempty"`
	Duration *int           `json:"duration,omitempty"`
	URI      string         `json:"url"`
}

// Person is an author or publisher, shared across records by name.
type Person struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Record is the normalized catalog result owned by one inventory item.
type Record struct {
	Title       string       `json:"title,omitempty"`
	Authors     []Person     `json:"authors,omitempty"`
	Publishers  []Person     `json:"publishers,omitempty"`
	Duration    *int         `json:"duration,omitempty"` // seconds
	PageCount   *int         `json:"pageCount,omitempty"`
	TrackCount  *int         `json:"tracksCount,omitempty"`
	Description string       `json:"description,omitempty"`
	ReleaseDate string       `json:"releaseDate,omitempty"`
	CoverImage  string       `json:"imageUrl,omitempty"`
	Attachments []Attachment `json:"attachments"`
	SourceType  Type         `json:"sourceType,omitempty"`
	SourceQuery string       `json:"sourceQuery,omitempty"`
	LastFetched time.Time    `json:"lastFetched,omitempty"`
}

// UniqueAttachments drops attachments whose URI was already seen, keeping the first.
func (r *Record) UniqueAttachments() []Attachment {
	seen := make(map[string]bool, len(r.Attachments))
	out := make([]Attachment, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		if a.URI == "" || seen[a.URI] {
			continue
		}
		seen[a.URI] = true
		out = append(out, a)
	}
	return out
}

type BarcodeEntry struct {
	Barcode   string    `json:"barcode"`
	Provider  string    `json:"provider"`
	RawNames  []string  `json:"names"`
	CreatedAt time.Time `json:"createdAt"`
}

// IntPtr returns nil for zero so absent upstream numbers stay absent.
func IntPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
