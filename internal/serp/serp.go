// Package serp holds the web search providers used to name a barcode. Every
// provider swallows its own failures: Search returns nil and logs instead of
// returning an error, so the caller can move on to the next provider.
package serp

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/httpx"
)

// Provider searches the web and returns the result titles, nil on failure
// or when nothing was found.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) []string
}

// QuotaChecker is implemented by providers exposing an account endpoint.
// It fails closed: any error reports no quota.
type QuotaChecker interface {
	AvailableQuota(ctx context.Context) bool
}

// Locale drives the gl/hl/google_domain parameters sent to every provider.
type Locale struct {
	Country  string
	Language string
}

func (l Locale) country() string {
	if l.Country == "" {
		return "fr"
	}
	return strings.ToLower(l.Country)
}

func (l Locale) language() string {
	if l.Language == "" {
		return "fr"
	}
	return strings.ToLower(l.Language)
}

func (l Locale) googleDomain() string {
	return "google." + l.country()
}

// Settings are shared by every provider built by this package.
type Settings struct {
	Locale Locale
	// HTTP is the client template; Name and Headers are set per provider.
	HTTP   httpx.Options
	Logger *zap.Logger
}

func (s Settings) client(name string, headers map[string]string) *httpx.Client {
	opts := s.HTTP
	opts.Name = name
	opts.Headers = headers
	return httpx.New(opts, s.logger())
}

func (s Settings) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Keys holds one API key per provider. Providers without a key are skipped.
type Keys struct {
	SerpWow    string
	ValueSerp  string
	ScaleSerp  string
	SerpAPI    string
	AvesAPI    string
	DataForSEO string

	// MusicBrainz is keyless; it joins the end of the chain when set.
	MusicBrainz bool
}

// Chain builds the configured providers in their fixed priority order,
// cheapest quota first.
func Chain(keys Keys, s Settings) []Provider {
	var chain []Provider
	if keys.SerpWow != "" {
		chain = append(chain, NewSerpWow(keys.SerpWow, s))
	}
	if keys.ValueSerp != "" {
		chain = append(chain, NewValueSerp(keys.ValueSerp, s))
	}
	if keys.ScaleSerp != "" {
		chain = append(chain, NewScaleSerp(keys.ScaleSerp, s))
	}
	if keys.SerpAPI != "" {
		chain = append(chain, NewSerpAPI(keys.SerpAPI, s))
	}
	if keys.AvesAPI != "" {
		chain = append(chain, NewAvesAPI(keys.AvesAPI, s))
	}
	if keys.DataForSEO != "" {
		chain = append(chain, NewDataForSEO(keys.DataForSEO, s))
	}
	if keys.MusicBrainz {
		chain = append(chain, NewMusicBrainz(s))
	}
	return chain
}

type organicResult struct {
	Title string `json:"title"`
}

func titles(results []organicResult) []string {
	var out []string
	for _, r := range results {
		if t := strings.TrimSpace(r.Title); t != "" {
			out = append(out, t)
		}
	}
	return out
}
