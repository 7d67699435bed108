package serp

import (
	"context"
	"encoding/json"
	"net/url"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/httpx"
)

const AvesAPIURL = "https://api.avesapi.com"

// AvesAPI has no account endpoint; a depleted key shows up as an
// unsuccessful request.
type AvesAPI struct {
	baseURL string
	apiKey  string
	locale  Locale
	client  *httpx.Client
	logger  *zap.Logger
}

func NewAvesAPI(apiKey string, s Settings) *AvesAPI {
	return &AvesAPI{
		baseURL: AvesAPIURL,
		apiKey:  apiKey,
		locale:  s.Locale,
		client:  s.client("AvesAPI", nil),
		logger:  s.logger().With(zap.String("provider", "AvesAPI")),
	}
}

func (p *AvesAPI) Name() string { return "AvesAPI" }

func (p *AvesAPI) Search(ctx context.Context, query string) []string {
	q := url.Values{
		"apikey":        {p.apiKey},
		"gl":            {p.locale.country()},
		"hl":            {p.locale.language()},
		"num":           {"10"},
		"type":          {"web"},
		"query":         {query},
		"output":        {"json"},
		"device":        {"desktop"},
		"google_domain": {p.locale.googleDomain()},
	}

	var res struct {
		Error   json.RawMessage `json:"error"`
		Request struct {
			Success bool `json:"success"`
		} `json:"request"`
		Result struct {
			OrganicResults []organicResult `json:"organic_results"`
		} `json:"result"`
	}
	if err := p.client.GetJSON(ctx, p.baseURL+"/search?"+q.Encode(), &res); err != nil {
		p.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if hasError(res.Error) || !res.Request.Success {
		p.logger.Warn("search rejected", zap.String("query", query))
		return nil
	}
	return titles(res.Result.OrganicResults)
}

// hasError treats absent, null, false and empty values as no error.
func hasError(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", "false", `""`, "{}":
		return false
	}
	return true
}
