package serp

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/httpx"
)

const SerpAPIURL = "https://serpapi.com"

type SerpAPI struct {
	baseURL string
	apiKey  string
	locale  Locale
	client  *httpx.Client
	logger  *zap.Logger
}

func NewSerpAPI(apiKey string, s Settings) *SerpAPI {
	return &SerpAPI{
		baseURL: SerpAPIURL,
		apiKey:  apiKey,
		locale:  s.Locale,
		client:  s.client("Serp API", nil),
		logger:  s.logger().With(zap.String("provider", "Serp API")),
	}
}

func (p *SerpAPI) Name() string { return "Serp API" }

func (p *SerpAPI) AvailableQuota(ctx context.Context) bool {
	q := url.Values{"api_key": {p.apiKey}}

	var res struct {
		PlanSearchesLeft *int `json:"plan_searches_left"`
	}
	if err := p.client.GetJSON(ctx, p.baseURL+"/account?"+q.Encode(), &res); err != nil {
		p.logger.Warn("quota check failed", zap.Error(err))
		return false
	}
	if left := res.PlanSearchesLeft; left != nil && *left <= 0 {
		p.logger.Info("no remaining searches")
		return false
	}
	return true
}

func (p *SerpAPI) Search(ctx context.Context, query string) []string {
	if !p.AvailableQuota(ctx) {
		return nil
	}

	q := url.Values{
		"api_key":       {p.apiKey},
		"q":             {query},
		"gl":            {p.locale.country()},
		"hl":            {p.locale.language()},
		"google_domain": {p.locale.googleDomain()},
		"engine":        {"google"},
		"output":        {"json"},
	}

	var res struct {
		Error          string          `json:"error"`
		OrganicResults []organicResult `json:"organic_results"`
	}
	if err := p.client.GetJSON(ctx, p.baseURL+"/search.json?"+q.Encode(), &res); err != nil {
		p.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if res.Error != "" {
		p.logger.Warn("search rejected", zap.String("query", query), zap.String("error", res.Error))
		return nil
	}
	return titles(res.OrganicResults)
}
