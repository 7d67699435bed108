package serp

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/httpx"
)

const (
	SerpWowURL   = "https://api.serpwow.com/live"
	ValueSerpURL = "https://api.valueserp.com"
	ScaleSerpURL = "https://api.scaleserp.com"
)

// Traject serves SerpWow, Value Serp and Scale Serp, which share one API
// shape behind different hosts.
type Traject struct {
	name    string
	baseURL string
	apiKey  string
	locale  Locale
	client  *httpx.Client
	logger  *zap.Logger
}

func NewSerpWow(apiKey string, s Settings) *Traject {
	return newTraject("SerpWow", SerpWowURL, apiKey, s)
}

func NewValueSerp(apiKey string, s Settings) *Traject {
	return newTraject("Value Serp", ValueSerpURL, apiKey, s)
}

func NewScaleSerp(apiKey string, s Settings) *Traject {
	return newTraject("Scale Serp", ScaleSerpURL, apiKey, s)
}

func newTraject(name, baseURL, apiKey string, s Settings) *Traject {
	return &Traject{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		locale:  s.Locale,
		client:  s.client(name, nil),
		logger:  s.logger().With(zap.String("provider", name)),
	}
}

func (p *Traject) Name() string { return p.name }

type trajectAccount struct {
	RequestInfo struct {
		Success bool `json:"success"`
	} `json:"request_info"`
	AccountInfo struct {
		TopupCreditsRemaining *int `json:"topup_credits_remaining"`
	} `json:"account_info"`
}

func (p *Traject) AvailableQuota(ctx context.Context) bool {
	q := url.Values{"api_key": {p.apiKey}}

	var res trajectAccount
	if err := p.client.GetJSON(ctx, p.baseURL+"/account?"+q.Encode(), &res); err != nil {
		p.logger.Warn("quota check failed", zap.Error(err))
		return false
	}
	if !res.RequestInfo.Success {
		p.logger.Warn("quota check rejected")
		return false
	}
	if left := res.AccountInfo.TopupCreditsRemaining; left != nil && *left <= 0 {
		p.logger.Info("no remaining credits")
		return false
	}
	return true
}

type trajectSearch struct {
	RequestInfo struct {
		Success bool `json:"success"`
	} `json:"request_info"`
	OrganicResults []organicResult `json:"organic_results"`
}

func (p *Traject) Search(ctx context.Context, query string) []string {
	if !p.AvailableQuota(ctx) {
		return nil
	}

	q := url.Values{
		"api_key":             {p.apiKey},
		"q":                   {query},
		"gl":                  {p.locale.country()},
		"hl":                  {p.locale.language()},
		"google_domain":       {p.locale.googleDomain()},
		"include_ai_overview": {"false"},
		"engine":              {"google"},
		"ads_optimized":       {"false"},
		"output":              {"json"},
	}

	var res trajectSearch
	if err := p.client.GetJSON(ctx, p.baseURL+"/search?"+q.Encode(), &res); err != nil {
		p.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if !res.RequestInfo.Success {
		p.logger.Warn("search rejected", zap.String("query", query))
		return nil
	}
	return titles(res.OrganicResults)
}
