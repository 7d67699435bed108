package serp

import (
	"context"

	"go.uber.org/zap"

	"shelf-meta-srv/internal/httpx"
)

const DataForSEOURL = "https://api.dataforseo.com/v3/serp/google/organic/live/advanced"

var locationCodes = map[string]int{
	"fr": 2250,
	"be": 2056,
	"ca": 2124,
	"de": 2276,
	"gb": 2826,
	"us": 2840,
}

// DataForSEO expects the key as the base64 "login:password" pair of its
// Basic auth scheme.
type DataForSEO struct {
	endpoint string
	locale   Locale
	client   *httpx.Client
	logger   *zap.Logger
}

func NewDataForSEO(apiKey string, s Settings) *DataForSEO {
	headers := map[string]string{"Authorization": "Basic " + apiKey}
	return &DataForSEO{
		endpoint: DataForSEOURL,
		locale:   s.Locale,
		client:   s.client("DataForSEO", headers),
		logger:   s.logger().With(zap.String("provider", "DataForSEO")),
	}
}

func (p *DataForSEO) Name() string { return "DataForSEO" }

type dataForSEOTask struct {
	Keyword             string `json:"keyword"`
	LocationCode        int    `json:"location_code"`
	LanguageCode        string `json:"language_code"`
	Device              string `json:"device"`
	OS                  string `json:"os"`
	Depth               int    `json:"depth"`
	GroupOrganicResults bool   `json:"group_organic_results"`
	LoadAsyncAIOverview bool   `json:"load_async_ai_overview"`
}

func (p *DataForSEO) Search(ctx context.Context, query string) []string {
	location, ok := locationCodes[p.locale.country()]
	if !ok {
		location = locationCodes["fr"]
	}
	payload := []dataForSEOTask{{
		Keyword:             query,
		LocationCode:        location,
		LanguageCode:        p.locale.language(),
		Device:              "desktop",
		OS:                  "windows",
		Depth:               100,
		GroupOrganicResults: true,
	}}

	var res struct {
		StatusMessage string `json:"status_message"`
		Tasks         []struct {
			Result []struct {
				Items []organicResult `json:"items"`
			} `json:"result"`
		} `json:"tasks"`
	}
	if err := p.client.PostJSON(ctx, p.endpoint, payload, &res); err != nil {
		p.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if res.StatusMessage != "Ok." {
		p.logger.Warn("search rejected", zap.String("query", query), zap.String("status", res.StatusMessage))
		return nil
	}
	if len(res.Tasks) == 0 {
		return nil
	}

	var out []string
	for _, r := range res.Tasks[0].Result {
		out = append(out, titles(r.Items)...)
	}
	return out
}
