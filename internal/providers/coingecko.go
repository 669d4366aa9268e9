package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
)

const coingeckoProvider = "coingecko"

// CoinGeckoConfig holds the base URL and optional demo API key.
type CoinGeckoConfig struct {
	BaseURL    string
	DemoAPIKey string
}

// DefaultCoinGeckoConfig returns the public CoinGecko v3 endpoint.
func DefaultCoinGeckoConfig() CoinGeckoConfig {
	return CoinGeckoConfig{BaseURL: "https://api.coingecko.com/api/v3"}
}

// CoinGeckoClient is a thin client for the CoinGecko REST API.
type CoinGeckoClient struct {
	config     CoinGeckoConfig
	httpClient *http.Client
	log        *zap.Logger
}

func NewCoinGeckoClient(config CoinGeckoConfig, log *zap.Logger) *CoinGeckoClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultCoinGeckoConfig().BaseURL
	}
	return &CoinGeckoClient{
		config:     config,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		log:        log,
	}
}

func (c *CoinGeckoClient) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	u := strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.config.DemoAPIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.config.DemoAPIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.UpstreamWrap(coingeckoProvider, apperrors.UpstreamUnavailable, err, "request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.Upstream(coingeckoProvider, apperrors.UpstreamRateLimited, "rate limit exceeded")
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case resp.StatusCode >= 400:
		return apperrors.Upstream(coingeckoProvider, apperrors.UpstreamUnavailable, "status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.UpstreamWrap(coingeckoProvider, apperrors.UpstreamBadPayload, err, "invalid JSON payload")
	}
	return nil
}

type coingeckoMarketRow struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	Image                    string  `json:"image"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCapRank            int     `json:"market_cap_rank"`
	TotalVolume              float64 `json:"total_volume"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
}

// Markets returns market snapshot rows for the given currency. Exactly one
// of ids/limit applies: a non-empty id list pins the result set, otherwise
// the top `limit` coins by market cap are returned in native order.
func (c *CoinGeckoClient) Markets(ctx context.Context, currency string, ids []string, limit int) ([]models.AssetQuote, error) {
	params := url.Values{
		"vs_currency": {strings.ToLower(currency)},
		"order":       {"market_cap_desc"},
		"page":        {"1"},
	}
	if len(ids) > 0 {
		params.Set("ids", strings.Join(ids, ","))
		params.Set("per_page", strconv.Itoa(len(ids)))
	} else {
		if limit <= 0 {
			limit = 10
		}
		params.Set("per_page", strconv.Itoa(limit))
	}

	var rows []coingeckoMarketRow
	if err := c.get(ctx, "coins/markets", params, &rows); err != nil {
		return nil, err
	}

	quotes := make([]models.AssetQuote, 0, len(rows))
	for _, row := range rows {
		if row.ID == "" {
			continue
		}
		quotes = append(quotes, models.AssetQuote{
			ID:           row.ID,
			Name:         row.Name,
			Symbol:       row.Symbol,
			PriceUSD:     row.CurrentPrice,
			ChangePct24h: row.PriceChangePercentage24h,
			VolumeUSD24h: row.TotalVolume,
			Rank:         row.MarketCapRank,
			ImageURL:     row.Image,
			Source:       coingeckoProvider,
		})
	}
	return quotes, nil
}

// CoinDetail returns the current USD quote for one coin id.
func (c *CoinGeckoClient) CoinDetail(ctx context.Context, id string) (*models.AssetQuote, error) {
	params := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"market_data":    {"true"},
		"community_data": {"false"},
		"developer_data": {"false"},
		"sparkline":      {"false"},
	}

	var payload struct {
		ID            string `json:"id"`
		Symbol        string `json:"symbol"`
		Name          string `json:"name"`
		MarketCapRank int    `json:"market_cap_rank"`
		Image         struct {
			Small string `json:"small"`
		} `json:"image"`
		MarketData struct {
			CurrentPrice             map[string]float64 `json:"current_price"`
			TotalVolume              map[string]float64 `json:"total_volume"`
			PriceChangePercentage24h float64            `json:"price_change_percentage_24h"`
		} `json:"market_data"`
	}
	if err := c.get(ctx, "coins/"+url.PathEscape(id), params, &payload); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("coin %q: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	if payload.ID == "" {
		return nil, apperrors.Upstream(coingeckoProvider, apperrors.UpstreamBadPayload, "coin detail missing id")
	}

	return &models.AssetQuote{
		ID:           payload.ID,
		Name:         payload.Name,
		Symbol:       payload.Symbol,
		PriceUSD:     payload.MarketData.CurrentPrice["usd"],
		ChangePct24h: payload.MarketData.PriceChangePercentage24h,
		VolumeUSD24h: payload.MarketData.TotalVolume["usd"],
		Rank:         payload.MarketCapRank,
		ImageURL:     payload.Image.Small,
		Source:       coingeckoProvider,
	}, nil
}

// Search runs the fuzzy search endpoint and returns coin candidates.
func (c *CoinGeckoClient) Search(ctx context.Context, query string) ([]models.SearchCandidate, error) {
	var payload struct {
		Coins []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			Symbol        string `json:"symbol"`
			MarketCapRank int    `json:"market_cap_rank"`
		} `json:"coins"`
	}
	if err := c.get(ctx, "search", url.Values{"query": {query}}, &payload); err != nil {
		return nil, err
	}

	candidates := make([]models.SearchCandidate, 0, len(payload.Coins))
	for _, coin := range payload.Coins {
		if coin.ID == "" {
			continue
		}
		candidates = append(candidates, models.SearchCandidate{
			ID:            coin.ID,
			Name:          coin.Name,
			Symbol:        coin.Symbol,
			MarketCapRank: coin.MarketCapRank,
		})
	}
	return candidates, nil
}

// CoinCatalog returns the full coin list (several thousand entries).
func (c *CoinGeckoClient) CoinCatalog(ctx context.Context) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry
	if err := c.get(ctx, "coins/list", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
