package providers

import (
	"bytes"
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

const coincapProvider = "coincap"

// CoinCapConfig holds the endpoints and optional API key for CoinCap.
type CoinCapConfig struct {
	GraphQLURL string
	RESTURL    string
	APIKey     string
}

// DefaultCoinCapConfig returns the public CoinCap endpoints.
func DefaultCoinCapConfig() CoinCapConfig {
	return CoinCapConfig{
		GraphQLURL: "https://graphql.coincap.io",
		RESTURL:    "https://rest.coincap.io/v3",
	}
}

// CoinCapClient talks to CoinCap over GraphQL and falls back to the REST
// API when the GraphQL call fails for any reason.
type CoinCapClient struct {
	config     CoinCapConfig
	httpClient *http.Client
	log        *zap.Logger
}

func NewCoinCapClient(config CoinCapConfig, log *zap.Logger) *CoinCapClient {
	if config.GraphQLURL == "" {
		config.GraphQLURL = DefaultCoinCapConfig().GraphQLURL
	}
	if config.RESTURL == "" {
		config.RESTURL = DefaultCoinCapConfig().RESTURL
	}
	return &CoinCapClient{
		config:     config,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		log:        log,
	}
}

// looseFloat decodes JSON numbers that arrive as strings, numbers or null.
// A missing or null field stays 0, matching upstream payloads where
// priceUsd may legitimately be absent.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = looseFloat(v)
	return nil
}

type looseInt int

func (i *looseInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*i = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Some revisions of the API send rank as a float.
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		v = int(fv)
	}
	*i = looseInt(v)
	return nil
}

type coincapAsset struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Symbol            string     `json:"symbol"`
	Rank              looseInt   `json:"rank"`
	PriceUsd          looseFloat `json:"priceUsd"`
	ChangePercent24Hr looseFloat `json:"changePercent24Hr"`
	VolumeUsd24Hr     looseFloat `json:"volumeUsd24Hr"`
}

func (a coincapAsset) toQuote() models.AssetQuote {
	return models.AssetQuote{
		ID:           a.ID,
		Name:         a.Name,
		Symbol:       a.Symbol,
		Rank:         int(a.Rank),
		PriceUSD:     float64(a.PriceUsd),
		ChangePct24h: float64(a.ChangePercent24Hr),
		VolumeUSD24h: float64(a.VolumeUsd24Hr),
		Source:       coincapProvider,
	}
}

type graphqlEdge struct {
	Node coincapAsset `json:"node"`
}

type graphqlConnection struct {
	Edges []graphqlEdge `json:"edges"`
}

func (c *CoinCapClient) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		h.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	return h
}

// executeGraphQL posts a query and returns the data object.
func (c *CoinCapClient) executeGraphQL(ctx context.Context, query string, variables map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.config.GraphQLURL, "/"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = c.headers()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.UpstreamWrap(coincapProvider, apperrors.UpstreamUnavailable, err, "graphql request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.Upstream(coincapProvider, apperrors.UpstreamRateLimited, "graphql status 429")
	}
	if resp.StatusCode >= 400 {
		return nil, apperrors.Upstream(coincapProvider, apperrors.UpstreamUnavailable, "graphql status %d", resp.StatusCode)
	}

	var payload struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.UpstreamWrap(coincapProvider, apperrors.UpstreamBadPayload, err, "graphql returned invalid JSON")
	}
	if len(payload.Errors) > 0 {
		return nil, apperrors.Upstream(coincapProvider, apperrors.UpstreamUnavailable, "graphql error: %s", payload.Errors[0].Message)
	}
	if payload.Data == nil {
		return nil, apperrors.Upstream(coincapProvider, apperrors.UpstreamBadPayload, "graphql response missing data field")
	}
	return payload.Data, nil
}

// getREST performs a GET against the REST API and decodes the "data" field
// into out.
func (c *CoinCapClient) getREST(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	u := strings.TrimRight(c.config.RESTURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header = c.headers()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.UpstreamWrap(coincapProvider, apperrors.UpstreamUnavailable, err, "rest request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.Upstream(coincapProvider, apperrors.UpstreamRateLimited, "rest status 429")
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case resp.StatusCode >= 400:
		return apperrors.Upstream(coincapProvider, apperrors.UpstreamUnavailable, "rest status %d", resp.StatusCode)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return apperrors.UpstreamWrap(coincapProvider, apperrors.UpstreamBadPayload, err, "rest returned invalid JSON")
	}
	if envelope.Data == nil {
		return apperrors.Upstream(coincapProvider, apperrors.UpstreamBadPayload, "rest response missing data field")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return apperrors.UpstreamWrap(coincapProvider, apperrors.UpstreamBadPayload, err, "rest payload did not match expected shape")
	}
	return nil
}

const assetFields = `
	id
	name
	symbol
	rank
	priceUsd
	changePercent24Hr
	volumeUsd24Hr`

// ListTopAssets returns up to limit assets ordered by market cap rank.
func (c *CoinCapClient) ListTopAssets(ctx context.Context, limit int) ([]models.AssetQuote, error) {
	query := fmt.Sprintf(`
	query ($limit: Int!) {
		assets(first: $limit, sort: rank, direction: ASC) {
			edges { node {%s
			} }
		}
	}`, assetFields)

	data, err := c.executeGraphQL(ctx, query, map[string]interface{}{"limit": limit})
	if err == nil {
		var payload struct {
			Assets graphqlConnection `json:"assets"`
		}
		if uerr := json.Unmarshal(data, &payload); uerr == nil {
			return edgesToQuotes(payload.Assets.Edges), nil
		}
	}
	c.log.Debug("coincap graphql top assets failed, falling back to REST", zap.Error(err))

	var assets []coincapAsset
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	if rerr := c.getREST(ctx, "assets", params, &assets); rerr != nil {
		return nil, rerr
	}
	return assetsToQuotes(assets), nil
}

// GetAsset returns the current quote for one asset id.
func (c *CoinCapClient) GetAsset(ctx context.Context, id string) (*models.AssetQuote, error) {
	query := fmt.Sprintf(`
	query ($id: ID!) {
		asset(id: $id) {%s
		}
	}`, assetFields)

	data, err := c.executeGraphQL(ctx, query, map[string]interface{}{"id": id})
	if err == nil {
		var payload struct {
			Asset *coincapAsset `json:"asset"`
		}
		if uerr := json.Unmarshal(data, &payload); uerr == nil {
			if payload.Asset == nil {
				return nil, fmt.Errorf("asset %q: %w", id, apperrors.ErrNotFound)
			}
			q := payload.Asset.toQuote()
			return &q, nil
		}
	}
	c.log.Debug("coincap graphql asset lookup failed, falling back to REST",
		zap.String("asset_id", id), zap.Error(err))

	var asset coincapAsset
	if rerr := c.getREST(ctx, "assets/"+url.PathEscape(id), nil, &asset); rerr != nil {
		if errors.Is(rerr, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("asset %q: %w", id, apperrors.ErrNotFound)
		}
		return nil, rerr
	}
	if asset.ID == "" {
		return nil, fmt.Errorf("asset %q: %w", id, apperrors.ErrNotFound)
	}
	q := asset.toQuote()
	return &q, nil
}

// GetAssetsByIDs returns quotes for the given id set keyed by asset id.
// Unknown ids are simply absent from the result.
func (c *CoinCapClient) GetAssetsByIDs(ctx context.Context, ids []string) (map[string]models.AssetQuote, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[string]models.AssetQuote{}, nil
	}

	query := fmt.Sprintf(`
	query ($ids: [ID!]!, $limit: Int!) {
		assets(first: $limit, where: { id_in: $ids }, sort: rank) {
			edges { node {%s
			} }
		}
	}`, assetFields)

	data, err := c.executeGraphQL(ctx, query, map[string]interface{}{"ids": unique, "limit": len(unique)})
	if err == nil {
		var payload struct {
			Assets graphqlConnection `json:"assets"`
		}
		if uerr := json.Unmarshal(data, &payload); uerr == nil {
			return quotesByID(edgesToQuotes(payload.Assets.Edges)), nil
		}
	}
	c.log.Debug("coincap graphql batch lookup failed, falling back to REST", zap.Error(err))

	var assets []coincapAsset
	params := url.Values{"ids": {strings.Join(unique, ",")}}
	if rerr := c.getREST(ctx, "assets", params, &assets); rerr != nil {
		return nil, rerr
	}
	return quotesByID(assetsToQuotes(assets)), nil
}

// Search returns rank-ordered assets whose name or symbol contains query.
// The catalog is filtered client side; CoinCap has no fuzzy search endpoint.
func (c *CoinCapClient) Search(ctx context.Context, query string, limit int) ([]models.AssetQuote, error) {
	if limit <= 0 {
		limit = 50
	}
	assets, err := c.ListTopAssets(ctx, limit)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return assets, nil
	}
	needle := strings.ToLower(query)
	matched := make([]models.AssetQuote, 0, len(assets))
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Name), needle) || strings.Contains(strings.ToLower(a.Symbol), needle) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

type coincapHistoryPoint struct {
	PriceUsd  looseFloat `json:"priceUsd"`
	Timestamp looseFloat `json:"timestamp"`
	Time      looseFloat `json:"time"`
}

func (p coincapHistoryPoint) toChartPoint() models.ChartPoint {
	ts := int64(p.Timestamp)
	if ts == 0 {
		ts = int64(p.Time)
	}
	return models.ChartPoint{Timestamp: ts, Price: float64(p.PriceUsd)}
}

// History returns the daily price series for the last days days.
func (c *CoinCapClient) History(ctx context.Context, id string, days int) ([]models.ChartPoint, error) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -days)

	query := `
	query ($id: ID!, $start: Date!, $end: Date!, $interval: Interval!) {
		assetHistories(assetId: $id, start: $start, end: $end, interval: $interval) {
			priceUsd
			timestamp
		}
	}`
	variables := map[string]interface{}{
		"id":       id,
		"start":    start.Format("2006-01-02"),
		"end":      now.Format("2006-01-02"),
		"interval": "d1",
	}

	data, err := c.executeGraphQL(ctx, query, variables)
	if err == nil {
		var payload struct {
			AssetHistories []coincapHistoryPoint `json:"assetHistories"`
		}
		if uerr := json.Unmarshal(data, &payload); uerr == nil {
			return historyToChart(payload.AssetHistories), nil
		}
	}
	c.log.Debug("coincap graphql history failed, falling back to REST",
		zap.String("asset_id", id), zap.Error(err))

	var points []coincapHistoryPoint
	params := url.Values{
		"interval": {"d1"},
		"start":    {strconv.FormatInt(start.UnixMilli(), 10)},
		"end":      {strconv.FormatInt(now.UnixMilli(), 10)},
	}
	if rerr := c.getREST(ctx, "assets/"+url.PathEscape(id)+"/history", params, &points); rerr != nil {
		return nil, rerr
	}
	return historyToChart(points), nil
}

func edgesToQuotes(edges []graphqlEdge) []models.AssetQuote {
	quotes := make([]models.AssetQuote, 0, len(edges))
	for _, e := range edges {
		if e.Node.ID == "" {
			continue
		}
		quotes = append(quotes, e.Node.toQuote())
	}
	return quotes
}

func assetsToQuotes(assets []coincapAsset) []models.AssetQuote {
	quotes := make([]models.AssetQuote, 0, len(assets))
	for _, a := range assets {
		if a.ID == "" {
			continue
		}
		quotes = append(quotes, a.toQuote())
	}
	return quotes
}

func quotesByID(quotes []models.AssetQuote) map[string]models.AssetQuote {
	byID := make(map[string]models.AssetQuote, len(quotes))
	for _, q := range quotes {
		byID[q.ID] = q
	}
	return byID
}

func historyToChart(points []coincapHistoryPoint) []models.ChartPoint {
	chart := make([]models.ChartPoint, 0, len(points))
	for _, p := range points {
		chart = append(chart, p.toChartPoint())
	}
	return chart
}
