package models

import "time"

// AssetQuote is a point-in-time snapshot of one asset from one provider.
// Value type: never mutated after construction, only replaced.
type AssetQuote struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	PriceUSD     float64 `json:"price_usd"`
	ChangePct24h float64 `json:"change_pct_24h"`
	VolumeUSD24h float64 `json:"volume_24h_usd"`
	Rank         int     `json:"rank"`
	ImageURL     string  `json:"image_url,omitempty"`
	Source       string  `json:"source"`
}

// SearchCandidate is one row from a provider's fuzzy search endpoint.
type SearchCandidate struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
}

// CatalogEntry is one row of a provider's full coin catalog.
type CatalogEntry struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// ChartPoint is one sample of a historical price series.
type ChartPoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// MarketMover is one row of the dashboard's top-movers list.
type MarketMover struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	Pair         string  `json:"pair"`
	CurrentPrice float64 `json:"current_price"`
	Change24hPct float64 `json:"change_24h_pct"`
	Volume24h    float64 `json:"volume_24h"`
	ImageURL     string  `json:"image_url,omitempty"`
}

// PortfolioAsset is one valued wallet position.
type PortfolioAsset struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	CurrentPrice float64 `json:"current_price"`
	Value        float64 `json:"value"`
	Change24hPct float64 `json:"change_24h_pct"`
	ImageURL     string  `json:"image_url,omitempty"`
}

// WalletSummary is the valued state of a wallet at one instant.
type WalletSummary struct {
	Currency         string           `json:"currency"`
	CashBalance      float64          `json:"cash_balance"`
	TotalValue       float64          `json:"total_value"`
	BalanceChangePct float64          `json:"balance_change_pct"`
	Assets           []PortfolioAsset `json:"assets"`
	LastUpdated      time.Time        `json:"last_updated"`
}

// Dashboard is the composed dashboard payload.
type Dashboard struct {
	Currency         string           `json:"currency"`
	PortfolioBalance float64          `json:"portfolio_balance"`
	BalanceChangePct float64          `json:"balance_change_pct"`
	Chart            []ChartPoint     `json:"chart"`
	MarketMovers     []MarketMover    `json:"market_movers"`
	Portfolio        []PortfolioAsset `json:"portfolio"`
	LastUpdated      time.Time        `json:"last_updated"`
}
