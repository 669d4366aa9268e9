package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/coinview/backend/internal/models"
)

// PrimaryMarketProvider is the CoinCap-shaped provider the aggregation
// layer treats as authoritative.
type PrimaryMarketProvider interface {
	ListTopAssets(ctx context.Context, limit int) ([]models.AssetQuote, error)
	GetAsset(ctx context.Context, id string) (*models.AssetQuote, error)
	GetAssetsByIDs(ctx context.Context, ids []string) (map[string]models.AssetQuote, error)
	Search(ctx context.Context, query string, limit int) ([]models.AssetQuote, error)
	History(ctx context.Context, id string, days int) ([]models.ChartPoint, error)
}

// SecondaryMarketProvider is the CoinGecko-shaped provider used for market
// snapshots and second-opinion quotes. Its failures degrade silently
// wherever a primary result exists.
type SecondaryMarketProvider interface {
	Markets(ctx context.Context, currency string, ids []string, limit int) ([]models.AssetQuote, error)
	CoinDetail(ctx context.Context, id string) (*models.AssetQuote, error)
	Search(ctx context.Context, query string) ([]models.SearchCandidate, error)
	CoinCatalog(ctx context.Context) ([]models.CatalogEntry, error)
}

// IdentifierResolver maps a (symbol, id hint, display name) triple to the
// secondary provider's coin id. Returns apperrors.ErrNotFound when no
// candidate clears the confidence floor.
type IdentifierResolver interface {
	Resolve(ctx context.Context, symbol, idHint, name string) (string, error)
}

// MarketService aggregates both providers into dashboard-ready views.
type MarketService interface {
	MarketMovers(ctx context.Context, limit int) []models.MarketMover
	PriceQuotes(ctx context.Context, assetID string) ([]models.AssetQuote, error)
	SearchAssets(ctx context.Context, query string, limit int) ([]models.AssetQuote, error)
	AssetsByIDs(ctx context.Context, ids []string) (map[string]models.AssetQuote, error)
	PriceForSource(ctx context.Context, assetID, source string) (*models.AssetQuote, float64, error)
	Dashboard(ctx context.Context, summary *models.WalletSummary) (*models.Dashboard, error)
}

// WalletService is the ledger over a user's simulated wallet.
type WalletService interface {
	GetOrCreateWallet(ctx context.Context, userID uint) (*models.Wallet, error)
	Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (*models.WalletSummary, error)
	Buy(ctx context.Context, userID uint, assetID string, amountUSD decimal.Decimal, source string) (*models.TradeExecution, error)
	Sell(ctx context.Context, userID uint, assetID string, quantity, amountUSD decimal.Decimal, source string) (*models.TradeExecution, error)
	PreviewSale(ctx context.Context, userID uint, assetID string, quantity, amountUSD decimal.Decimal, source string) (*models.SellPreview, error)
	Summary(ctx context.Context, userID uint) (*models.WalletSummary, error)
	ListTransactions(ctx context.Context, userID uint, limit int) ([]models.WalletTransaction, error)
}

// UserService manages accounts and session tokens.
type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	GetByToken(ctx context.Context, token string) (*models.User, error)
	Update(ctx context.Context, userID uint, input UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, userID uint) error
}

// DeviceCommandService is the dispatch/poll/ack queue for paired devices.
type DeviceCommandService interface {
	Dispatch(ctx context.Context, userID uint, input DispatchCommandInput) (*models.DeviceCommand, error)
	Poll(ctx context.Context, userID uint, targetDevice string, targetDeviceID *string, limit int) ([]models.DeviceCommand, error)
	Acknowledge(ctx context.Context, userID uint, commandID uint, status string) (*models.DeviceCommand, error)
}
