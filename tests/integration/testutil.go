package integration

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/coinview/backend/internal/models"
	"github.com/coinview/backend/internal/repositories"
	"github.com/coinview/backend/internal/services"
)

// stubMarketService pins prices so wallet arithmetic is deterministic. The
// live aggregation layer has its own unit tests.
type stubMarketService struct {
	quotes map[string]models.AssetQuote
}

func (s *stubMarketService) MarketMovers(ctx context.Context, limit int) []models.MarketMover {
	return []models.MarketMover{}
}

func (s *stubMarketService) PriceQuotes(ctx context.Context, assetID string) ([]models.AssetQuote, error) {
	if q, ok := s.quotes[assetID]; ok {
		return []models.AssetQuote{q}, nil
	}
	return []models.AssetQuote{}, nil
}

func (s *stubMarketService) SearchAssets(ctx context.Context, query string, limit int) ([]models.AssetQuote, error) {
	return []models.AssetQuote{}, nil
}

func (s *stubMarketService) AssetsByIDs(ctx context.Context, ids []string) (map[string]models.AssetQuote, error) {
	byID := make(map[string]models.AssetQuote)
	for _, id := range ids {
		if q, ok := s.quotes[id]; ok {
			byID[id] = q
		}
	}
	return byID, nil
}

func (s *stubMarketService) PriceForSource(ctx context.Context, assetID, source string) (*models.AssetQuote, float64, error) {
	q := s.quotes[assetID]
	return &q, q.PriceUSD, nil
}

func (s *stubMarketService) Dashboard(ctx context.Context, summary *models.WalletSummary) (*models.Dashboard, error) {
	return &models.Dashboard{
		Currency:         "usd",
		PortfolioBalance: summary.TotalValue,
		BalanceChangePct: summary.BalanceChangePct,
		Chart:            []models.ChartPoint{},
		MarketMovers:     []models.MarketMover{},
		Portfolio:        summary.Assets,
		LastUpdated:      time.Now().UTC(),
	}, nil
}

// stack is the wired service layer over the shared container database.
type stack struct {
	Users    services.UserService
	Wallet   services.WalletService
	Commands services.DeviceCommandService
	Market   *stubMarketService
}

func newStack(t *testing.T, quotes map[string]models.AssetQuote) *stack {
	t.Helper()
	log := zap.NewNop()
	database := suiteContainer.Database

	market := &stubMarketService{quotes: quotes}
	return &stack{
		Users:    services.NewUserService(repositories.NewUserRepository(database), time.Hour, log),
		Wallet:   services.NewWalletService(repositories.NewWalletRepository(database), market, log),
		Commands: services.NewDeviceCommandService(repositories.NewDeviceCommandRepository(database), log),
		Market:   market,
	}
}

const testPassword = "correct-horse-battery"

func newRegisterInput(email string) services.RegisterInput {
	return services.RegisterInput{
		Email:     email,
		Password:  testPassword,
		FirstName: "Test",
		LastName:  "User",
		BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func dispatchInput(device, command string) services.DispatchCommandInput {
	return services.DispatchCommandInput{TargetDevice: device, Command: command}
}

// truncateAll resets every table between tests.
func truncateAll(t *testing.T) {
	t.Helper()
	db := suiteContainer.Database
	for _, table := range []string{
		"wallet_transactions", "wallet_holdings", "wallets",
		"sessions", "device_commands", "users",
	} {
		if err := db.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY CASCADE").Error; err != nil {
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}
}
