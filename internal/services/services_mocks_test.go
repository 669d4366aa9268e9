package services

import (
	"context"
	"fmt"
	"time"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
)

func errNotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, apperrors.ErrNotFound)...)
}

// ---- Mocks for providers, repositories and services used in unit tests ----

type mockPrimaryProvider struct {
	assets  []models.AssetQuote
	history []models.ChartPoint

	listErr    error
	getErr     error
	historyErr error

	listCalls int
}

func (m *mockPrimaryProvider) ListTopAssets(ctx context.Context, limit int) ([]models.AssetQuote, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit > len(m.assets) {
		limit = len(m.assets)
	}
	return m.assets[:limit], nil
}

func (m *mockPrimaryProvider) GetAsset(ctx context.Context, id string) (*models.AssetQuote, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, a := range m.assets {
		if a.ID == id {
			q := a
			return &q, nil
		}
	}
	return nil, errNotFoundf("asset %q", id)
}

func (m *mockPrimaryProvider) GetAssetsByIDs(ctx context.Context, ids []string) (map[string]models.AssetQuote, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	byID := make(map[string]models.AssetQuote)
	for _, id := range ids {
		for _, a := range m.assets {
			if a.ID == id {
				byID[id] = a
			}
		}
	}
	return byID, nil
}

func (m *mockPrimaryProvider) Search(ctx context.Context, query string, limit int) ([]models.AssetQuote, error) {
	return m.ListTopAssets(ctx, limit)
}

func (m *mockPrimaryProvider) History(ctx context.Context, id string, days int) ([]models.ChartPoint, error) {
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return m.history, nil
}

type mockSecondaryProvider struct {
	markets    []models.AssetQuote
	details    map[string]*models.AssetQuote
	candidates map[string][]models.SearchCandidate
	catalog    []models.CatalogEntry

	marketsErr error
	detailErr  error
	searchErr  error
	catalogErr error

	marketsCalls int
	searchCalls  int
	catalogCalls int
}

func (m *mockSecondaryProvider) Markets(ctx context.Context, currency string, ids []string, limit int) ([]models.AssetQuote, error) {
	m.marketsCalls++
	if m.marketsErr != nil {
		return nil, m.marketsErr
	}
	return m.markets, nil
}

func (m *mockSecondaryProvider) CoinDetail(ctx context.Context, id string) (*models.AssetQuote, error) {
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, errNotFoundf("coin %q", id)
}

func (m *mockSecondaryProvider) Search(ctx context.Context, query string) ([]models.SearchCandidate, error) {
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.candidates[query], nil
}

func (m *mockSecondaryProvider) CoinCatalog(ctx context.Context) ([]models.CatalogEntry, error) {
	m.catalogCalls++
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	return m.catalog, nil
}

type mockResolver struct {
	id  string
	err error
}

func (m *mockResolver) Resolve(ctx context.Context, symbol, idHint, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.id, nil
}

// mockMarketService feeds the wallet service fixed prices.
type mockMarketService struct {
	quotes   map[string]models.AssetQuote
	priceErr error
}

func (m *mockMarketService) MarketMovers(ctx context.Context, limit int) []models.MarketMover {
	return nil
}

func (m *mockMarketService) PriceQuotes(ctx context.Context, assetID string) ([]models.AssetQuote, error) {
	return nil, nil
}

func (m *mockMarketService) SearchAssets(ctx context.Context, query string, limit int) ([]models.AssetQuote, error) {
	return nil, nil
}

func (m *mockMarketService) AssetsByIDs(ctx context.Context, ids []string) (map[string]models.AssetQuote, error) {
	byID := make(map[string]models.AssetQuote)
	for _, id := range ids {
		if q, ok := m.quotes[id]; ok {
			byID[id] = q
		}
	}
	return byID, nil
}

func (m *mockMarketService) PriceForSource(ctx context.Context, assetID, source string) (*models.AssetQuote, float64, error) {
	if m.priceErr != nil {
		return nil, 0, m.priceErr
	}
	q, ok := m.quotes[assetID]
	if !ok {
		return nil, 0, errNotFoundf("asset %q", assetID)
	}
	return &q, q.PriceUSD, nil
}

func (m *mockMarketService) Dashboard(ctx context.Context, summary *models.WalletSummary) (*models.Dashboard, error) {
	return nil, nil
}

// mockWalletRepo keeps a single wallet in memory.
type mockWalletRepo struct {
	wallet  *models.Wallet
	ledger  []models.WalletTransaction
	saveErr error
}

func (m *mockWalletRepo) GetByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	if m.wallet == nil || m.wallet.UserID != userID {
		return nil, nil
	}
	return m.wallet, nil
}

func (m *mockWalletRepo) Create(ctx context.Context, wallet *models.Wallet) error {
	wallet.ID = 1
	m.wallet = wallet
	return nil
}

func (m *mockWalletRepo) SaveAtomic(ctx context.Context, wallet *models.Wallet, holding *models.WalletHolding, entry *models.WalletTransaction) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.wallet = wallet
	if entry != nil {
		entry.WalletID = wallet.ID
		entry.ID = uint(len(m.ledger) + 1)
		m.ledger = append(m.ledger, *entry)
	}
	return nil
}

func (m *mockWalletRepo) ListTransactions(ctx context.Context, walletID uint, limit int) ([]models.WalletTransaction, error) {
	out := make([]models.WalletTransaction, 0, len(m.ledger))
	for i := len(m.ledger) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.ledger[i])
	}
	return out, nil
}

// mockUserRepo keeps users and sessions in memory.
type mockUserRepo struct {
	users    map[uint]*models.User
	byEmail  map[string]*models.User
	sessions map[string]*models.Session
	nextID   uint
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:    make(map[uint]*models.User),
		byEmail:  make(map[string]*models.User),
		sessions: make(map[string]*models.Session),
	}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	m.byEmail[user.Email] = user
	return nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.byEmail[email], nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	m.byEmail[user.Email] = user
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id uint) error {
	if u, ok := m.users[id]; ok {
		delete(m.byEmail, u.Email)
		delete(m.users, id)
	}
	return nil
}

func (m *mockUserRepo) CreateSession(ctx context.Context, session *models.Session) error {
	m.sessions[session.Token] = session
	return nil
}

func (m *mockUserRepo) GetSession(ctx context.Context, token string) (*models.Session, error) {
	return m.sessions[token], nil
}

func (m *mockUserRepo) DeleteSessions(ctx context.Context, userID uint) error {
	for token, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

// mockCommandRepo keeps device commands in memory.
type mockCommandRepo struct {
	commands []models.DeviceCommand
	nextID   uint
}

func (m *mockCommandRepo) Create(ctx context.Context, cmd *models.DeviceCommand) error {
	m.nextID++
	cmd.ID = m.nextID
	cmd.CreatedAt = time.Now()
	m.commands = append(m.commands, *cmd)
	return nil
}

func (m *mockCommandRepo) GetByID(ctx context.Context, userID, id uint) (*models.DeviceCommand, error) {
	for i := range m.commands {
		if m.commands[i].ID == id && m.commands[i].UserID == userID {
			cmd := m.commands[i]
			return &cmd, nil
		}
	}
	return nil, nil
}

func (m *mockCommandRepo) ListPending(ctx context.Context, userID uint, targetDevice string, targetDeviceID *string, limit int) ([]models.DeviceCommand, error) {
	out := make([]models.DeviceCommand, 0, limit)
	for _, cmd := range m.commands {
		if len(out) >= limit {
			break
		}
		if cmd.UserID != userID || cmd.Status != models.DeviceCommandPending || cmd.TargetDevice != targetDevice {
			continue
		}
		if targetDeviceID != nil && (cmd.TargetDeviceID == nil || *cmd.TargetDeviceID != *targetDeviceID) {
			continue
		}
		out = append(out, cmd)
	}
	return out, nil
}

func (m *mockCommandRepo) MarkDelivered(ctx context.Context, ids []uint, at time.Time) error {
	for _, id := range ids {
		for i := range m.commands {
			if m.commands[i].ID == id {
				m.commands[i].Status = models.DeviceCommandDelivered
				deliveredAt := at
				m.commands[i].DeliveredAt = &deliveredAt
			}
		}
	}
	return nil
}

func (m *mockCommandRepo) Update(ctx context.Context, cmd *models.DeviceCommand) error {
	for i := range m.commands {
		if m.commands[i].ID == cmd.ID {
			m.commands[i] = *cmd
		}
	}
	return nil
}
