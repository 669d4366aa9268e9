package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
	"github.com/coinview/backend/internal/repositories"
)

// WalletServiceImpl implements the wallet ledger: pure decimal arithmetic
// over holdings plus live quotes, with every mutation persisted atomically.
type WalletServiceImpl struct {
	repo   repositories.WalletRepository
	market MarketService
	log    *zap.Logger
	now    func() time.Time
}

func NewWalletService(repo repositories.WalletRepository, market MarketService, log *zap.Logger) WalletService {
	return &WalletServiceImpl{repo: repo, market: market, log: log, now: time.Now}
}

// GetOrCreateWallet returns the user's wallet, creating an empty one on
// first access.
func (s *WalletServiceImpl) GetOrCreateWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}
	wallet = &models.Wallet{UserID: userID, CashBalance: decimal.Zero}
	if err := s.repo.Create(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// Deposit credits the cash balance and appends a DEPOSIT ledger row with
// unit price 1.
func (s *WalletServiceImpl) Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (*models.WalletSummary, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("deposit of %s: %w", amount, apperrors.ErrInvalidAmount)
	}
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	wallet.CashBalance = wallet.CashBalance.Add(amount)
	entry := &models.WalletTransaction{
		TxType:     models.TxTypeDeposit,
		Quantity:   amount,
		UnitPrice:  decimal.NewFromInt(1),
		TotalValue: amount,
	}
	if err := s.repo.SaveAtomic(ctx, wallet, nil, entry); err != nil {
		return nil, err
	}
	return s.summarize(ctx, wallet)
}

// Buy converts amountUSD of cash into a holding at the unit price resolved
// from the chosen source. Cash debit, holding update and BUY ledger row
// land in one transaction.
func (s *WalletServiceImpl) Buy(ctx context.Context, userID uint, assetID string, amountUSD decimal.Decimal, source string) (*models.TradeExecution, error) {
	if !amountUSD.IsPositive() {
		return nil, fmt.Errorf("buy of %s: %w", amountUSD, apperrors.ErrInvalidAmount)
	}
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.CashBalance.LessThan(amountUSD) {
		return nil, fmt.Errorf("cash %s, need %s: %w", wallet.CashBalance, amountUSD, apperrors.ErrInsufficientFunds)
	}
	if source != models.PriceSourceCoinCap && source != models.PriceSourceCoinGecko {
		return nil, fmt.Errorf("source %q: %w", source, apperrors.ErrUnsupportedSource)
	}

	asset, price, err := s.market.PriceForSource(ctx, assetID, source)
	if err != nil {
		return nil, err
	}
	unitPrice := decimal.NewFromFloat(price)
	quantity := amountUSD.Div(unitPrice)

	holding := wallet.HoldingFor(assetID)
	newHolding := holding == nil
	if newHolding {
		holding = &models.WalletHolding{
			WalletID: wallet.ID,
			AssetID:  assetID,
			Symbol:   strings.ToUpper(asset.Symbol),
			Name:     asset.Name,
		}
	}
	holding.Quantity = holding.Quantity.Add(quantity)
	holding.TotalCost = holding.TotalCost.Add(amountUSD)
	holding.AvgBuyPrice = holding.TotalCost.Div(holding.Quantity)

	wallet.CashBalance = wallet.CashBalance.Sub(amountUSD)

	entry := &models.WalletTransaction{
		TxType:      models.TxTypeBuy,
		AssetID:     &holding.AssetID,
		AssetSymbol: &holding.Symbol,
		AssetName:   &holding.Name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TotalValue:  amountUSD,
	}
	if err := s.repo.SaveAtomic(ctx, wallet, holding, entry); err != nil {
		return nil, err
	}
	if newHolding {
		wallet.Holdings = append(wallet.Holdings, *holding)
	}

	summary, err := s.summarize(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return &models.TradeExecution{Transaction: *entry, Summary: *summary}, nil
}

// salePlan is the computed effect of a sale before it is applied.
type salePlan struct {
	holding      *models.WalletHolding
	quantity     decimal.Decimal
	unitPrice    decimal.Decimal
	proceeds     decimal.Decimal
	costReleased decimal.Decimal
}

// planSale validates a sale request and computes its effect. Exactly one
// of quantity/amountUSD must be positive; the sale is bounded by the
// current holding.
func (s *WalletServiceImpl) planSale(ctx context.Context, wallet *models.Wallet, assetID string, quantity, amountUSD decimal.Decimal, source string) (*salePlan, error) {
	if !quantity.IsPositive() && !amountUSD.IsPositive() {
		return nil, fmt.Errorf("sale needs a positive quantity or amount: %w", apperrors.ErrInvalidAmount)
	}
	if source != models.PriceSourceCoinCap && source != models.PriceSourceCoinGecko {
		return nil, fmt.Errorf("source %q: %w", source, apperrors.ErrUnsupportedSource)
	}
	holding := wallet.HoldingFor(assetID)
	if holding == nil || !holding.Quantity.IsPositive() {
		return nil, fmt.Errorf("no holding in %q: %w", assetID, apperrors.ErrInsufficientHoldings)
	}

	_, price, err := s.market.PriceForSource(ctx, assetID, source)
	if err != nil {
		return nil, err
	}
	unitPrice := decimal.NewFromFloat(price)

	qtyToSell := quantity
	if !qtyToSell.IsPositive() {
		qtyToSell = amountUSD.Div(unitPrice)
	}
	if qtyToSell.GreaterThan(holding.Quantity) {
		return nil, fmt.Errorf("have %s, selling %s: %w", holding.Quantity, qtyToSell, apperrors.ErrInsufficientHoldings)
	}

	return &salePlan{
		holding:      holding,
		quantity:     qtyToSell,
		unitPrice:    unitPrice,
		proceeds:     qtyToSell.Mul(unitPrice),
		costReleased: holding.AvgBuyPrice.Mul(qtyToSell),
	}, nil
}

// Sell executes a sale: debits the holding proportionally to its cost
// basis, credits cash and appends a SELL ledger row, all atomically.
func (s *WalletServiceImpl) Sell(ctx context.Context, userID uint, assetID string, quantity, amountUSD decimal.Decimal, source string) (*models.TradeExecution, error) {
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := s.planSale(ctx, wallet, assetID, quantity, amountUSD, source)
	if err != nil {
		return nil, err
	}

	holding := plan.holding
	holding.Quantity = holding.Quantity.Sub(plan.quantity)
	if holding.Quantity.IsZero() {
		// The row survives at zero; its cost basis resets.
		holding.TotalCost = decimal.Zero
		holding.AvgBuyPrice = decimal.Zero
	} else {
		holding.TotalCost = holding.TotalCost.Sub(plan.costReleased)
		if holding.TotalCost.IsNegative() {
			holding.TotalCost = decimal.Zero
		}
		holding.AvgBuyPrice = holding.TotalCost.Div(holding.Quantity)
	}

	wallet.CashBalance = wallet.CashBalance.Add(plan.proceeds)

	entry := &models.WalletTransaction{
		TxType:      models.TxTypeSell,
		AssetID:     &holding.AssetID,
		AssetSymbol: &holding.Symbol,
		AssetName:   &holding.Name,
		Quantity:    plan.quantity,
		UnitPrice:   plan.unitPrice,
		TotalValue:  plan.proceeds,
	}
	if err := s.repo.SaveAtomic(ctx, wallet, holding, entry); err != nil {
		return nil, err
	}

	summary, err := s.summarize(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return &models.TradeExecution{Transaction: *entry, Summary: *summary}, nil
}

// PreviewSale runs the sale arithmetic without persisting anything.
func (s *WalletServiceImpl) PreviewSale(ctx context.Context, userID uint, assetID string, quantity, amountUSD decimal.Decimal, source string) (*models.SellPreview, error) {
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := s.planSale(ctx, wallet, assetID, quantity, amountUSD, source)
	if err != nil {
		return nil, err
	}
	return &models.SellPreview{
		AssetID:           plan.holding.AssetID,
		Symbol:            plan.holding.Symbol,
		Quantity:          plan.quantity,
		UnitPrice:         plan.unitPrice,
		Proceeds:          plan.proceeds,
		CostReleased:      plan.costReleased,
		EstimatedGain:     plan.proceeds.Sub(plan.costReleased),
		RemainingQuantity: plan.holding.Quantity.Sub(plan.quantity),
		CashAfter:         wallet.CashBalance.Add(plan.proceeds),
	}, nil
}

// Summary values the wallet at live prices.
func (s *WalletServiceImpl) Summary(ctx context.Context, userID uint) (*models.WalletSummary, error) {
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, wallet)
}

// summarize computes the valued summary and 24h balance change for the
// given wallet state. For each holding the previous price is derived as
// price / (1 + pct/100); a -100% mover contributes nothing to the previous
// total rather than dividing by zero.
func (s *WalletServiceImpl) summarize(ctx context.Context, wallet *models.Wallet) (*models.WalletSummary, error) {
	ids := make([]string, 0, len(wallet.Holdings))
	for _, h := range wallet.Holdings {
		if h.Quantity.IsPositive() {
			ids = append(ids, h.AssetID)
		}
	}

	quotes, err := s.market.AssetsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	cash, _ := wallet.CashBalance.Float64()
	currentTotal := cash
	previousTotal := cash
	assets := make([]models.PortfolioAsset, 0, len(ids))

	for _, h := range wallet.Holdings {
		if !h.Quantity.IsPositive() {
			continue
		}
		qty, _ := h.Quantity.Float64()
		quote, ok := quotes[h.AssetID]
		if !ok {
			s.log.Warn("no live quote for holding, valuing at zero", zap.String("asset_id", h.AssetID))
		}
		value := quote.PriceUSD * qty
		currentTotal += value
		if quote.ChangePct24h > -100 {
			previousTotal += quote.PriceUSD / (1 + quote.ChangePct24h/100) * qty
		}
		assets = append(assets, models.PortfolioAsset{
			ID:           h.AssetID,
			Name:         h.Name,
			Symbol:       h.Symbol,
			Quantity:     qty,
			CurrentPrice: quote.PriceUSD,
			Value:        value,
			Change24hPct: quote.ChangePct24h,
			ImageURL:     quote.ImageURL,
		})
	}

	changePct := 0.0
	if previousTotal > 0 {
		changePct = (currentTotal/previousTotal - 1) * 100
	}

	return &models.WalletSummary{
		Currency:         dashboardCurrency,
		CashBalance:      cash,
		TotalValue:       currentTotal,
		BalanceChangePct: changePct,
		Assets:           assets,
		LastUpdated:      s.now().UTC(),
	}, nil
}

// ListTransactions returns the ledger newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, userID uint, limit int) ([]models.WalletTransaction, error) {
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, wallet.ID, limit)
}
