package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types recorded in the wallet ledger.
const (
	TxTypeDeposit = "DEPOSIT"
	TxTypeBuy     = "BUY"
	TxTypeSell    = "SELL"
)

// Price sources accepted by buy/sell operations.
const (
	PriceSourceCoinCap   = "coincap"
	PriceSourceCoinGecko = "coingecko"
)

// Wallet is the simulated fiat+crypto wallet, owned one-to-one by a user.
// CashBalance stays >= 0 after every successful operation.
type Wallet struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"user_id" gorm:"uniqueIndex;not null"`
	CashBalance decimal.Decimal `json:"cash_balance" gorm:"column:cash_balance;type:decimal(30,10);not null;default:0"`
	Holdings    []WalletHolding `json:"holdings" gorm:"foreignKey:WalletID"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallets" }

// WalletHolding is the accumulated position in one asset. A row is created
// on first buy and kept even when quantity reaches exactly zero.
// Invariant: AvgBuyPrice == TotalCost / Quantity whenever Quantity > 0.
type WalletHolding struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	WalletID    uint            `json:"wallet_id" gorm:"index:idx_holdings_wallet_asset,unique;not null"`
	AssetID     string          `json:"asset_id" gorm:"index:idx_holdings_wallet_asset,unique;type:varchar(100);not null"`
	Symbol      string          `json:"symbol" gorm:"type:varchar(20);not null"`
	Name        string          `json:"name" gorm:"type:varchar(100);not null"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:decimal(30,18);not null;default:0"`
	TotalCost   decimal.Decimal `json:"total_cost" gorm:"type:decimal(30,10);not null;default:0"`
	AvgBuyPrice decimal.Decimal `json:"avg_buy_price" gorm:"type:decimal(30,10);not null;default:0"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (WalletHolding) TableName() string { return "wallet_holdings" }

// WalletTransaction is one append-only ledger row. Rows are never updated
// or deleted; created_at desc is the canonical read order.
type WalletTransaction struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	WalletID    uint            `json:"wallet_id" gorm:"index;not null"`
	TxType      string          `json:"tx_type" gorm:"type:varchar(20);not null;index"`
	AssetID     *string         `json:"asset_id" gorm:"type:varchar(100)"`
	AssetSymbol *string         `json:"asset_symbol" gorm:"type:varchar(20)"`
	AssetName   *string         `json:"asset_name" gorm:"type:varchar(100)"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:decimal(30,18);not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(30,10);not null"`
	TotalValue  decimal.Decimal `json:"total_value" gorm:"type:decimal(30,10);not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime;index"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }

// TradeExecution is the result of a completed buy or sell.
type TradeExecution struct {
	Transaction WalletTransaction `json:"transaction"`
	Summary     WalletSummary     `json:"summary"`
}

// SellPreview is a dry-run sale: the same arithmetic as Sell without any
// persistence.
type SellPreview struct {
	AssetID           string          `json:"asset_id"`
	Symbol            string          `json:"symbol"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Proceeds          decimal.Decimal `json:"proceeds"`
	CostReleased      decimal.Decimal `json:"cost_released"`
	EstimatedGain     decimal.Decimal `json:"estimated_gain"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	CashAfter         decimal.Decimal `json:"cash_after"`
}

// HoldingFor returns the holding row for assetID, or nil.
func (w *Wallet) HoldingFor(assetID string) *WalletHolding {
	for i := range w.Holdings {
		if w.Holdings[i].AssetID == assetID {
			return &w.Holdings[i]
		}
	}
	return nil
}
