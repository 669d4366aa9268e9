package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/coinview/backend/internal/db"
	"github.com/coinview/backend/internal/models"
)

type walletRepository struct {
	db *db.DB
}

func NewWalletRepository(database *db.DB) WalletRepository {
	return &walletRepository{db: database}
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Preload("Holdings").
		Where("user_id = ?", userID).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *walletRepository) SaveAtomic(ctx context.Context, wallet *models.Wallet, holding *models.WalletHolding, entry *models.WalletTransaction) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Wallet{}).
			Where("id = ?", wallet.ID).
			Update("cash_balance", wallet.CashBalance).Error; err != nil {
			return fmt.Errorf("failed to update cash balance: %w", err)
		}
		if holding != nil {
			holding.WalletID = wallet.ID
			if err := tx.Save(holding).Error; err != nil {
				return fmt.Errorf("failed to save holding: %w", err)
			}
		}
		if entry != nil {
			entry.WalletID = wallet.ID
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("failed to append ledger entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("wallet mutation rolled back: %w", err)
	}
	return nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, walletID uint, limit int) ([]models.WalletTransaction, error) {
	q := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var txs []models.WalletTransaction
	if err := q.Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}
