package repositories

import (
	"context"
	"time"

	"github.com/coinview/backend/internal/models"
)

// WalletRepository persists wallets, holdings and the transaction ledger.
// Lookups return (nil, nil) when the row is absent.
type WalletRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.Wallet, error)
	Create(ctx context.Context, wallet *models.Wallet) error
	// SaveAtomic applies one wallet mutation as a single transaction:
	// the new cash balance, the (possibly new) holding row and the
	// ledger entry land together or not at all.
	SaveAtomic(ctx context.Context, wallet *models.Wallet, holding *models.WalletHolding, entry *models.WalletTransaction) error
	ListTransactions(ctx context.Context, walletID uint, limit int) ([]models.WalletTransaction, error)
}

// UserRepository persists users and their sessions.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	// Delete removes the user and everything they own.
	Delete(ctx context.Context, id uint) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSessions(ctx context.Context, userID uint) error
}

// DeviceCommandRepository persists the device command queue.
type DeviceCommandRepository interface {
	Create(ctx context.Context, cmd *models.DeviceCommand) error
	GetByID(ctx context.Context, userID, id uint) (*models.DeviceCommand, error)
	ListPending(ctx context.Context, userID uint, targetDevice string, targetDeviceID *string, limit int) ([]models.DeviceCommand, error)
	MarkDelivered(ctx context.Context, ids []uint, at time.Time) error
	Update(ctx context.Context, cmd *models.DeviceCommand) error
}
