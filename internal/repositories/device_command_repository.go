package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coinview/backend/internal/db"
	"github.com/coinview/backend/internal/models"
)

type deviceCommandRepository struct {
	db *db.DB
}

func NewDeviceCommandRepository(database *db.DB) DeviceCommandRepository {
	return &deviceCommandRepository{db: database}
}

func (r *deviceCommandRepository) Create(ctx context.Context, cmd *models.DeviceCommand) error {
	if err := r.db.WithContext(ctx).Create(cmd).Error; err != nil {
		return fmt.Errorf("failed to create device command: %w", err)
	}
	return nil
}

func (r *deviceCommandRepository) GetByID(ctx context.Context, userID, id uint) (*models.DeviceCommand, error) {
	var cmd models.DeviceCommand
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&cmd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load device command: %w", err)
	}
	return &cmd, nil
}

func (r *deviceCommandRepository) ListPending(ctx context.Context, userID uint, targetDevice string, targetDeviceID *string, limit int) ([]models.DeviceCommand, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND target_device = ? AND status = ?", userID, targetDevice, models.DeviceCommandPending).
		Order("created_at ASC").
		Limit(limit)
	if targetDeviceID != nil {
		q = q.Where("target_device_id = ?", *targetDeviceID)
	}
	var cmds []models.DeviceCommand
	if err := q.Find(&cmds).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending device commands: %w", err)
	}
	return cmds, nil
}

func (r *deviceCommandRepository) MarkDelivered(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&models.DeviceCommand{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":       models.DeviceCommandDelivered,
			"delivered_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark device commands delivered: %w", err)
	}
	return nil
}

func (r *deviceCommandRepository) Update(ctx context.Context, cmd *models.DeviceCommand) error {
	if err := r.db.WithContext(ctx).Save(cmd).Error; err != nil {
		return fmt.Errorf("failed to update device command: %w", err)
	}
	return nil
}
