package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
	"github.com/coinview/backend/internal/repositories"
)

// DispatchCommandInput is the payload for queuing a device command.
type DispatchCommandInput struct {
	TargetDevice   string
	TargetDeviceID *string
	Command        string
	Payload        *string
}

// DeviceCommandServiceImpl is plain queue CRUD: dispatch enqueues, poll
// drains pending commands (marking them delivered), ack resolves them.
type DeviceCommandServiceImpl struct {
	repo repositories.DeviceCommandRepository
	log  *zap.Logger
	now  func() time.Time
}

func NewDeviceCommandService(repo repositories.DeviceCommandRepository, log *zap.Logger) DeviceCommandService {
	return &DeviceCommandServiceImpl{repo: repo, log: log, now: time.Now}
}

func (s *DeviceCommandServiceImpl) Dispatch(ctx context.Context, userID uint, input DispatchCommandInput) (*models.DeviceCommand, error) {
	if input.TargetDevice == "" {
		return nil, apperrors.Validation("target_device", "target device is required")
	}
	if input.Command == "" {
		return nil, apperrors.Validation("command", "command is required")
	}

	cmd := &models.DeviceCommand{
		UserID:         userID,
		TargetDevice:   input.TargetDevice,
		TargetDeviceID: input.TargetDeviceID,
		Command:        input.Command,
		Payload:        input.Payload,
		Status:         models.DeviceCommandPending,
	}
	if err := s.repo.Create(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (s *DeviceCommandServiceImpl) Poll(ctx context.Context, userID uint, targetDevice string, targetDeviceID *string, limit int) ([]models.DeviceCommand, error) {
	if limit <= 0 || limit > 20 {
		limit = 10
	}
	cmds, err := s.repo.ListPending(ctx, userID, targetDevice, targetDeviceID, limit)
	if err != nil {
		return nil, err
	}
	if len(cmds) == 0 {
		return []models.DeviceCommand{}, nil
	}

	at := s.now().UTC()
	ids := make([]uint, len(cmds))
	for i := range cmds {
		ids[i] = cmds[i].ID
		cmds[i].Status = models.DeviceCommandDelivered
		cmds[i].DeliveredAt = &at
	}
	if err := s.repo.MarkDelivered(ctx, ids, at); err != nil {
		return nil, err
	}
	return cmds, nil
}

func (s *DeviceCommandServiceImpl) Acknowledge(ctx context.Context, userID uint, commandID uint, status string) (*models.DeviceCommand, error) {
	if status != models.DeviceCommandAcknowledged && status != models.DeviceCommandRejected {
		return nil, apperrors.Validation("status", "must be acknowledged or rejected")
	}

	cmd, err := s.repo.GetByID(ctx, userID, commandID)
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, fmt.Errorf("device command %d: %w", commandID, apperrors.ErrNotFound)
	}

	at := s.now().UTC()
	cmd.Status = status
	cmd.ResolvedAt = &at
	if err := s.repo.Update(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}
