package models

import "time"

// Device command lifecycle states.
const (
	DeviceCommandPending      = "pending"
	DeviceCommandDelivered    = "delivered"
	DeviceCommandAcknowledged = "acknowledged"
	DeviceCommandRejected     = "rejected"
)

// DeviceCommand is one queued command for a user's paired device.
// Polling marks pending commands delivered; the device then acks or
// rejects them.
type DeviceCommand struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	UserID         uint       `json:"user_id" gorm:"index;not null"`
	TargetDevice   string     `json:"target_device" gorm:"type:varchar(50);not null;index"`
	TargetDeviceID *string    `json:"target_device_id" gorm:"type:varchar(100)"`
	Command        string     `json:"command" gorm:"type:varchar(100);not null"`
	Payload        *string    `json:"payload" gorm:"type:text"`
	Status         string     `json:"status" gorm:"type:varchar(20);not null;default:pending;index"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	DeliveredAt    *time.Time `json:"delivered_at"`
	ResolvedAt     *time.Time `json:"resolved_at"`
}

func (DeviceCommand) TableName() string { return "device_commands" }
