package models

import "time"

// User is an account holder. Passwords are stored bcrypt-hashed.
type User struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Email          string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	HashedPassword string    `json:"-" gorm:"type:varchar(255);not null"`
	FirstName      string    `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName       string    `json:"last_name" gorm:"type:varchar(100);not null"`
	BirthDate      time.Time `json:"birth_date" gorm:"type:date;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// Session is an opaque bearer token with a fixed lifetime.
type Session struct {
	Token     string    `json:"token" gorm:"primaryKey;type:varchar(64)"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Session) TableName() string { return "sessions" }

// Expired reports whether the session is past its lifetime at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
