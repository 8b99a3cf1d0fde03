package model

import (
	"time"

	"gorm.io/gorm"
)

// Session records an authenticated session token for a user. Tokens are
// mirrored into Redis for fast validation; the DB row is authoritative.
type Session struct {
	gorm.Model
	UserID       uint      `json:"user_id" gorm:"index;not null"`
	SessionToken string    `json:"session_token" gorm:"uniqueIndex;size:512"`
	ExpiresAt    time.Time `json:"expires_at"`
	ClientIP     string    `json:"client_ip" gorm:"size:45"`
	Browser      string    `json:"browser" gorm:"size:512"`
}
