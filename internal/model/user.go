package model

import "time"

// User owns tasks and scopes every query; identified by email.
type User struct {
	ID             int64  `gorm:"primaryKey"`
	Email          string `gorm:"uniqueIndex"`
	Name           string
	TelegramChatID int64 // 0 means no Telegram notifications
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
