package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserProfile.ID is the auth user id. LoyaltyPoints and TotalSpent are cached
// aggregates of loyalty_transactions and orders.
type UserProfile struct {
	ID            string          `gorm:"primary_key;size:64" json:"id"`
	FullName      string          `gorm:"size:255" json:"full_name"`
	LoyaltyPoints int             `gorm:"not null;default:0" json:"loyalty_points"`
	TotalSpent    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_spent"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type LoyaltyTransaction struct {
	ID              int       `gorm:"primary_key" json:"id"`
	UserId          string    `gorm:"size:64;index;not null" json:"user_id"`
	OrderId         *string   `gorm:"size:64;index" json:"order_id"`
	Points          int       `gorm:"not null" json:"points"` // negative for redemptions
	TransactionType string    `gorm:"size:20" json:"transaction_type"`
	Description     string    `gorm:"size:255" json:"description"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
