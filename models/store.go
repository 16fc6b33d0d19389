package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store sales counters are cached aggregates over the orders touching the store.
type Store struct {
	ID          string          `gorm:"primary_key;size:64" json:"id"`
	ProviderId  *string         `gorm:"size:64;index" json:"provider_id"`
	Name        string          `gorm:"size:255" json:"name"`
	TotalSales  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_sales"`
	TotalOrders int             `gorm:"default:0" json:"total_orders"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type ServiceProvider struct {
	ID              string          `gorm:"primary_key;size:64" json:"id"`
	Name            string          `gorm:"size:255" json:"name"`
	TotalRevenue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_revenue"`
	TotalOrders     int             `gorm:"default:0" json:"total_orders"`
	CompletedOrders int             `gorm:"default:0" json:"completed_orders"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
