package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product.StockQuantity is a cached aggregate of inventory_movements.
type Product struct {
	ID            string          `gorm:"primary_key;size:64" json:"id"`
	StoreId       string          `gorm:"size:64;index" json:"store_id"`
	Name          string          `gorm:"size:255" json:"name"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// InventoryMovement is the append-only stock ledger.
type InventoryMovement struct {
	ID            int          `gorm:"primary_key" json:"id"`
	ProductId     string       `gorm:"size:64;index;not null" json:"product_id"`
	MovementType  MovementType `gorm:"size:10;not null" json:"movement_type"`
	Quantity      int          `gorm:"not null" json:"quantity"`
	ReferenceType string       `gorm:"size:30;index:idx_im_ref,priority:1" json:"reference_type"`
	ReferenceId   string       `gorm:"size:64;index:idx_im_ref,priority:2" json:"reference_id"`
	Notes         string       `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
}
