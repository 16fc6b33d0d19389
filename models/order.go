package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is written by the storefront. Only Status and ProjectId change after creation.
type Order struct {
	ID            string          `gorm:"primary_key;size:64" json:"id"`
	UserId        string          `gorm:"size:64;index;not null" json:"user_id"`
	ProjectId     *string         `gorm:"size:64;index" json:"project_id"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PaymentMethod string          `gorm:"size:50" json:"payment_method"`
	Status        string          `gorm:"size:20;default:pending" json:"status"`
	Items         []OrderItem     `gorm:"foreignKey:OrderId" json:"items"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   string          `gorm:"size:64;index;not null" json:"order_id"`
	ProductId string          `gorm:"size:64;index;not null" json:"product_id"`
	StoreId   string          `gorm:"size:64;index" json:"store_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
}

// LineTotal is unit_price * quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
