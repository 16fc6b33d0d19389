package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/buildhub/datasync_backend/utils"
	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID            string          `gorm:"primary_key;size:64" json:"id"`
	InvoiceNumber string          `gorm:"size:50;index;not null" json:"invoice_number"`
	OrderId       string          `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	UserId        string          `gorm:"size:64;index" json:"user_id"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	Status        string          `gorm:"size:20" json:"status"`
	Items         []InvoiceItem   `gorm:"foreignKey:InvoiceId" json:"items"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type InvoiceItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	InvoiceId   string          `gorm:"size:64;index;not null" json:"invoice_id"`
	ProductId   string          `gorm:"size:64" json:"product_id"`
	Description string          `gorm:"size:255" json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
}

// InvoiceNumber formats INV-<year>-<last 6 digits of the unix millis timestamp>.
func InvoiceNumber(at time.Time) string {
	return fmt.Sprintf("INV-%d-%s", at.Year(), utils.LastDigits(strconv.FormatInt(at.UnixMilli(), 10), 6))
}
