package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountingEntry is one line of the append-only double-entry ledger.
type AccountingEntry struct {
	ID              int             `gorm:"primary_key" json:"id"`
	AccountCode     string          `gorm:"size:20;index;not null" json:"account_code"`
	AccountName     string          `gorm:"size:100" json:"account_name"`
	DebitAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit_amount"`
	CreditAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_amount"`
	ReferenceType   string          `gorm:"size:30" json:"reference_type"`
	ReferenceId     string          `gorm:"size:64;index" json:"reference_id"`
	TransactionType string          `gorm:"size:30" json:"transaction_type"`
	Description     string          `gorm:"type:text" json:"description"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
