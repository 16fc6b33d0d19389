package models

import (
	"gorm.io/gorm"
)

// AllModels lists every table owned by the service.
func AllModels() []interface{} {
	return []interface{}{
		&Order{}, &OrderItem{},
		&Product{}, &InventoryMovement{},
		&AccountingEntry{},
		&ConstructionProject{}, &ProjectFinancial{}, &ProjectInventory{}, &ProjectPurchase{}, &ProjectTask{},
		&Store{}, &ServiceProvider{},
		&Invoice{}, &InvoiceItem{},
		&UserProfile{}, &LoyaltyTransaction{},
		&OperationLog{},
		&IdempotencyKey{},
		&SyncEventRecord{},
		&ReconciliationReport{},
	}
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
