package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrInvalidSyncPayload = errors.New("invalid sync payload")

// SyncOrderCreation propagates a newly created order into inventory,
// accounting, the linked project, store and provider statistics, the invoice
// and the user's loyalty balance. Each step commits on its own; a failed step
// is reported in the result and does not stop the others.
func SyncOrderCreation(ctx context.Context, db *gorm.DB, logger *logrus.Logger, opts Options, payload models.OrderSyncPayload) (*SyncResult, error) {
	if err := utils.ValidateStruct(payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSyncPayload, err.Error())
	}

	steps := []syncStep{
		{models.SyncDomainInventory, func(ctx context.Context, tx *gorm.DB) error { return syncOrderInventory(tx, payload) }},
		{models.SyncDomainAccounting, func(ctx context.Context, tx *gorm.DB) error { return syncOrderAccounting(tx, opts, payload) }},
	}
	if payload.HasProject() {
		steps = append(steps, syncStep{models.SyncDomainProject, func(ctx context.Context, tx *gorm.DB) error { return syncOrderProject(tx, payload) }})
	}
	steps = append(steps,
		syncStep{models.SyncDomainProviders, func(ctx context.Context, tx *gorm.DB) error { return syncOrderProviders(tx, payload) }},
		syncStep{models.SyncDomainInvoice, func(ctx context.Context, tx *gorm.DB) error { return syncOrderInvoice(tx, opts, payload) }},
		syncStep{models.SyncDomainLoyalty, func(ctx context.Context, tx *gorm.DB) error { return syncOrderLoyalty(tx, opts, payload) }},
	)

	return runFanout(ctx, db, logger, opts, models.SyncEventOrderCreated, payload.OrderId, steps), nil
}

// syncOrderInventory decrements stock (floored at 0) and appends one "out"
// movement per item.
func syncOrderInventory(tx *gorm.DB, p models.OrderSyncPayload) error {
	for _, item := range p.Items {
		res := tx.Model(&models.Product{}).
			Where("id = ?", item.ProductId).
			Update("stock_quantity", gorm.Expr("CASE WHEN stock_quantity >= ? THEN stock_quantity - ? ELSE 0 END", item.Quantity, item.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product %s: %w", item.ProductId, utils.ErrorRecordNotFound)
		}

		movement := models.InventoryMovement{
			ProductId:     item.ProductId,
			MovementType:  models.MovementTypeOut,
			Quantity:      item.Quantity,
			ReferenceType: models.MovementReferenceOrder,
			ReferenceId:   p.OrderId,
			Notes:         fmt.Sprintf("Order %s", p.OrderId),
		}
		if err := tx.Create(&movement).Error; err != nil {
			return err
		}
	}
	return nil
}

// syncOrderAccounting posts the balanced sale: receivable debit, sales and
// VAT credits.
func syncOrderAccounting(tx *gorm.DB, opts Options, p models.OrderSyncPayload) error {
	net, vat := opts.tax().Split(p.TotalAmount)
	description := fmt.Sprintf("Order %s", p.OrderId)
	entries := []models.AccountingEntry{
		{
			AccountCode:     models.AccountCodeReceivable,
			AccountName:     "Accounts Receivable",
			DebitAmount:     p.TotalAmount,
			CreditAmount:    decimal.Zero,
			ReferenceType:   "order",
			ReferenceId:     p.OrderId,
			TransactionType: models.TransactionTypeSale,
			Description:     description,
		},
		{
			AccountCode:     models.AccountCodeSales,
			AccountName:     "Sales Revenue",
			DebitAmount:     decimal.Zero,
			CreditAmount:    net,
			ReferenceType:   "order",
			ReferenceId:     p.OrderId,
			TransactionType: models.TransactionTypeSale,
			Description:     description,
		},
		{
			AccountCode:     models.AccountCodeVatPayable,
			AccountName:     "VAT Payable",
			DebitAmount:     decimal.Zero,
			CreditAmount:    vat,
			ReferenceType:   "order",
			ReferenceId:     p.OrderId,
			TransactionType: models.TransactionTypeSale,
			Description:     description,
		},
	}
	return tx.Create(&entries).Error
}

// syncOrderProject links the order to its project, records the materials
// purchase and adds the order total to the project's spent cost.
func syncOrderProject(tx *gorm.DB, p models.OrderSyncPayload) error {
	projectId := *p.ProjectId

	res := tx.Model(&models.ConstructionProject{}).
		Where("id = ?", projectId).
		Update("spent_cost", gorm.Expr("spent_cost + ?", p.TotalAmount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %s: %w", projectId, utils.ErrorRecordNotFound)
	}

	res = tx.Model(&models.Order{}).Where("id = ?", p.OrderId).Update("project_id", projectId)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %s: %w", p.OrderId, utils.ErrorRecordNotFound)
	}

	purchase := models.ProjectPurchase{
		ProjectId:    projectId,
		OrderId:      p.OrderId,
		PurchaseType: models.PurchaseTypeMaterials,
		Status:       models.PurchaseStatusOrdered,
		Amount:       p.TotalAmount,
	}
	return tx.Create(&purchase).Error
}

// syncOrderProviders adds each store's line totals to its sales and one
// order per distinct store, then rolls the same up to the stores' providers.
// Items without a store are not attributed.
func syncOrderProviders(tx *gorm.DB, p models.OrderSyncPayload) error {
	storeIds := []string{}
	storeSales := map[string]decimal.Decimal{}
	for _, item := range p.Items {
		if item.StoreId == "" {
			continue
		}
		if _, ok := storeSales[item.StoreId]; !ok {
			storeIds = append(storeIds, item.StoreId)
			storeSales[item.StoreId] = decimal.Zero
		}
		storeSales[item.StoreId] = storeSales[item.StoreId].Add(item.LineTotal())
	}

	providerIds := []string{}
	providerRevenue := map[string]decimal.Decimal{}
	for _, storeId := range storeIds {
		var store models.Store
		if err := tx.Where("id = ?", storeId).Take(&store).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("store %s: %w", storeId, utils.ErrorRecordNotFound)
			}
			return err
		}
		if err := tx.Model(&models.Store{}).Where("id = ?", storeId).Updates(map[string]interface{}{
			"total_sales":  gorm.Expr("total_sales + ?", storeSales[storeId]),
			"total_orders": gorm.Expr("total_orders + 1"),
		}).Error; err != nil {
			return err
		}

		if store.ProviderId == nil || *store.ProviderId == "" {
			continue
		}
		providerId := *store.ProviderId
		if _, ok := providerRevenue[providerId]; !ok {
			providerIds = append(providerIds, providerId)
			providerRevenue[providerId] = decimal.Zero
		}
		providerRevenue[providerId] = providerRevenue[providerId].Add(storeSales[storeId])
	}

	for _, providerId := range providerIds {
		res := tx.Model(&models.ServiceProvider{}).Where("id = ?", providerId).Updates(map[string]interface{}{
			"total_revenue": gorm.Expr("total_revenue + ?", providerRevenue[providerId]),
			"total_orders":  gorm.Expr("total_orders + 1"),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("service provider %s: %w", providerId, utils.ErrorRecordNotFound)
		}
	}
	return nil
}

// syncOrderInvoice issues one invoice per order with one line per item.
func syncOrderInvoice(tx *gorm.DB, opts Options, p models.OrderSyncPayload) error {
	now := opts.now()
	subtotal, tax := opts.tax().Split(p.TotalAmount)
	invoiceId := uuid.NewString()

	items := make([]models.InvoiceItem, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, models.InvoiceItem{
			InvoiceId:   invoiceId,
			ProductId:   item.ProductId,
			Description: fmt.Sprintf("Product %s", item.ProductId),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.LineTotal(),
		})
	}

	invoice := models.Invoice{
		ID:            invoiceId,
		InvoiceNumber: models.InvoiceNumber(now),
		OrderId:       p.OrderId,
		UserId:        p.UserId,
		Subtotal:      subtotal,
		TaxAmount:     tax,
		TotalAmount:   p.TotalAmount,
		IssueDate:     now,
		DueDate:       now.AddDate(0, 0, opts.Settings.InvoiceDueDays),
		Status:        models.InvoiceStatusIssued,
		Items:         items,
	}
	return tx.Create(&invoice).Error
}

// syncOrderLoyalty credits floor(total / divisor) points and the order total
// to the user's profile and appends the earning to the loyalty ledger.
func syncOrderLoyalty(tx *gorm.DB, opts Options, p models.OrderSyncPayload) error {
	points := LoyaltyPoints(p.TotalAmount, opts.Settings.LoyaltyPointDivisor)

	res := tx.Model(&models.UserProfile{}).Where("id = ?", p.UserId).Updates(map[string]interface{}{
		"loyalty_points": gorm.Expr("loyalty_points + ?", points),
		"total_spent":    gorm.Expr("total_spent + ?", p.TotalAmount),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user profile %s: %w", p.UserId, utils.ErrorRecordNotFound)
	}

	orderId := p.OrderId
	txn := models.LoyaltyTransaction{
		UserId:          p.UserId,
		OrderId:         &orderId,
		Points:          points,
		TransactionType: models.LoyaltyTransactionEarn,
		Description:     fmt.Sprintf("Earned %d points for order %s", points, p.OrderId),
	}
	return tx.Create(&txn).Error
}
