package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/buildhub/datasync_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func TestSyncOrderCreationScenario(t *testing.T) {
	db := newTestDB(t)
	seedMarketplace(t, db)
	payload := scenarioPayload(t, db)

	result, err := SyncOrderCreation(context.Background(), db, testLogger(), testOptions(), payload)
	if err != nil {
		t.Fatalf("SyncOrderCreation: %v", err)
	}
	if !result.Success || len(result.Errors) != 0 {
		t.Fatalf("expected success, got errors %v", result.Errors)
	}
	want := "inventory,accounting,project,providers,invoice,loyalty"
	if got := strings.Join(result.SyncedDomains, ","); got != want {
		t.Fatalf("synced %s, want %s", got, want)
	}

	var product models.Product
	db.First(&product, "id = ?", "P1")
	if product.StockQuantity != 95 {
		t.Fatalf("stock = %d, want 95", product.StockQuantity)
	}
	if n := countRows(t, db, &models.InventoryMovement{}, "reference_type = ? AND reference_id = ? AND movement_type = ?", models.MovementReferenceOrder, "O1", models.MovementTypeOut); n != 1 {
		t.Fatalf("order movements = %d, want 1", n)
	}

	var entries []models.AccountingEntry
	db.Where("reference_id = ?", "O1").Order("id ASC").Find(&entries)
	if len(entries) != 3 {
		t.Fatalf("accounting entries = %d, want 3", len(entries))
	}
	byCode := map[string]models.AccountingEntry{}
	debits, credits := decimal.Zero, decimal.Zero
	for _, e := range entries {
		byCode[e.AccountCode] = e
		debits = debits.Add(e.DebitAmount)
		credits = credits.Add(e.CreditAmount)
	}
	if !byCode[models.AccountCodeReceivable].DebitAmount.Equal(dec("1000")) ||
		!byCode[models.AccountCodeSales].CreditAmount.Equal(dec("850")) ||
		!byCode[models.AccountCodeVatPayable].CreditAmount.Equal(dec("150")) {
		t.Fatalf("unexpected posting %+v", byCode)
	}
	if !debits.Equal(credits) {
		t.Fatalf("debits %s != credits %s", debits, credits)
	}

	var project models.ConstructionProject
	db.First(&project, "id = ?", "PR1")
	if !project.SpentCost.Equal(dec("1000")) {
		t.Fatalf("spent_cost = %s, want 1000", project.SpentCost)
	}
	var order models.Order
	db.First(&order, "id = ?", "O1")
	if order.ProjectId == nil || *order.ProjectId != "PR1" {
		t.Fatalf("order not linked to project: %v", order.ProjectId)
	}
	var purchase models.ProjectPurchase
	if err := db.First(&purchase, "order_id = ?", "O1").Error; err != nil {
		t.Fatalf("project purchase: %v", err)
	}
	if purchase.PurchaseType != models.PurchaseTypeMaterials || purchase.Status != models.PurchaseStatusOrdered || !purchase.Amount.Equal(dec("1000")) {
		t.Fatalf("unexpected purchase %+v", purchase)
	}

	var store models.Store
	db.First(&store, "id = ?", "S1")
	if !store.TotalSales.Equal(dec("1000")) || store.TotalOrders != 1 {
		t.Fatalf("store stats = (%s, %d), want (1000, 1)", store.TotalSales, store.TotalOrders)
	}
	var provider models.ServiceProvider
	db.First(&provider, "id = ?", "SP1")
	if !provider.TotalRevenue.Equal(dec("1000")) || provider.TotalOrders != 1 {
		t.Fatalf("provider stats = (%s, %d), want (1000, 1)", provider.TotalRevenue, provider.TotalOrders)
	}

	var invoice models.Invoice
	if err := db.Preload("Items").First(&invoice, "order_id = ?", "O1").Error; err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if !invoice.TotalAmount.Equal(dec("1000")) || !invoice.Subtotal.Equal(dec("850")) || !invoice.TaxAmount.Equal(dec("150")) {
		t.Fatalf("invoice split = %s/%s/%s", invoice.Subtotal, invoice.TaxAmount, invoice.TotalAmount)
	}
	if !strings.HasPrefix(invoice.InvoiceNumber, "INV-2026-") || len(invoice.InvoiceNumber) != len("INV-2026-")+6 {
		t.Fatalf("invoice number %q", invoice.InvoiceNumber)
	}
	if invoice.Status != models.InvoiceStatusIssued || !invoice.DueDate.Equal(invoice.IssueDate.AddDate(0, 0, 30)) {
		t.Fatalf("invoice status %q issue %v due %v", invoice.Status, invoice.IssueDate, invoice.DueDate)
	}
	if len(invoice.Items) != 1 || invoice.Items[0].Quantity != 5 || !invoice.Items[0].TotalPrice.Equal(dec("1000")) {
		t.Fatalf("invoice items %+v", invoice.Items)
	}

	var profile models.UserProfile
	db.First(&profile, "id = ?", "U1")
	if profile.LoyaltyPoints != 100 || !profile.TotalSpent.Equal(dec("1000")) {
		t.Fatalf("profile = (%d, %s), want (100, 1000)", profile.LoyaltyPoints, profile.TotalSpent)
	}
	var earned models.LoyaltyTransaction
	db.First(&earned, "user_id = ?", "U1")
	if earned.Points != 100 || earned.TransactionType != models.LoyaltyTransactionEarn || earned.OrderId == nil || *earned.OrderId != "O1" {
		t.Fatalf("unexpected loyalty transaction %+v", earned)
	}

	var opLog models.OperationLog
	if err := db.First(&opLog, "reference_id = ?", "O1").Error; err != nil {
		t.Fatalf("operation log: %v", err)
	}
	if opLog.Operation != models.SyncEventOrderCreated || opLog.Status != models.OperationStatusSuccess {
		t.Fatalf("unexpected operation log %+v", opLog)
	}
}

func TestSyncOrderCreationFloorsStockAtZero(t *testing.T) {
	db := newTestDB(t)
	seedMarketplace(t, db)
	order := createOrder(t, db, "O2", "U1", models.OrderItem{ProductId: "P2", StoreId: "S2", Quantity: 7, UnitPrice: dec("50")})

	result, err := SyncOrderCreation(context.Background(), db, testLogger(), testOptions(), models.NewOrderSyncPayload(order, nil))
	if err != nil {
		t.Fatalf("SyncOrderCreation: %v", err)
	}
	if !result.Success {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
	if result.Synced(models.SyncDomainProject) {
		t.Fatalf("project step ran without a project id")
	}
	var product models.Product
	db.First(&product, "id = ?", "P2")
	if product.StockQuantity != 0 {
		t.Fatalf("stock = %d, want 0", product.StockQuantity)
	}
}

func TestSyncOrderCreationIsolatesProjectFailure(t *testing.T) {
	db := newTestDB(t)
	seedMarketplace(t, db)
	order := createOrder(t, db, "O3", "U1", models.OrderItem{ProductId: "P1", StoreId: "S1", Quantity: 2, UnitPrice: dec("200")})
	missing := "PR-missing"

	result, err := SyncOrderCreation(context.Background(), db, testLogger(), testOptions(), models.NewOrderSyncPayload(order, &missing))
	if err != nil {
		t.Fatalf("SyncOrderCreation: %v", err)
	}
	if result.Success {
		t.Fatalf("expected partial success")
	}
	if want := "inventory,accounting,providers,invoice,loyalty"; strings.Join(result.SyncedDomains, ",") != want {
		t.Fatalf("synced %v, want %s", result.SyncedDomains, want)
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "project: ") || !strings.Contains(result.Errors[0], "PR-missing") {
		t.Fatalf("unexpected errors %v", result.Errors)
	}

	var o models.Order
	db.First(&o, "id = ?", "O3")
	if o.ProjectId != nil {
		t.Fatalf("failed project step left order linked to %s", *o.ProjectId)
	}
	statuses, err := IdempotencyStatuses(db, models.SyncEventOrderCreated, "O3")
	if err != nil {
		t.Fatalf("IdempotencyStatuses: %v", err)
	}
	if statuses["project"] != models.IdempotencyStatusFailed || statuses["inventory"] != models.IdempotencyStatusSucceeded {
		t.Fatalf("unexpected idempotency statuses %v", statuses)
	}
	var opLog models.OperationLog
	db.First(&opLog, "reference_id = ?", "O3")
	if opLog.Status != models.OperationStatusPartial {
		t.Fatalf("operation log status %q, want partial", opLog.Status)
	}
}

func TestSyncOrderCreationRerunOnlyRetriesFailedSteps(t *testing.T) {
	db := newTestDB(t)
	seedMarketplace(t, db)
	order := createOrder(t, db, "O4", "U1", models.OrderItem{ProductId: "P1", StoreId: "S1", Quantity: 5, UnitPrice: dec("200")})
	projectId := "PR2"
	payload := models.NewOrderSyncPayload(order, &projectId)
	ctx := context.Background()

	first, err := SyncOrderCreation(ctx, db, testLogger(), testOptions(), payload)
	if err != nil || first.Success {
		t.Fatalf("first run should fail on the missing project: %v %+v", err, first)
	}

	mustCreate(t, db, &models.ConstructionProject{ID: "PR2", UserId: "U1", Name: "Warehouse"})

	second, err := SyncOrderCreation(ctx, db, testLogger(), testOptions(), payload)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.Success || len(second.SyncedDomains) != 6 {
		t.Fatalf("second run should complete: %+v", second)
	}
	if len(second.AlreadyApplied) != 5 {
		t.Fatalf("already applied %v, want the five earlier steps", second.AlreadyApplied)
	}

	third, err := SyncOrderCreation(ctx, db, testLogger(), testOptions(), payload)
	if err != nil || !third.Success || len(third.AlreadyApplied) != 6 {
		t.Fatalf("third run should be a no-op: %v %+v", err, third)
	}

	var product models.Product
	db.First(&product, "id = ?", "P1")
	if product.StockQuantity != 95 {
		t.Fatalf("stock = %d, want 95 after reruns", product.StockQuantity)
	}
	if n := countRows(t, db, &models.AccountingEntry{}, "reference_id = ?", "O4"); n != 3 {
		t.Fatalf("accounting entries = %d, want 3", n)
	}
	if n := countRows(t, db, &models.LoyaltyTransaction{}, "order_id = ?", "O4"); n != 1 {
		t.Fatalf("loyalty transactions = %d, want 1", n)
	}
	var project models.ConstructionProject
	db.First(&project, "id = ?", "PR2")
	if !project.SpentCost.Equal(dec("1000")) {
		t.Fatalf("spent_cost = %s, want 1000", project.SpentCost)
	}
}

func TestSyncOrderCreationGroupsStoreStatistics(t *testing.T) {
	db := newTestDB(t)
	seedMarketplace(t, db)
	mustCreate(t, db, &models.Product{ID: "P3", StoreId: "S1", Name: "Sand 1t", Price: dec("30"), StockQuantity: 10})
	order := createOrder(t, db, "O5", "U1",
		models.OrderItem{ProductId: "P1", StoreId: "S1", Quantity: 1, UnitPrice: dec("200")},
		models.OrderItem{ProductId: "P3", StoreId: "S1", Quantity: 2, UnitPrice: dec("30")},
		models.OrderItem{ProductId: "P2", StoreId: "S2", Quantity: 1, UnitPrice: dec("50")},
	)

	result, err := SyncOrderCreation(context.Background(), db, testLogger(), testOptions(), models.NewOrderSyncPayload(order, nil))
	if err != nil || !result.Success {
		t.Fatalf("SyncOrderCreation: %v %+v", err, result)
	}

	var s1, s2 models.Store
	db.First(&s1, "id = ?", "S1")
	db.First(&s2, "id = ?", "S2")
	if !s1.TotalSales.Equal(dec("260")) || s1.TotalOrders != 1 {
		t.Fatalf("S1 = (%s, %d), want (260, 1)", s1.TotalSales, s1.TotalOrders)
	}
	if !s2.TotalSales.Equal(dec("50")) || s2.TotalOrders != 1 {
		t.Fatalf("S2 = (%s, %d), want (50, 1)", s2.TotalSales, s2.TotalOrders)
	}
	var provider models.ServiceProvider
	db.First(&provider, "id = ?", "SP1")
	if !provider.TotalRevenue.Equal(dec("260")) || provider.TotalOrders != 1 {
		t.Fatalf("provider = (%s, %d), want (260, 1)", provider.TotalRevenue, provider.TotalOrders)
	}
	var profile models.UserProfile
	db.First(&profile, "id = ?", "U1")
	if profile.LoyaltyPoints != 31 {
		t.Fatalf("loyalty points = %d, want 31", profile.LoyaltyPoints)
	}
}

func TestSyncOrderCreationRejectsInvalidPayload(t *testing.T) {
	db := newTestDB(t)
	tests := []struct {
		name    string
		payload models.OrderSyncPayload
	}{
		{"no items", models.OrderSyncPayload{OrderId: "O1", UserId: "U1", TotalAmount: dec("10")}},
		{"negative total", models.OrderSyncPayload{OrderId: "O1", UserId: "U1", TotalAmount: dec("-1"),
			Items: []models.OrderSyncItem{{ProductId: "P1", Quantity: 1, UnitPrice: dec("1")}}}},
		{"negative quantity", models.OrderSyncPayload{OrderId: "O1", UserId: "U1", TotalAmount: dec("1"),
			Items: []models.OrderSyncItem{{ProductId: "P1", Quantity: -1, UnitPrice: dec("1")}}}},
		{"missing order id", models.OrderSyncPayload{UserId: "U1", TotalAmount: dec("1"),
			Items: []models.OrderSyncItem{{ProductId: "P1", Quantity: 1, UnitPrice: dec("1")}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SyncOrderCreation(context.Background(), db, testLogger(), testOptions(), tt.payload)
			if !errors.Is(err, ErrInvalidSyncPayload) {
				t.Fatalf("err = %v, want ErrInvalidSyncPayload", err)
			}
		})
	}
	if n := countRows(t, db, &models.OperationLog{}, "1 = 1"); n != 0 {
		t.Fatalf("invalid payloads wrote %d operation logs", n)
	}
}

func TestSyncOrderCreationParallelFanout(t *testing.T) {
	db := newTestDB(t)
	seedMarketplace(t, db)
	payload := scenarioPayload(t, db)
	opts := testOptions()
	opts.Settings.ParallelFanout = true

	result, err := SyncOrderCreation(context.Background(), db, testLogger(), opts, payload)
	if err != nil || !result.Success {
		t.Fatalf("parallel fan-out: %v %+v", err, result)
	}
	if want := "inventory,accounting,project,providers,invoice,loyalty"; strings.Join(result.SyncedDomains, ",") != want {
		t.Fatalf("synced %v, want step order %s", result.SyncedDomains, want)
	}
	report, err := CheckUserConsistency(context.Background(), db, opts, "U1")
	if err != nil {
		t.Fatalf("CheckUserConsistency: %v", err)
	}
	if !report.IsConsistent {
		t.Fatalf("parallel fan-out left drift: %v", report.Inconsistencies)
	}
}
