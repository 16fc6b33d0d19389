package workflow

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testOptions() Options {
	opts := NewOptions(config.DefaultSyncSettings())
	opts.Clock = func() time.Time { return testNow }
	return opts
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustCreate(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

// seedMarketplace creates user U1 with project PR1, provider SP1 owning store
// S1, an independent store S2, and products P1 (stock 100) and P2 (stock 3).
func seedMarketplace(t *testing.T, db *gorm.DB) {
	t.Helper()
	providerId := "SP1"
	mustCreate(t, db, &models.UserProfile{ID: "U1", FullName: "Aye Aye"})
	mustCreate(t, db, &models.ServiceProvider{ID: "SP1", Name: "Golden Build Supply"})
	mustCreate(t, db, &models.Store{ID: "S1", ProviderId: &providerId, Name: "Main Yard"})
	mustCreate(t, db, &models.Store{ID: "S2", Name: "Independent Depot"})
	mustCreate(t, db, &models.Product{ID: "P1", StoreId: "S1", Name: "Cement 50kg", Price: dec("200"), StockQuantity: 100})
	mustCreate(t, db, &models.Product{ID: "P2", StoreId: "S2", Name: "Rebar 12mm", Price: dec("50"), StockQuantity: 3})
	mustCreate(t, db, &models.InventoryMovement{ProductId: "P1", MovementType: models.MovementTypeIn, Quantity: 100, ReferenceType: models.MovementReferenceRestock, ReferenceId: "R1"})
	mustCreate(t, db, &models.InventoryMovement{ProductId: "P2", MovementType: models.MovementTypeIn, Quantity: 3, ReferenceType: models.MovementReferenceRestock, ReferenceId: "R1"})
	mustCreate(t, db, &models.ConstructionProject{ID: "PR1", UserId: "U1", Name: "Two-storey house", ProjectType: "residential", EstimatedCost: dec("50000")})
}

// createOrder stores an order the way the storefront does, before any fan-out.
func createOrder(t *testing.T, db *gorm.DB, id, userId string, items ...models.OrderItem) models.Order {
	t.Helper()
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	order := models.Order{
		ID:            id,
		UserId:        userId,
		TotalAmount:   total,
		PaymentMethod: "card",
		Status:        models.OrderStatusConfirmed,
		Items:         items,
	}
	mustCreate(t, db, &order)
	return order
}

func scenarioPayload(t *testing.T, db *gorm.DB) models.OrderSyncPayload {
	t.Helper()
	order := createOrder(t, db, "O1", "U1", models.OrderItem{ProductId: "P1", StoreId: "S1", Quantity: 5, UnitPrice: dec("200")})
	projectId := "PR1"
	return models.NewOrderSyncPayload(order, &projectId)
}
