package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/buildhub/datasync_backend/models"
)

func TestReconcileUserDataRepairsCachedAggregates(t *testing.T) {
	db := syncedScenario(t)
	createOrder(t, db, "O-untracked", "U1", models.OrderItem{ProductId: "P2", StoreId: "S2", Quantity: 1, UnitPrice: dec("50")})
	db.Model(&models.Order{}).Where("id = ?", "O-untracked").Update("project_id", "PR1")
	db.Model(&models.UserProfile{}).Where("id = ?", "U1").Update("loyalty_points", 3)

	opts := testOptions()
	before := checkUser(t, db, opts, "U1")
	if len(before.Drifts) != 3 {
		t.Fatalf("expected spent, loyalty and project drift, got %v", before.Inconsistencies)
	}

	result, err := ReconcileUserData(context.Background(), db, testLogger(), opts, "U1")
	if err != nil {
		t.Fatalf("ReconcileUserData: %v", err)
	}
	if !result.Success || len(result.FixedIssues) != 3 || len(result.RemainingIssues) != 0 {
		t.Fatalf("unexpected repair result %+v", result)
	}

	var profile models.UserProfile
	db.First(&profile, "id = ?", "U1")
	if !profile.TotalSpent.Equal(dec("1050")) || profile.LoyaltyPoints != 100 {
		t.Fatalf("profile = (%s, %d), want (1050, 100)", profile.TotalSpent, profile.LoyaltyPoints)
	}
	var project models.ConstructionProject
	db.First(&project, "id = ?", "PR1")
	if !project.SpentCost.Equal(dec("1050")) {
		t.Fatalf("spent_cost = %s, want 1050", project.SpentCost)
	}

	if after := checkUser(t, db, opts, "U1"); !after.IsConsistent {
		t.Fatalf("drift after reconcile: %v", after.Inconsistencies)
	}
	var opLog models.OperationLog
	if err := db.First(&opLog, "operation = ? AND reference_id = ?", "RECONCILE_USER", "U1").Error; err != nil {
		t.Fatalf("operation log: %v", err)
	}
}

func TestReconcileUserDataLeavesStockForReview(t *testing.T) {
	db := syncedScenario(t)
	db.Model(&models.Product{}).Where("id = ?", "P1").Update("stock_quantity", 42)

	result, err := ReconcileUserData(context.Background(), db, testLogger(), testOptions(), "U1")
	if err != nil {
		t.Fatalf("ReconcileUserData: %v", err)
	}
	if result.Success || len(result.RemainingIssues) != 1 || len(result.FixedIssues) != 0 {
		t.Fatalf("unexpected repair result %+v", result)
	}
	if !strings.Contains(result.RemainingIssues[0], "manual review") {
		t.Fatalf("remaining issue %q", result.RemainingIssues[0])
	}
	var product models.Product
	db.First(&product, "id = ?", "P1")
	if product.StockQuantity != 42 {
		t.Fatalf("stock changed to %d without auto-repair", product.StockQuantity)
	}
}

func TestReconcileUserDataStockAutoRepair(t *testing.T) {
	db := syncedScenario(t)
	db.Model(&models.Product{}).Where("id = ?", "P1").Update("stock_quantity", 42)
	opts := testOptions()
	opts.Settings.StockAutoRepair = true

	result, err := ReconcileUserData(context.Background(), db, testLogger(), opts, "U1")
	if err != nil {
		t.Fatalf("ReconcileUserData: %v", err)
	}
	if !result.Success || len(result.FixedIssues) != 1 {
		t.Fatalf("unexpected repair result %+v", result)
	}
	var product models.Product
	db.First(&product, "id = ?", "P1")
	if product.StockQuantity != 95 {
		t.Fatalf("stock = %d, want ledger value 95", product.StockQuantity)
	}
}

func TestReconcileUserDataKeepsNegativeStockLedgerForReview(t *testing.T) {
	db := newTestDB(t)
	seedMarketplace(t, db)
	opts := testOptions()
	opts.Settings.StockAutoRepair = true

	// P2 holds 3 units; ordering 7 floors the stock at 0 while the ledger goes to -4.
	order := createOrder(t, db, "O2", "U1", models.OrderItem{ProductId: "P2", StoreId: "S2", Quantity: 7, UnitPrice: dec("50")})
	if result, err := SyncOrderCreation(context.Background(), db, testLogger(), opts, models.NewOrderSyncPayload(order, nil)); err != nil || !result.Success {
		t.Fatalf("fan-out: %v %+v", err, result)
	}

	result, err := ReconcileUserData(context.Background(), db, testLogger(), opts, "U1")
	if err != nil {
		t.Fatalf("ReconcileUserData: %v", err)
	}
	if result.Success || len(result.FixedIssues) != 0 || len(result.RemainingIssues) != 1 {
		t.Fatalf("unexpected repair result %+v", result)
	}
	if !strings.Contains(result.RemainingIssues[0], "Product P2") || !strings.Contains(result.RemainingIssues[0], "ledger is negative") {
		t.Fatalf("remaining issue = %q", result.RemainingIssues[0])
	}

	var product models.Product
	db.First(&product, "id = ?", "P2")
	if product.StockQuantity != 0 {
		t.Fatalf("stock = %d, want 0", product.StockQuantity)
	}

	// The drift is reported again, not silently claimed as fixed.
	report := checkUser(t, db, opts, "U1")
	if report.IsConsistent || len(report.Drifts) != 1 || report.Drifts[0].EntityId != "P2" {
		t.Fatalf("unexpected recheck %+v", report.Inconsistencies)
	}
	if strings.Contains(report.Recommendations[0], "reconcile") {
		t.Fatalf("recommendation should ask for review: %q", report.Recommendations[0])
	}
}

func TestReconcileUserDataFixedMessageShowsWrittenValue(t *testing.T) {
	db := syncedScenario(t)
	db.Model(&models.Product{}).Where("id = ?", "P1").Update("stock_quantity", 42)
	opts := testOptions()
	opts.Settings.StockAutoRepair = true

	result, err := ReconcileUserData(context.Background(), db, testLogger(), opts, "U1")
	if err != nil {
		t.Fatalf("ReconcileUserData: %v", err)
	}
	if len(result.FixedIssues) != 1 || result.FixedIssues[0] != "Fixed stock_quantity of product P1: 42 -> 95" {
		t.Fatalf("fixed issues = %q", result.FixedIssues)
	}
	if report := checkUser(t, db, opts, "U1"); !report.IsConsistent {
		t.Fatalf("recheck after repair: %v", report.Inconsistencies)
	}
}

func TestReconcileProjectLedgerAfterManyOrders(t *testing.T) {
	db := newTestDB(t)
	seedMarketplace(t, db)
	opts := testOptions()
	projectId := "PR1"
	for _, id := range []string{"A1", "A2", "A3", "A4"} {
		order := createOrder(t, db, id, "U1", models.OrderItem{ProductId: "P1", StoreId: "S1", Quantity: 1, UnitPrice: dec("125.50")})
		if result, err := SyncOrderCreation(context.Background(), db, testLogger(), opts, models.NewOrderSyncPayload(order, &projectId)); err != nil || !result.Success {
			t.Fatalf("order %s: %v %+v", id, err, result)
		}
	}
	// An admin edit knocks the cache off the ledger.
	db.Model(&models.ConstructionProject{}).Where("id = ?", "PR1").Update("spent_cost", dec("12"))

	if _, err := ReconcileUserData(context.Background(), db, testLogger(), opts, "U1"); err != nil {
		t.Fatalf("ReconcileUserData: %v", err)
	}
	var project models.ConstructionProject
	db.First(&project, "id = ?", "PR1")
	if !project.SpentCost.Equal(dec("502")) {
		t.Fatalf("spent_cost = %s, want 502", project.SpentCost)
	}
}

func TestReconcileUserDataRequiresUser(t *testing.T) {
	db := newTestDB(t)
	if _, err := ReconcileUserData(context.Background(), db, testLogger(), testOptions(), ""); !errors.Is(err, ErrInvalidSyncPayload) {
		t.Fatalf("err = %v", err)
	}
}

func TestReconcileUserDataHonoursLock(t *testing.T) {
	db := syncedScenario(t)
	opts := testOptions()
	locker := NewLocalUserLocker()
	opts.Locker = locker

	release, err := locker.Lock(context.Background(), reconcileLockKey("U1"), time.Second)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := ReconcileUserData(ctx, db, testLogger(), opts, "U1"); !errors.Is(err, ErrReconcileInProgress) {
		t.Fatalf("err = %v, want ErrReconcileInProgress", err)
	}
}

func TestLocalUserLockerSerializesPerKey(t *testing.T) {
	locker := NewLocalUserLocker()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(context.Background(), "reconcile:U1", time.Second)
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			release()
			release()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("%d holders at once", maxSeen)
	}

	other, err := locker.Lock(context.Background(), "reconcile:U2", time.Second)
	if err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}
	other()
}

func TestFallbackUserLockerWithoutRedis(t *testing.T) {
	locker := NewFallbackUserLocker(func() *redislock.Client { return nil })
	release, err := locker.Lock(context.Background(), "reconcile:U1", time.Second)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "reconcile:U1", time.Second); !errors.Is(err, ErrReconcileInProgress) {
		t.Fatalf("second holder: err = %v", err)
	}
	release()
}
