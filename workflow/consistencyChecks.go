package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Entity types carried by drifts and reconciliation reports.
const (
	EntityUserProfile = "user_profile"
	EntityProject     = "construction_project"
	EntityProduct     = "product"
)

// CheckUserConsistency compares the user's cached aggregates with the ledgers
// they derive from. It writes nothing.
func CheckUserConsistency(ctx context.Context, db *gorm.DB, opts Options, userId string) (*models.ConsistencyReport, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidSyncPayload)
	}
	ctx, span := tracer.Start(ctx, "consistency.check")
	defer span.End()
	return collectDrifts(db.WithContext(ctx), opts, userId)
}

func collectDrifts(tx *gorm.DB, opts Options, userId string) (*models.ConsistencyReport, error) {
	report := models.NewConsistencyReport(userId, opts.now())

	if err := checkUserProfile(tx, opts, userId, report); err != nil {
		return nil, err
	}
	if err := checkUserProjects(tx, opts, userId, report); err != nil {
		return nil, err
	}
	if err := checkOrderedProductStock(tx, opts, userId, report); err != nil {
		return nil, err
	}
	return report, nil
}

// checkUserProfile skips users without a profile: there is no cached value to drift.
func checkUserProfile(tx *gorm.DB, opts Options, userId string, report *models.ConsistencyReport) error {
	var profile models.UserProfile
	if err := tx.Where("id = ?", userId).Take(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	spent, err := sumUserOrders(tx, userId)
	if err != nil {
		return err
	}
	if exceedsTolerance(profile.TotalSpent, spent, opts.Settings.SpentTolerance) {
		report.AddDrift(models.Drift{
			CheckType:      models.CheckUserTotalSpent,
			EntityType:     EntityUserProfile,
			EntityId:       userId,
			Cached:         profile.TotalSpent,
			Computed:       spent,
			Message:        fmt.Sprintf("User total_spent mismatch: cached %s, computed %s from orders", profile.TotalSpent.StringFixed(2), spent.StringFixed(2)),
			Recommendation: "Recompute user_profiles.total_spent from orders (reconcile)",
		})
	}

	points, err := sumLoyaltyPoints(tx, userId)
	if err != nil {
		return err
	}
	if int64(profile.LoyaltyPoints) != points {
		report.AddDrift(models.Drift{
			CheckType:      models.CheckUserLoyaltyPoints,
			EntityType:     EntityUserProfile,
			EntityId:       userId,
			Cached:         decimal.NewFromInt(int64(profile.LoyaltyPoints)),
			Computed:       decimal.NewFromInt(points),
			Message:        fmt.Sprintf("User loyalty_points mismatch: cached %d, computed %d from loyalty transactions", profile.LoyaltyPoints, points),
			Recommendation: "Recompute user_profiles.loyalty_points from loyalty_transactions (reconcile)",
		})
	}
	return nil
}

func checkUserProjects(tx *gorm.DB, opts Options, userId string, report *models.ConsistencyReport) error {
	var projects []models.ConstructionProject
	if err := tx.Where("user_id = ?", userId).Order("id ASC").Find(&projects).Error; err != nil {
		return err
	}
	for _, project := range projects {
		spent, err := sumProjectOrders(tx, project.ID)
		if err != nil {
			return err
		}
		if !exceedsTolerance(project.SpentCost, spent, opts.Settings.SpentTolerance) {
			continue
		}
		report.AddDrift(models.Drift{
			CheckType:      models.CheckProjectSpentCost,
			EntityType:     EntityProject,
			EntityId:       project.ID,
			Cached:         project.SpentCost,
			Computed:       spent,
			Message:        fmt.Sprintf("Project %s spent_cost mismatch: cached %s, computed %s from linked orders", project.ID, project.SpentCost.StringFixed(2), spent.StringFixed(2)),
			Recommendation: fmt.Sprintf("Recompute spent_cost of project %s from linked orders (reconcile)", project.ID),
		})
	}
	return nil
}

// checkOrderedProductStock covers every product that has an order movement
// for one of the user's orders. The ledger sum spans all of the product's
// movements, not just the user's.
func checkOrderedProductStock(tx *gorm.DB, opts Options, userId string, report *models.ConsistencyReport) error {
	var productIds []string
	userOrders := tx.Session(&gorm.Session{NewDB: true}).Model(&models.Order{}).Select("id").Where("user_id = ?", userId)
	if err := tx.Model(&models.InventoryMovement{}).
		Distinct("product_id").
		Where("reference_type = ? AND reference_id IN (?)", models.MovementReferenceOrder, userOrders).
		Order("product_id ASC").
		Pluck("product_id", &productIds).Error; err != nil {
		return err
	}
	if len(productIds) == 0 {
		return nil
	}

	var products []models.Product
	if err := tx.Where("id IN ?", productIds).Order("id ASC").Find(&products).Error; err != nil {
		return err
	}
	ledger, err := stockLedger(tx, productIds)
	if err != nil {
		return err
	}

	for _, product := range products {
		computed := ledger[product.ID]
		if int64(product.StockQuantity) == computed {
			continue
		}
		recommendation := "Review inventory_movements of product %s; stock is not auto-repaired"
		if opts.Settings.StockAutoRepair && computed >= 0 {
			recommendation = "Recompute stock_quantity of product %s from inventory_movements (reconcile)"
		}
		report.AddDrift(models.Drift{
			CheckType:      models.CheckProductStock,
			EntityType:     EntityProduct,
			EntityId:       product.ID,
			Cached:         decimal.NewFromInt(int64(product.StockQuantity)),
			Computed:       decimal.NewFromInt(computed),
			Message:        fmt.Sprintf("Product %s stock mismatch: cached %d, computed %d from inventory movements", product.ID, product.StockQuantity, computed),
			Recommendation: fmt.Sprintf(recommendation, product.ID),
		})
	}
	return nil
}

func exceedsTolerance(cached, computed, tolerance decimal.Decimal) bool {
	return cached.Sub(computed).Abs().GreaterThan(tolerance)
}

func sumUserOrders(tx *gorm.DB, userId string) (decimal.Decimal, error) {
	var row struct{ Total decimal.Decimal }
	err := tx.Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0) AS total").
		Where("user_id = ?", userId).
		Scan(&row).Error
	return row.Total, err
}

func sumProjectOrders(tx *gorm.DB, projectId string) (decimal.Decimal, error) {
	var row struct{ Total decimal.Decimal }
	err := tx.Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0) AS total").
		Where("project_id = ?", projectId).
		Scan(&row).Error
	return row.Total, err
}

func sumLoyaltyPoints(tx *gorm.DB, userId string) (int64, error) {
	var row struct{ Total int64 }
	err := tx.Model(&models.LoyaltyTransaction{}).
		Select("COALESCE(SUM(points), 0) AS total").
		Where("user_id = ?", userId).
		Scan(&row).Error
	return row.Total, err
}

// stockLedger returns sum(in) - sum(out) per product.
func stockLedger(tx *gorm.DB, productIds []string) (map[string]int64, error) {
	var rows []struct {
		ProductId string
		Quantity  int64
	}
	err := tx.Model(&models.InventoryMovement{}).
		Select("product_id, COALESCE(SUM(CASE WHEN movement_type = ? THEN quantity ELSE 0 END), 0) - COALESCE(SUM(CASE WHEN movement_type = ? THEN quantity ELSE 0 END), 0) AS quantity",
			models.MovementTypeIn, models.MovementTypeOut).
		Where("product_id IN ?", productIds).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ProductId] = r.Quantity
	}
	return out, nil
}

// RecordReconciliationReports persists every drift of a report.
func RecordReconciliationReports(ctx context.Context, db *gorm.DB, report *models.ConsistencyReport) error {
	if report == nil || len(report.Drifts) == 0 {
		return nil
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	rows := make([]models.ReconciliationReport, 0, len(report.Drifts))
	for _, d := range report.Drifts {
		details, err := utils.MarshalToJSON(d)
		if err != nil {
			return err
		}
		rows = append(rows, models.ReconciliationReport{
			UserId:        report.UserId,
			CheckType:     d.CheckType,
			EntityType:    d.EntityType,
			EntityId:      d.EntityId,
			Details:       details,
			CorrelationId: correlationId,
		})
	}
	return db.WithContext(ctx).Create(&rows).Error
}
