package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	errStockRepairDisabled = errors.New("manual review required, stock auto-repair is disabled")
	errNegativeStockLedger = errors.New("manual review required, inventory ledger is negative")
)

// ReconcileUserData re-runs the consistency check and overwrites each drifting
// aggregate with the value recomputed from its ledger. Check and repairs share
// one transaction and run under the user's reconcile lock. A repair that fails
// is rolled back to its savepoint and reported as remaining.
func ReconcileUserData(ctx context.Context, db *gorm.DB, logger *logrus.Logger, opts Options, userId string) (*models.RepairResult, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidSyncPayload)
	}
	ctx, span := tracer.Start(ctx, "consistency.reconcile")
	defer span.End()

	release, err := opts.locker().Lock(ctx, reconcileLockKey(userId), opts.Settings.ReconcileLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	result := models.NewRepairResult(userId)
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := collectDrifts(tx, opts, userId)
		if err != nil {
			return err
		}
		for _, drift := range report.Drifts {
			var written decimal.Decimal
			repairErr := tx.Transaction(func(stx *gorm.DB) error {
				var err error
				written, err = repairDrift(stx, opts, drift)
				return err
			})
			if repairErr != nil {
				result.Remaining(fmt.Sprintf("%s: %s", drift.Message, repairErr.Error()))
				continue
			}
			result.Fixed(fmt.Sprintf("Fixed %s of %s %s: %s -> %s",
				repairedField(drift.CheckType), drift.EntityType, drift.EntityId, drift.Cached.String(), written.String()))
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "ReconcileUserData", "Reconcile transaction", userId, err)
		return nil, err
	}
	result.Finish()

	status := models.OperationStatusSuccess
	if !result.Success {
		status = models.OperationStatusPartial
	}
	if err := models.WriteOperationLog(ctx, db, "RECONCILE_USER", userId, status, result); err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "ReconcileUserData", "WriteOperationLog", userId, err)
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":            "ReconcileUserData",
			"user_id":          userId,
			"fixed_issues":     len(result.FixedIssues),
			"remaining_issues": len(result.RemainingIssues),
		}).Info("reconciliation finished")
	}
	return result, nil
}

func repairedField(check models.CheckType) string {
	switch check {
	case models.CheckUserTotalSpent:
		return "total_spent"
	case models.CheckUserLoyaltyPoints:
		return "loyalty_points"
	case models.CheckProjectSpentCost:
		return "spent_cost"
	case models.CheckProductStock:
		return "stock_quantity"
	}
	return string(check)
}

// repairDrift recomputes the money and points aggregates in the UPDATE itself
// so concurrent increments are not lost between read and write. It returns the
// value written. A negative stock ledger cannot be stored under the zero floor
// and is left for review.
func repairDrift(tx *gorm.DB, opts Options, drift models.Drift) (decimal.Decimal, error) {
	var res *gorm.DB
	switch drift.CheckType {
	case models.CheckUserTotalSpent:
		res = tx.Model(&models.UserProfile{}).Where("id = ?", drift.EntityId).
			Update("total_spent", tx.Session(&gorm.Session{NewDB: true}).Model(&models.Order{}).
				Select("COALESCE(SUM(total_amount), 0)").Where("user_id = ?", drift.EntityId))
	case models.CheckUserLoyaltyPoints:
		res = tx.Model(&models.UserProfile{}).Where("id = ?", drift.EntityId).
			Update("loyalty_points", tx.Session(&gorm.Session{NewDB: true}).Model(&models.LoyaltyTransaction{}).
				Select("COALESCE(SUM(points), 0)").Where("user_id = ?", drift.EntityId))
	case models.CheckProjectSpentCost:
		res = tx.Model(&models.ConstructionProject{}).Where("id = ?", drift.EntityId).
			Update("spent_cost", tx.Session(&gorm.Session{NewDB: true}).Model(&models.Order{}).
				Select("COALESCE(SUM(total_amount), 0)").Where("project_id = ?", drift.EntityId))
	case models.CheckProductStock:
		if !opts.Settings.StockAutoRepair {
			return decimal.Zero, errStockRepairDisabled
		}
		if drift.Computed.IsNegative() {
			return decimal.Zero, errNegativeStockLedger
		}
		res = tx.Model(&models.Product{}).Where("id = ?", drift.EntityId).Update("stock_quantity", drift.Computed.IntPart())
	default:
		return decimal.Zero, fmt.Errorf("no repair for check %s", drift.CheckType)
	}
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, gorm.ErrRecordNotFound
	}
	return drift.Computed, nil
}
