package workflow

import (
	"context"
	"fmt"

	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SyncProjectCreation seeds the financial profile, the inventory tracker and
// the default task list of a newly created project.
func SyncProjectCreation(ctx context.Context, db *gorm.DB, logger *logrus.Logger, opts Options, payload models.ProjectSyncPayload) (*SyncResult, error) {
	if err := utils.ValidateStruct(payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSyncPayload, err.Error())
	}

	steps := []syncStep{
		{models.SyncDomainFinancials, func(ctx context.Context, tx *gorm.DB) error { return syncProjectFinancials(tx, payload) }},
		{models.SyncDomainProjectInventory, func(ctx context.Context, tx *gorm.DB) error { return syncProjectInventory(tx, payload) }},
		{models.SyncDomainTasks, func(ctx context.Context, tx *gorm.DB) error { return syncProjectTasks(tx, payload) }},
	}
	return runFanout(ctx, db, logger, opts, models.SyncEventProjectCreated, payload.ProjectId, steps), nil
}

func syncProjectFinancials(tx *gorm.DB, p models.ProjectSyncPayload) error {
	financial := models.ProjectFinancial{
		ProjectId:       p.ProjectId,
		BudgetAllocated: p.Budget,
		BudgetSpent:     decimal.Zero,
		BudgetRemaining: p.Budget,
	}
	return tx.Create(&financial).Error
}

func syncProjectInventory(tx *gorm.DB, p models.ProjectSyncPayload) error {
	inventory := models.ProjectInventory{
		ProjectId:  p.ProjectId,
		Status:     models.ProjectInventoryStatusActive,
		TotalItems: 0,
		TotalValue: decimal.Zero,
	}
	return tx.Create(&inventory).Error
}

func syncProjectTasks(tx *gorm.DB, p models.ProjectSyncPayload) error {
	tasks := models.DefaultProjectTasks(p.ProjectId)
	return tx.Create(&tasks).Error
}
