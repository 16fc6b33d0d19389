package graph

import (
	"context"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/middlewares"
	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Resolver serves both the GraphQL schema and the REST handlers, so the two
// surfaces share one cache and one set of workflow calls.
type Resolver struct {
	DB      func() *gorm.DB
	Logger  *logrus.Logger
	Options workflow.Options
}

func ConsistencyReportCacheKey(userId string) string {
	return "ConsistencyReport:" + userId
}

// ConsistencyReport runs the read-only check and caches the result as the
// user's latest report. With record set the drifts are also persisted.
func (r *Resolver) ConsistencyReport(ctx context.Context, userId string, record bool) (*models.ConsistencyReport, error) {
	db := r.DB()
	report, err := workflow.CheckUserConsistency(ctx, db, r.Options, userId)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, ConsistencyReportCacheKey(userId), report, r.Options.Settings.ReportCacheTTL); err != nil {
		config.LogError(r.Logger, "resolver.go", "ConsistencyReport", "SetRedisObject", userId, err)
	}
	if record {
		if err := workflow.RecordReconciliationReports(ctx, db, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// LatestConsistencyReport returns nil when nothing is cached.
func (r *Resolver) LatestConsistencyReport(ctx context.Context, userId string) (*models.ConsistencyReport, error) {
	var report models.ConsistencyReport
	found, err := config.GetRedisObject(ctx, ConsistencyReportCacheKey(userId), &report)
	if err != nil || !found {
		return nil, err
	}
	return &report, nil
}

func (r *Resolver) SyncOrder(ctx context.Context, payload models.OrderSyncPayload) (*workflow.SyncResult, error) {
	return workflow.SyncOrderCreation(ctx, r.DB(), r.Logger, r.Options, payload)
}

func (r *Resolver) SyncProject(ctx context.Context, payload models.ProjectSyncPayload) (*workflow.SyncResult, error) {
	return workflow.SyncProjectCreation(ctx, r.DB(), r.Logger, r.Options, payload)
}

// ReconcileUser repairs the user's aggregates and drops the cached report,
// which no longer describes the data.
func (r *Resolver) ReconcileUser(ctx context.Context, userId string) (*models.RepairResult, error) {
	result, err := workflow.ReconcileUserData(ctx, r.DB(), r.Logger, r.Options, userId)
	if err != nil {
		return nil, err
	}
	if err := config.RemoveRedisKey(ctx, ConsistencyReportCacheKey(userId)); err != nil {
		config.LogError(r.Logger, "resolver.go", "ReconcileUser", "RemoveRedisKey", userId, err)
	}
	return result, nil
}

func (r *Resolver) DriftEntity(ctx context.Context, drift models.Drift) (*models.DriftEntity, error) {
	return middlewares.GetDriftEntity(ctx, drift.EntityType, drift.EntityId)
}
