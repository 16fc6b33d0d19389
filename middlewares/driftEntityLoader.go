package middlewares

import (
	"context"
	"errors"
	"strings"

	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/workflow"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type driftEntityReader struct {
	db *gorm.DB
}

func driftEntityKey(entityType, id string) string {
	return entityType + ":" + id
}

// getDriftEntities runs one query per entity type in the batch. Keys without a
// matching row resolve to nil.
func (r *driftEntityReader) getDriftEntities(ctx context.Context, keys []string) []*dataloader.Result[*models.DriftEntity] {
	idsByType := map[string][]string{}
	for _, key := range keys {
		entityType, id, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		idsByType[entityType] = append(idsByType[entityType], id)
	}

	found := map[string]*models.DriftEntity{}
	for entityType, ids := range idsByType {
		var query *gorm.DB
		switch entityType {
		case workflow.EntityUserProfile:
			query = r.db.WithContext(ctx).Model(&models.UserProfile{}).Select("id, full_name AS name")
		case workflow.EntityProject:
			query = r.db.WithContext(ctx).Model(&models.ConstructionProject{}).Select("id, name")
		case workflow.EntityProduct:
			query = r.db.WithContext(ctx).Model(&models.Product{}).Select("id, name")
		default:
			continue
		}
		var rows []models.DriftEntity
		if err := query.Where("id IN ?", ids).Scan(&rows).Error; err != nil {
			return handleError[*models.DriftEntity](len(keys), err)
		}
		for i := range rows {
			rows[i].Type = entityType
			found[driftEntityKey(entityType, rows[i].ID)] = &rows[i]
		}
	}

	results := make([]*dataloader.Result[*models.DriftEntity], 0, len(keys))
	for _, key := range keys {
		results = append(results, &dataloader.Result[*models.DriftEntity]{Data: found[key]})
	}
	return results
}

func GetDriftEntity(ctx context.Context, entityType, id string) (*models.DriftEntity, error) {
	loaders, ok := For(ctx)
	if !ok {
		return nil, errors.New("dataloaders missing from request context")
	}
	return loaders.driftEntityLoader.Load(ctx, driftEntityKey(entityType, id))()
}
