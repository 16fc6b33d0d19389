package middlewares

import (
	"context"
	"time"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap the per-request data loaders.
type Loaders struct {
	driftEntityLoader *dataloader.Loader[string, *models.DriftEntity]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	driftEntityReader := &driftEntityReader{db: conn}
	return &Loaders{
		driftEntityLoader: dataloader.NewBatchedLoader(driftEntityReader.getDriftEntities, dataloader.WithWait[string, *models.DriftEntity](time.Millisecond)),
	}
}

// LoaderMiddleware gives every request its own loaders so cached rows never
// outlive the request.
func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithLoaders(c.Request.Context(), NewLoaders(config.GetDB())))
		c.Next()
	}
}

func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

func For(ctx context.Context) (*Loaders, bool) {
	loaders, ok := ctx.Value(loadersKey).(*Loaders)
	return loaders, ok && loaders != nil
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
