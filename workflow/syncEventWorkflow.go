package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUnknownSyncEvent = errors.New("unknown sync event type")

// ErrPartialSync is returned when a durable event's fan-out left failed steps.
// Redelivery is safe: steps that already succeeded are skipped.
var ErrPartialSync = errors.New("sync partially applied")

// ProcessSyncEvent drives the fan-out recorded by an outbox event.
func ProcessSyncEvent(ctx context.Context, db *gorm.DB, logger *logrus.Logger, opts Options, msg config.SyncEventMessage) (*SyncResult, error) {
	if msg.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
	}

	var (
		result *SyncResult
		err    error
	)
	switch msg.EventType {
	case models.SyncEventOrderCreated:
		var payload models.OrderSyncPayload
		if err := utils.UnmarshalFromJSON(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSyncPayload, err.Error())
		}
		result, err = SyncOrderCreation(ctx, db, logger, opts, payload)
	case models.SyncEventProjectCreated:
		var payload models.ProjectSyncPayload
		if err := utils.UnmarshalFromJSON(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSyncPayload, err.Error())
		}
		result, err = SyncProjectCreation(ctx, db, logger, opts, payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSyncEvent, msg.EventType)
	}
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result, fmt.Errorf("%w: %v", ErrPartialSync, result.Errors)
	}
	return result, nil
}

// OutboxDirectProcessor processes unhandled outbox records without Pub/Sub.
// Intended for local/dev environments where Pub/Sub is not configured.
type OutboxDirectProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Options   Options
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewOutboxDirectProcessor(db *gorm.DB, logger *logrus.Logger, opts Options) *OutboxDirectProcessor {
	return &OutboxDirectProcessor{
		DB:        db,
		Logger:    logger,
		Options:   opts,
		WorkerID:  "direct-" + uuid.NewString(),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

func (p *OutboxDirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *OutboxDirectProcessor) processOnce(ctx context.Context) int {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.SyncEventRecord
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = ?", false).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &p.WorkerID
			if err := tx.Model(&models.SyncEventRecord{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": claimed[i].LockedAt,
					"locked_by": claimed[i].LockedBy,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(p.Logger, "syncEventWorkflow.go", "processOnce", "Claiming outbox rows", p.WorkerID, err)
		return 0
	}

	processed := 0
	for _, rec := range claimed {
		_, procErr := ProcessSyncEvent(ctx, p.DB, p.Logger, p.Options, models.ConvertToSyncEventMessage(rec))
		if procErr != nil {
			config.LogError(p.Logger, "syncEventWorkflow.go", "processOnce", "ProcessSyncEvent "+rec.EventType, rec.ReferenceId, procErr)
		} else {
			processed++
		}
		if err := models.MarkSyncEventProcessed(ctx, p.DB, rec.ID, procErr); err != nil {
			config.LogError(p.Logger, "syncEventWorkflow.go", "processOnce", "MarkSyncEventProcessed", rec.ID, err)
		}
	}
	return processed
}

// ReplaySyncEvent re-drives the latest outbox event recorded for a reference
// and marks it processed when every step has succeeded.
func ReplaySyncEvent(ctx context.Context, db *gorm.DB, logger *logrus.Logger, opts Options, eventType, referenceId string) (*SyncResult, error) {
	var rec models.SyncEventRecord
	if err := db.WithContext(ctx).
		Where("event_type = ? AND reference_id = ?", eventType, referenceId).
		Order("id DESC").
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s %s: %w", eventType, referenceId, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	result, procErr := ProcessSyncEvent(ctx, db, logger, opts, models.ConvertToSyncEventMessage(rec))
	if result == nil {
		return nil, procErr
	}
	if err := models.MarkSyncEventProcessed(ctx, db, rec.ID, procErr); err != nil {
		return result, err
	}
	return result, nil
}
