package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outbox publish statuses for SyncEventRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// SyncEventRecord is the transactional outbox: a creation event written in the
// same transaction as the order/project, published and processed after commit.
type SyncEventRecord struct {
	ID               int        `gorm:"primary_key" json:"id"`
	EventType        string     `gorm:"size:50;not null;index:idx_sync_event_ref,priority:1" json:"event_type"`
	ReferenceId      string     `gorm:"size:64;not null;index:idx_sync_event_ref,priority:2" json:"reference_id"`
	UserId           string     `gorm:"size:64;index" json:"user_id"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	PublishStatus    string     `gorm:"size:20;index;default:PENDING" json:"publish_status"`
	PublishAttempts  int        `gorm:"default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pub_sub_message_id"`
	PublishedAt      *time.Time `json:"published_at"`
	IsProcessed      bool       `gorm:"index;default:false" json:"is_processed"`
	ProcessedAt      *time.Time `json:"processed_at"`
	LastProcessError *string    `gorm:"type:text" json:"last_process_error"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// RecordSyncEvent writes an outbox row inside the caller's transaction.
func RecordSyncEvent(ctx context.Context, tx *gorm.DB, eventType string, referenceId string, userId string, payload any) (*SyncEventRecord, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	record := SyncEventRecord{
		EventType:     eventType,
		ReferenceId:   referenceId,
		UserId:        userId,
		Payload:       raw,
		CorrelationId: correlationIdFromContextOrNew(ctx),
		PublishStatus: OutboxPublishStatusPending,
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func MarkSyncEventProcessed(ctx context.Context, db *gorm.DB, id int, processErr error) error {
	updates := map[string]interface{}{
		"locked_at": nil,
		"locked_by": nil,
	}
	if processErr != nil {
		msg := processErr.Error()
		updates["last_process_error"] = &msg
	} else {
		now := time.Now().UTC()
		updates["is_processed"] = true
		updates["processed_at"] = &now
		updates["last_process_error"] = nil
	}
	return db.WithContext(ctx).Model(&SyncEventRecord{}).Where("id = ?", id).Updates(updates).Error
}

func ConvertToSyncEventMessage(record SyncEventRecord) config.SyncEventMessage {
	return config.SyncEventMessage{
		ID:            record.ID,
		EventType:     record.EventType,
		ReferenceId:   record.ReferenceId,
		UserId:        record.UserId,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
		OccurredAt:    record.CreatedAt,
	}
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
