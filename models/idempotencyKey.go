package models

import "time"

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyKey records the outcome of one fan-out step for one event.
// Unique constraint: (event_type, reference_id, handler_name).
type IdempotencyKey struct {
	ID          int               `gorm:"primary_key" json:"id"`
	EventType   string            `gorm:"size:50;not null;uniqueIndex:uniq_idem" json:"event_type"`
	ReferenceId string            `gorm:"size:64;not null;uniqueIndex:uniq_idem" json:"reference_id"`
	HandlerName string            `gorm:"size:50;not null;uniqueIndex:uniq_idem" json:"handler_name"`
	Status      IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	LastError   *string           `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
