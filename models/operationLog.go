package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/buildhub/datasync_backend/utils"
	"gorm.io/gorm"
)

type OperationLog struct {
	ID            int       `gorm:"primary_key" json:"id"`
	Operation     string    `gorm:"size:50;index;not null" json:"operation"`
	ReferenceId   string    `gorm:"size:64;index" json:"reference_id"`
	Status        string    `gorm:"size:20" json:"status"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	OperationStatusSuccess = "success"
	OperationStatusPartial = "partial"
)

func WriteOperationLog(ctx context.Context, db *gorm.DB, operation string, referenceId string, status string, details any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	return db.WithContext(ctx).Create(&OperationLog{
		Operation:     operation,
		ReferenceId:   referenceId,
		Status:        status,
		Details:       string(raw),
		CorrelationId: cid,
	}).Error
}
