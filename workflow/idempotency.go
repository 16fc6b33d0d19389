package workflow

import (
	"errors"
	"strings"
	"time"

	"github.com/buildhub/datasync_backend/models"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

const idempotencyStaleAfter = 5 * time.Minute

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// BeginIdempotency inserts STARTED. If SUCCEEDED exists, returns (true, nil) meaning "skip safely".
func BeginIdempotency(tx *gorm.DB, eventType, referenceId, handlerName string) (skip bool, err error) {
	key := models.IdempotencyKey{
		EventType:   eventType,
		ReferenceId: referenceId,
		HandlerName: handlerName,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !isDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("event_type = ? AND reference_id = ? AND handler_name = ?", eventType, referenceId, handlerName).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		// Another worker holds the step; a stale STARTED row is taken over.
		if time.Since(existing.UpdatedAt) < idempotencyStaleAfter {
			return false, ErrIdempotencyInProgress
		}
	}
	return false, tx.Model(&models.IdempotencyKey{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

func MarkIdempotencySucceeded(tx *gorm.DB, eventType, referenceId, handlerName string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("event_type = ? AND reference_id = ? AND handler_name = ?", eventType, referenceId, handlerName).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

// MarkIdempotencyFailed runs outside the step transaction, after its rollback
// has discarded the STARTED row, so it creates the row when none is left.
func MarkIdempotencyFailed(db *gorm.DB, eventType, referenceId, handlerName string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	res := db.Model(&models.IdempotencyKey{}).
		Where("event_type = ? AND reference_id = ? AND handler_name = ?", eventType, referenceId, handlerName).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	createErr := db.Create(&models.IdempotencyKey{
		EventType:   eventType,
		ReferenceId: referenceId,
		HandlerName: handlerName,
		Status:      models.IdempotencyStatusFailed,
		LastError:   &msg,
	}).Error
	if isDuplicateKeyErr(createErr) {
		return nil
	}
	return createErr
}

// IdempotencyStatuses returns handler -> status for one event, for replay reporting.
func IdempotencyStatuses(db *gorm.DB, eventType, referenceId string) (map[string]models.IdempotencyStatus, error) {
	var keys []models.IdempotencyKey
	if err := db.Where("event_type = ? AND reference_id = ?", eventType, referenceId).
		Order("id ASC").Find(&keys).Error; err != nil {
		return nil, err
	}
	out := make(map[string]models.IdempotencyStatus, len(keys))
	for _, k := range keys {
		out[k.HandlerName] = k.Status
	}
	return out, nil
}
