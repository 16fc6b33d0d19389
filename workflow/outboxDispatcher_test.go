package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/models"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/goleak"
	"gorm.io/gorm"
)

func recordOrderEvent(t *testing.T, db *gorm.DB, orderId string, projectId *string) *models.SyncEventRecord {
	t.Helper()
	payload := models.OrderSyncPayload{
		OrderId:     orderId,
		UserId:      "U1",
		TotalAmount: dec("1000"),
		Items:       []models.OrderSyncItem{{ProductId: "P1", StoreId: "S1", Quantity: 5, UnitPrice: dec("200")}},
		ProjectId:   projectId,
	}
	rec, err := models.RecordSyncEvent(context.Background(), db, models.SyncEventOrderCreated, orderId, "U1", payload)
	if err != nil {
		t.Fatalf("RecordSyncEvent: %v", err)
	}
	return rec
}

func loadRecord(t *testing.T, db *gorm.DB, id int) models.SyncEventRecord {
	t.Helper()
	var rec models.SyncEventRecord
	if err := db.First(&rec, "id = ?", id).Error; err != nil {
		t.Fatalf("load outbox row: %v", err)
	}
	return rec
}

func TestOutboxDispatcherPublishesPendingRows(t *testing.T) {
	db := newTestDB(t)
	rec := recordOrderEvent(t, db, "O1", nil)

	var got []config.SyncEventMessage
	d := NewOutboxDispatcher(db, testLogger())
	d.Publisher = PublisherFunc(func(ctx context.Context, msg config.SyncEventMessage) (string, error) {
		got = append(got, msg)
		return "msg-1", nil
	})

	if sent := d.dispatchOnce(context.Background()); sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if len(got) != 1 || got[0].EventType != models.SyncEventOrderCreated || got[0].ReferenceId != "O1" || got[0].CorrelationId == "" {
		t.Fatalf("unexpected message %+v", got)
	}
	row := loadRecord(t, db, rec.ID)
	if row.PublishStatus != models.OutboxPublishStatusSent || row.PublishAttempts != 1 || row.PubSubMessageId == nil || *row.PubSubMessageId != "msg-1" || row.LockedBy != nil {
		t.Fatalf("unexpected row %+v", row)
	}

	if sent := d.dispatchOnce(context.Background()); sent != 0 || len(got) != 1 {
		t.Fatalf("sent row published again")
	}
}

func TestOutboxDispatcherBacksOffThenDies(t *testing.T) {
	db := newTestDB(t)
	rec := recordOrderEvent(t, db, "O1", nil)

	calls := 0
	d := NewOutboxDispatcher(db, testLogger())
	d.MaxAttempts = 2
	d.Publisher = PublisherFunc(func(ctx context.Context, msg config.SyncEventMessage) (string, error) {
		calls++
		return "", errors.New("topic not found")
	})

	d.dispatchOnce(context.Background())
	row := loadRecord(t, db, rec.ID)
	if row.PublishStatus != models.OutboxPublishStatusFailed || row.PublishAttempts != 1 || row.NextAttemptAt == nil || row.LastPublishError == nil {
		t.Fatalf("unexpected row after first failure %+v", row)
	}

	d.dispatchOnce(context.Background())
	if calls != 1 {
		t.Fatalf("row retried before its backoff elapsed")
	}

	db.Model(&models.SyncEventRecord{}).Where("id = ?", rec.ID).Update("next_attempt_at", time.Now().UTC().Add(-time.Minute))
	d.dispatchOnce(context.Background())
	row = loadRecord(t, db, rec.ID)
	if calls != 2 || row.PublishStatus != models.OutboxPublishStatusDead || row.PublishAttempts != 2 {
		t.Fatalf("calls=%d row=%+v, want DEAD after 2 attempts", calls, row)
	}

	if err := ReplayOutboxRecord(context.Background(), db, rec.ID); err != nil {
		t.Fatalf("ReplayOutboxRecord: %v", err)
	}
	row = loadRecord(t, db, rec.ID)
	if row.PublishStatus != models.OutboxPublishStatusPending || row.PublishAttempts != 0 || row.LastPublishError != nil {
		t.Fatalf("unexpected row after replay %+v", row)
	}
	if err := ReplayOutboxRecord(context.Background(), db, rec.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("replaying a pending row: err = %v", err)
	}
}

func TestOutboxDispatcherLogsFailedStatusUpdates(t *testing.T) {
	tests := []struct {
		name        string
		attempts    int
		wantContext string
	}{
		{"retry", 1, "Scheduling outbox retry"},
		{"dead", 3, "Moving outbox row to DEAD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			rec := recordOrderEvent(t, db, "O1", nil)
			rec.PublishAttempts = tt.attempts
			if err := db.Migrator().DropTable(&models.SyncEventRecord{}); err != nil {
				t.Fatalf("drop outbox table: %v", err)
			}

			logger, hook := logtest.NewNullLogger()
			d := NewOutboxDispatcher(db, logger)
			d.MaxAttempts = 3
			d.markPublishFailed(context.Background(), *rec, errors.New("topic not found"))

			found := false
			for _, entry := range hook.AllEntries() {
				if entry.Data["funcName"] == "markPublishFailed" && entry.Data["context"] == tt.wantContext {
					found = true
				}
			}
			if !found {
				t.Fatalf("update error was not logged; entries = %d", len(hook.AllEntries()))
			}
		})
	}
}

func TestOutboxDispatcherPublishBackoff(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: 5 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{4, 40 * time.Second},
		{12, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := d.publishBackoff(tt.attempt); got != tt.want {
			t.Fatalf("publishBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestOutboxDispatcherRunStopsOnCancel(t *testing.T) {
	db := newTestDB(t)
	recordOrderEvent(t, db, "O1", nil)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	published := make(chan string, 1)
	d := NewOutboxDispatcher(db, testLogger())
	d.PollInterval = 10 * time.Millisecond
	d.Publisher = PublisherFunc(func(ctx context.Context, msg config.SyncEventMessage) (string, error) {
		select {
		case published <- msg.ReferenceId:
		default:
		}
		return "msg-1", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	select {
	case ref := <-published:
		if ref != "O1" {
			t.Fatalf("published %q", ref)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("dispatcher never published")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("dispatcher did not stop")
	}
}
