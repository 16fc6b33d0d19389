package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// syncStep is one independently fallible target of a fan-out.
type syncStep struct {
	Domain models.SyncDomain
	Apply  func(ctx context.Context, tx *gorm.DB) error
}

// stepExecutor runs one step and reports whether it was skipped as already applied.
type stepExecutor func(ctx context.Context, step syncStep) (skipped bool, err error)

// runSyncSteps runs every step regardless of the others' failures and returns
// the outcomes in step order.
func runSyncSteps(ctx context.Context, steps []syncStep, parallel bool, exec stepExecutor) []stepOutcome {
	outcomes := make([]stepOutcome, len(steps))
	if !parallel {
		for i, step := range steps {
			outcomes[i] = runSyncStep(ctx, step, exec)
		}
		return outcomes
	}

	var g errgroup.Group
	for i, step := range steps {
		g.Go(func() error {
			outcomes[i] = runSyncStep(ctx, step, exec)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func runSyncStep(ctx context.Context, step syncStep, exec stepExecutor) (out stepOutcome) {
	out.domain = step.Domain
	defer func() {
		if r := recover(); r != nil {
			out.skipped = false
			out.err = fmt.Errorf("panic: %v", r)
		}
	}()
	out.skipped, out.err = exec(ctx, step)
	return out
}

// transactionalStep wraps a step in its own transaction guarded by the
// (event_type, reference_id, domain) idempotency key.
func transactionalStep(db *gorm.DB, logger *logrus.Logger, eventType, referenceId string) stepExecutor {
	return func(ctx context.Context, step syncStep) (bool, error) {
		handler := string(step.Domain)
		ctx, span := tracer.Start(ctx, "sync."+handler, trace.WithAttributes(
			attribute.String("sync.event_type", eventType),
			attribute.String("sync.reference_id", referenceId),
		))
		defer span.End()

		skipped := false
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			skip, err := BeginIdempotency(tx, eventType, referenceId, handler)
			if err != nil {
				return err
			}
			if skip {
				skipped = true
				return nil
			}
			if err := step.Apply(ctx, tx); err != nil {
				return err
			}
			return MarkIdempotencySucceeded(tx, eventType, referenceId, handler)
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if !errors.Is(err, ErrIdempotencyInProgress) {
				if markErr := MarkIdempotencyFailed(db.WithContext(ctx), eventType, referenceId, handler, err); markErr != nil {
					config.LogError(logger, "syncRunner.go", "transactionalStep", "MarkIdempotencyFailed "+handler, referenceId, markErr)
				}
			}
			return false, err
		}
		if skipped {
			span.SetAttributes(attribute.Bool("sync.already_applied", true))
		}
		return skipped, nil
	}
}

func runFanout(ctx context.Context, db *gorm.DB, logger *logrus.Logger, opts Options, eventType, referenceId string, steps []syncStep) *SyncResult {
	outcomes := runSyncSteps(ctx, steps, opts.Settings.ParallelFanout, transactionalStep(db, logger, eventType, referenceId))
	result := newSyncResult(eventType, referenceId, outcomes)

	status := models.OperationStatusSuccess
	if !result.Success {
		status = models.OperationStatusPartial
	}
	if err := models.WriteOperationLog(ctx, db, eventType, referenceId, status, result); err != nil {
		config.LogError(logger, "syncRunner.go", "runFanout", "WriteOperationLog", referenceId, err)
	}
	if logger != nil {
		entry := logger.WithFields(logrus.Fields{
			"field":          "SyncFanout",
			"event_type":     eventType,
			"reference_id":   referenceId,
			"synced_domains": result.SyncedDomains,
		})
		if result.Success {
			entry.Info("fan-out completed")
		} else {
			entry.WithField("errors", result.Errors).Warn("fan-out partially applied")
		}
	}
	return result
}
