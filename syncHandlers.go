package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/utils"
	"github.com/buildhub/datasync_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func wantsAsync(c *gin.Context) bool {
	return c.Query("async") == "true"
}

// recordSyncEvent validates the payload and writes it to the outbox for the
// background worker.
func (s *server) recordSyncEvent(c *gin.Context, eventType, referenceId, userId string, payload any) {
	if err := utils.ValidateStruct(payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var rec *models.SyncEventRecord
	err := config.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = models.RecordSyncEvent(c.Request.Context(), tx, eventType, referenceId, userId, payload)
		return err
	})
	if err != nil {
		config.LogError(s.logger, "syncHandlers.go", "recordSyncEvent", "RecordSyncEvent "+eventType, referenceId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record sync event"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"record_id":      rec.ID,
		"event_type":     rec.EventType,
		"reference_id":   rec.ReferenceId,
		"correlation_id": rec.CorrelationId,
	})
}

func (s *server) respondSync(c *gin.Context, result *workflow.SyncResult, err error) {
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidSyncPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *server) syncOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload models.OrderSyncPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if wantsAsync(c) {
			s.recordSyncEvent(c, models.SyncEventOrderCreated, payload.OrderId, payload.UserId, payload)
			return
		}
		result, err := workflow.SyncOrderCreation(c.Request.Context(), config.GetDB(), s.logger, s.opts, payload)
		s.respondSync(c, result, err)
	}
}

func (s *server) syncProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload models.ProjectSyncPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if wantsAsync(c) {
			s.recordSyncEvent(c, models.SyncEventProjectCreated, payload.ProjectId, payload.UserId, payload)
			return
		}
		result, err := workflow.SyncProjectCreation(c.Request.Context(), config.GetDB(), s.logger, s.opts, payload)
		s.respondSync(c, result, err)
	}
}

// syncPubSubHandler acks (2xx) poisoned messages and nacks (5xx) the ones
// worth redelivering, including partially applied fan-outs.
func (s *server) syncPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := s.logger
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "syncHandlers.go", "syncPubSubHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		var envelope PubSubMessage
		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &envelope); err != nil {
			config.LogError(logger, "syncHandlers.go", "syncPubSubHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		var msg config.SyncEventMessage
		if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
			config.LogError(logger, "syncHandlers.go", "syncPubSubHandler", "Unmarshal pubsub message", string(envelope.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		if msg.EventType == "" || msg.ReferenceId == "" {
			config.LogError(logger, "syncHandlers.go", "syncPubSubHandler", "Invalid pubsub message", msg, fmt.Errorf("event_type/reference_id required"))
			c.Status(http.StatusNoContent)
			return
		}
		if msg.CorrelationId == "" {
			msg.CorrelationId = envelope.Message.ID
		}

		ctx := c.Request.Context()
		db := config.GetDB()
		result, err := workflow.ProcessSyncEvent(ctx, db, logger, s.opts, msg)
		if msg.ID > 0 {
			if markErr := models.MarkSyncEventProcessed(ctx, db, msg.ID, err); markErr != nil {
				config.LogError(logger, "syncHandlers.go", "syncPubSubHandler", "MarkSyncEventProcessed", msg.ID, markErr)
			}
		}
		if err != nil {
			fields := logrus.Fields{
				"field":          "syncPubSubHandler",
				"event_type":     msg.EventType,
				"reference_id":   msg.ReferenceId,
				"message_id":     envelope.Message.ID,
				"correlation_id": msg.CorrelationId,
			}
			if errors.Is(err, workflow.ErrInvalidSyncPayload) || errors.Is(err, workflow.ErrUnknownSyncEvent) {
				logger.WithFields(fields).Warn("dropping unprocessable sync event: " + err.Error())
				c.Status(http.StatusNoContent)
				return
			}
			if result != nil {
				fields["errors"] = result.Errors
			}
			logger.WithFields(fields).Error("sync event processing failed: " + err.Error())
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type outboxReplayRequest struct {
	RecordId int `json:"record_id" validate:"required,gt=0"`
}

func (s *server) outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := workflow.ReplayOutboxRecord(c.Request.Context(), config.GetDB(), req.RecordId); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"record_id":      req.RecordId,
			"publish_status": models.OutboxPublishStatusPending,
		})
	}
}
