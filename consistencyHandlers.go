package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/models/reports"
	"github.com/buildhub/datasync_backend/workflow"
	"github.com/gin-gonic/gin"
)

func (s *server) runCheck(c *gin.Context, record bool) (*models.ConsistencyReport, bool) {
	report, err := s.resolver().ConsistencyReport(c.Request.Context(), c.Param("userId"), record)
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidSyncPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return report, true
}

// checkConsistencyHandler runs the read-only check; ?record=true also
// persists the drifts as reconciliation reports.
func (s *server) checkConsistencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, ok := s.runCheck(c, c.Query("record") == "true")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (s *server) latestConsistencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := s.resolver().LatestConsistencyReport(c.Request.Context(), c.Param("userId"))
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if report == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no cached report"})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (s *server) exportConsistencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, ok := s.runCheck(c, false)
		if !ok {
			return
		}
		data, err := reports.ConsistencyReportExcel(report)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="consistency-%s.xlsx"`, report.UserId))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	}
}

func (s *server) reconcileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.resolver().ReconcileUser(c.Request.Context(), c.Param("userId"))
		if err != nil {
			if errors.Is(err, workflow.ErrReconcileInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
