package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/utils"
	"github.com/buildhub/datasync_backend/workflow"
)

func TestReplayTarget(t *testing.T) {
	tests := []struct {
		name      string
		orderID   string
		projectID string
		wantType  string
		wantRef   string
		wantErr   bool
	}{
		{"order", "O1", "", models.SyncEventOrderCreated, "O1", false},
		{"project trimmed", "", " PR1 ", models.SyncEventProjectCreated, "PR1", false},
		{"both", "O1", "PR1", "", "", true},
		{"neither", " ", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eventType, ref, err := replayTarget(tt.orderID, tt.projectID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if eventType != tt.wantType || ref != tt.wantRef {
				t.Fatalf("got (%q, %q), want (%q, %q)", eventType, ref, tt.wantType, tt.wantRef)
			}
		})
	}
}

func TestReplayExitCode(t *testing.T) {
	tests := []struct {
		name   string
		result *workflow.SyncResult
		err    error
		want   int
	}{
		{"all steps applied", &workflow.SyncResult{Success: true}, nil, exitOK},
		{"steps still failing", &workflow.SyncResult{Success: false, Errors: []string{"project: not found"}}, nil, exitPartial},
		{"partial sync error", &workflow.SyncResult{Success: false}, fmt.Errorf("%w: [project]", workflow.ErrPartialSync), exitPartial},
		{"no outbox event", nil, fmt.Errorf("ORDER_CREATED O9: %w", utils.ErrorRecordNotFound), exitError},
		{"database error", nil, errors.New("connection refused"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := replayExitCode(tt.result, tt.err); got != tt.want {
				t.Fatalf("replayExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}
