package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/workflow"
)

const (
	exitOK      = 0
	exitError   = 1
	exitPartial = 2
)

// replayTarget picks the outbox event to replay from the two id flags.
func replayTarget(orderID, projectID string) (eventType string, referenceID string, err error) {
	order, project := strings.TrimSpace(orderID), strings.TrimSpace(projectID)
	switch {
	case order != "" && project != "":
		return "", "", errors.New("use either --order-id or --project-id, not both")
	case order != "":
		return models.SyncEventOrderCreated, order, nil
	case project != "":
		return models.SyncEventProjectCreated, project, nil
	}
	return "", "", errors.New("--order-id or --project-id is required")
}

// replayExitCode is exitPartial while any step still fails.
func replayExitCode(result *workflow.SyncResult, err error) int {
	if err != nil {
		if errors.Is(err, workflow.ErrPartialSync) {
			return exitPartial
		}
		return exitError
	}
	if result == nil || !result.Success {
		return exitPartial
	}
	return exitOK
}

// Re-drives the fan-out of the latest outbox event for one order or project.
// Steps that already succeeded are skipped.
func main() {
	orderID := flag.String("order-id", "", "Order id to replay")
	projectID := flag.String("project-id", "", "Project id to replay")
	flag.Parse()

	eventType, referenceID, err := replayTarget(*orderID, *projectID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitError)
	}

	settings, err := config.LoadSyncSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(exitError)
	}
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(exitError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	result, err := workflow.ReplaySyncEvent(ctx, db, config.GetLogger(), workflow.NewOptions(settings), eventType, referenceID)
	if result != nil {
		fmt.Printf("%s %s success=%t synced=%v already_applied=%v\n",
			eventType, referenceID, result.Success, result.SyncedDomains, result.AlreadyApplied)
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}
	if err != nil && !errors.Is(err, workflow.ErrPartialSync) {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
	}
	os.Exit(replayExitCode(result, err))
}
