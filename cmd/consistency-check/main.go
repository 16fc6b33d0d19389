package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/models/reports"
	"github.com/buildhub/datasync_backend/utils"
	"github.com/buildhub/datasync_backend/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	exitOK    = 0
	exitError = 1
	exitDrift = 2
)

// exitCode is 0 for a consistent user or a repair that fixed every drift,
// and exitDrift while any drift remains.
func exitCode(report *models.ConsistencyReport, repair *models.RepairResult) int {
	if report.IsConsistent {
		return exitOK
	}
	if repair == nil || !repair.Success {
		return exitDrift
	}
	return exitOK
}

func main() {
	userID := flag.String("user-id", "", "Required: user id to check")
	repair := flag.Bool("repair", false, "Reconcile cached aggregates after checking")
	record := flag.Bool("record", false, "Persist detected drifts to reconciliation_reports")
	xlsxPath := flag.String("xlsx", "", "Optional: write the report to this .xlsx path")
	gcsObject := flag.String("gcs-object", "", "Optional: upload the .xlsx report to GCS_BUCKET under this object name")
	flag.Parse()

	if strings.TrimSpace(*userID) == "" {
		fmt.Fprintln(os.Stderr, "--user-id is required")
		os.Exit(exitError)
	}

	settings, err := config.LoadSyncSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(exitError)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(exitError)
	}
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry(ctx)
	}
	logger := config.GetLogger()
	opts := workflow.NewOptions(settings)
	opts.Locker = workflow.NewFallbackUserLocker(config.GetRedisLock)

	report, err := workflow.CheckUserConsistency(ctx, db, opts, *userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "check failed: %v\n", err)
		os.Exit(exitError)
	}
	fmt.Printf("user=%s consistent=%t drifts=%d\n", report.UserId, report.IsConsistent, len(report.Drifts))
	for i, msg := range report.Inconsistencies {
		fmt.Printf("  - %s\n    %s\n", msg, report.Recommendations[i])
	}

	if *record {
		if err := workflow.RecordReconciliationReports(ctx, db, report); err != nil {
			fmt.Fprintf(os.Stderr, "record failed: %v\n", err)
			os.Exit(exitError)
		}
	}

	if *xlsxPath != "" || *gcsObject != "" {
		data, err := reports.ConsistencyReportExcel(report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "xlsx export failed: %v\n", err)
			os.Exit(exitError)
		}
		if *xlsxPath != "" {
			if err := os.WriteFile(*xlsxPath, data, 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "write %s: %v\n", *xlsxPath, err)
				os.Exit(exitError)
			}
			fmt.Printf("report written to %s\n", *xlsxPath)
		}
		if *gcsObject != "" {
			if err := utils.UploadToGCS(ctx, *gcsObject, data, xlsxContentType); err != nil {
				fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
				os.Exit(exitError)
			}
			fmt.Printf("report uploaded to gs://%s/%s\n", os.Getenv("GCS_BUCKET"), *gcsObject)
		}
	}

	var result *models.RepairResult
	if !report.IsConsistent && *repair {
		result, err = workflow.ReconcileUserData(ctx, db, logger, opts, *userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
			os.Exit(exitError)
		}
		for _, msg := range result.FixedIssues {
			fmt.Printf("fixed: %s\n", msg)
		}
		for _, msg := range result.RemainingIssues {
			fmt.Printf("remaining: %s\n", msg)
		}
	}
	os.Exit(exitCode(report, result))
}
