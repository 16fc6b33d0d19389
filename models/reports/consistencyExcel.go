package reports

import (
	"bytes"
	"fmt"

	"github.com/buildhub/datasync_backend/models"
	"github.com/xuri/excelize/v2"
)

const consistencySheet = "Drift"

var consistencyHeaders = []string{"CheckType", "EntityType", "EntityId", "Cached", "Computed", "Issue", "Recommendation"}

// ConsistencyReportExcel renders a report as an .xlsx workbook, one row per drift.
func ConsistencyReportExcel(report *models.ConsistencyReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", consistencySheet); err != nil {
		return nil, err
	}
	for i, h := range consistencyHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(consistencySheet, cell, h); err != nil {
			return nil, err
		}
	}
	for i, d := range report.Drifts {
		row := i + 2
		values := []interface{}{
			string(d.CheckType),
			d.EntityType,
			d.EntityId,
			d.Cached.String(),
			d.Computed.String(),
			d.Message,
			d.Recommendation,
		}
		if err := f.SetSheetRow(consistencySheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return nil, err
		}
	}

	summaryRow := len(report.Drifts) + 3
	if err := f.SetCellValue(consistencySheet, fmt.Sprintf("A%d", summaryRow), "User"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(consistencySheet, fmt.Sprintf("B%d", summaryRow), report.UserId); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(consistencySheet, fmt.Sprintf("C%d", summaryRow), report.CheckedAt.UTC().Format("2006-01-02 15:04:05")); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
