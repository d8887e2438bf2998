package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"driftq/internal/models"

	"github.com/xuri/excelize/v2"
)

// QueueReport writes the current queue contents to an .xlsx file for support
// dumps; the failed sheet is what usually gets attached to a bug report.
func QueueReport(dir string, actions []models.QueuedAction) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeActionsSheet(f, "Queue", actions, false); err != nil {
		return "", err
	}
	if err := writeActionsSheet(f, "Failed", actions, true); err != nil {
		return "", err
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("queue_%s.xlsx", time.Now().Format("2006-01-02_150405"))
	path := filepath.Join(dir, fileName)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving export file: %w", err)
	}

	return path, nil
}

func writeActionsSheet(f *excelize.File, sheetName string, actions []models.QueuedAction, failedOnly bool) error {
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	if !failedOnly {
		f.SetActiveSheet(index)
	}

	headers := []string{"Seq", "ID", "Action Type", "Status", "Attempts", "Last Error", "Enqueued At", "Updated At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(sheetName, "A1", "H1", headerStyle)

	row := 2
	for i := range actions {
		action := &actions[i]
		if failedOnly && action.Status != models.ActionFailed {
			continue
		}

		values := []interface{}{
			action.Seq,
			action.ID,
			action.ActionType,
			action.Status,
			action.Attempts,
			action.ErrorText(),
			action.EnqueuedAt.Format(time.RFC3339),
			action.UpdatedAt.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, value)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "B", "B", 38)
	_ = f.SetColWidth(sheetName, "C", "C", 18)
	_ = f.SetColWidth(sheetName, "F", "F", 42)
	_ = f.SetColWidth(sheetName, "G", "H", 22)

	return nil
}
