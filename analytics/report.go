package analytics

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// report appends one row per analyzed batch item to an xlsx workbook,
// matching spec.md §4.I's "a row to output/unified.xlsx via excelize".
// The sheet is re-opened and re-saved on every append rather than held
// open for the stage's whole lifetime, so a crash never leaves a
// half-written workbook.
type report struct {
	mu      sync.Mutex
	path    string
	nextRow int
}

const reportSheet = "Unified"

func newReport(path string) (*report, error) {
	r := &report{path: path, nextRow: 2}

	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("analytics: open report: %w", err)
		}
		rows, err := f.GetRows(reportSheet)
		if err == nil {
			r.nextRow = len(rows) + 1
		}
		f.Close()
		return r, nil
	}

	f := excelize.NewFile()
	defer f.Close()
	index, err := f.NewSheet(reportSheet)
	if err != nil {
		return nil, fmt.Errorf("analytics: new sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)
	header := []string{"Timestamp", "Cameras", "Incomplete", "Summary", "Priority"}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(reportSheet, cell, h)
	}
	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("analytics: save report: %w", err)
	}
	return r, nil
}

// Append adds one row summarizing a batch's worth of analyzed frames.
func (r *report) Append(cameras string, incomplete bool, summary, priority string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return fmt.Errorf("analytics: open report: %w", err)
	}
	defer f.Close()

	row := r.nextRow
	values := []interface{}{time.Now().Format(time.RFC3339), cameras, incomplete, summary, priority}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(reportSheet, cell, v)
	}
	r.nextRow++
	return f.SaveAs(r.path)
}
