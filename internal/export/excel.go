// Package export serializes projector and analyzer outputs into xlsx
// workbooks. It is a collaborator of the dashboards: rows in, file
// out, nothing reactive.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Compunic-startup/compunic-management/internal/attendance"
	"github.com/Compunic-startup/compunic-management/internal/model"
)

// TicketReport builds the ticket export the admin and tester
// dashboards offer, one row per ticket.
func TicketReport(tickets []model.Ticket) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Tickets"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"Ticket ID", "Status", "Project", "Assigned To", "Raised By", "Date Raised", "Date Resolved", "Resolution Notes"}
	widths := []float64{20, 15, 25, 30, 30, 25, 25, 50}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, col, col, widths[i]); err != nil {
			return nil, err
		}
	}

	for row, t := range tickets {
		resolvedAt := "N/A"
		if t.ResolvedAt != nil {
			resolvedAt = t.ResolvedAt.Format(time.RFC1123)
		}
		notes := t.ResolutionNotes
		if notes == "" {
			notes = "N/A"
		}
		values := []any{
			t.TicketID, string(t.Status), t.ProjectName, t.AssignedDeveloper,
			t.RaisedBy, t.CreatedAt.Format(time.RFC1123), resolvedAt, notes,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// AttendanceReport builds one employee's monthly attendance sheet:
// the day-by-day rows plus the summary block with the late-to-absence
// conversion already applied by the analyzer.
func AttendanceReport(email string, year int, month time.Month, grid []attendance.Cell, summary attendance.Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Attendance"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := f.SetCellValue(sheet, "A1", fmt.Sprintf("%s - %s %d", email, month, year)); err != nil {
		return nil, err
	}
	headers := []string{"Day", "Status", "In", "Out", "Reason", "Marked By"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	row := 3
	for _, cell := range grid {
		if cell.Blank() {
			continue
		}
		values := []any{cell.Day, "Unmarked", "", "", "", ""}
		if cell.Record != nil {
			r := cell.Record
			values = []any{cell.Day, string(r.Status), r.InTime, r.OutTime, r.Reason, r.MarkedBy}
		}
		for col, v := range values {
			name, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, name, v); err != nil {
				return nil, err
			}
		}
		row++
	}

	row++
	summaryRows := []struct {
		label string
		value int
	}{
		{"Present", summary.Present},
		{"Absent", summary.Absent},
		{"Leave", summary.Leave},
		{"Late", summary.Late},
		{"Absents from Lates (3 Lates = 1 Absent)", summary.AbsentsFromLates},
		{"Total Absents", summary.TotalAbsents},
	}
	for _, s := range summaryRows {
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), s.label); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row), s.value); err != nil {
			return nil, err
		}
		row++
	}
	return f, nil
}
