package export

import (
	"testing"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/attendance"
	"github.com/Compunic-startup/compunic-management/internal/model"
)

func TestTicketReport(t *testing.T) {
	resolvedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	tickets := []model.Ticket{
		{TicketID: "COMP-000001", ProjectName: "billing", Status: model.TicketOpen, RaisedBy: "qa@compunic.com", AssignedDeveloper: "dev@compunic.com", CreatedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)},
		{TicketID: "COMP-000002", ProjectName: "portal", Status: model.TicketResolved, ResolvedAt: &resolvedAt, ResolutionNotes: "fixed", CreatedAt: time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)},
	}
	f, err := TicketReport(tickets)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue("Tickets", "A1"); got != "Ticket ID" {
		t.Fatalf("unexpected header %q", got)
	}
	if got, _ := f.GetCellValue("Tickets", "A2"); got != "COMP-000001" {
		t.Fatalf("unexpected first row %q", got)
	}
	if got, _ := f.GetCellValue("Tickets", "H2"); got != "N/A" {
		t.Fatalf("unresolved ticket notes = %q", got)
	}
	if got, _ := f.GetCellValue("Tickets", "H3"); got != "fixed" {
		t.Fatalf("resolved ticket notes = %q", got)
	}
}

func TestAttendanceReport(t *testing.T) {
	records := []model.AttendanceRecord{
		{UserID: "u1", Date: "2026-08-03", Status: model.AttendanceLate, InTime: "11:45", OutTime: "18:30", MarkedBy: "hr@compunic.com"},
	}
	grid, summary := attendance.MonthlyReport(records, 2026, time.August)
	f, err := AttendanceReport("ana@compunic.com", 2026, time.August, grid, summary)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	defer f.Close()

	// Day rows start at row 3; day 3 is the third day row.
	if got, _ := f.GetCellValue("Attendance", "B5"); got != "Late" {
		t.Fatalf("expected day 3 Late, got %q", got)
	}
	if got, _ := f.GetCellValue("Attendance", "B3"); got != "Unmarked" {
		t.Fatalf("expected day 1 Unmarked, got %q", got)
	}
}
