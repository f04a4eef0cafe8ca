package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/model"
	"github.com/Compunic-startup/compunic-management/internal/notify"
	"github.com/Compunic-startup/compunic-management/internal/store"
)

var testNow = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func hrPrincipal() model.Principal {
	return model.Principal{ID: "hr1", Email: "hr@compunic.com", Role: model.RoleHR}
}

func seedUsers(t *testing.T, mem *store.Memory) {
	t.Helper()
	ctx := context.Background()
	users := []model.Principal{
		{ID: "hr1", Email: "hr@compunic.com", Role: model.RoleHR},
		{ID: "dev1", Email: "dev@compunic.com", Role: model.RoleDeveloper},
		{ID: "qa1", Email: "qa@compunic.com", Role: model.RoleTester},
		{ID: "adm1", Email: "admin@compunic.com", Role: model.RoleAdmin},
	}
	for _, u := range users {
		fields, err := store.Fields(u)
		if err != nil {
			t.Fatalf("fields: %v", err)
		}
		if err := mem.Set(ctx, colUsers, u.ID, fields); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
}

func openHR(t *testing.T, mem *store.Memory) *HR {
	t.Helper()
	d, err := OpenHR(context.Background(), mem, hrPrincipal(), notify.New(false), fixedNow)
	if err != nil {
		t.Fatalf("open hr: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestHRRosterExcludesAdmins(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openHR(t, mem)

	state := d.State("")
	if len(state.Employees) != 3 {
		t.Fatalf("expected 3 employees, got %d", len(state.Employees))
	}
	for _, e := range state.Employees {
		if e.Role == model.RoleAdmin {
			t.Fatalf("admin leaked into the roster")
		}
	}
}

func TestMarkAttendanceClassifiesLate(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openHR(t, mem)
	ctx := context.Background()

	if err := d.MarkAttendance(ctx, "dev1", model.AttendancePresent, "11:20", "18:30", ""); err != nil {
		t.Fatalf("mark: %v", err)
	}
	d.mirrors.Wait()

	state := d.State("")
	record, ok := state.Attendance["dev1"]
	if !ok {
		t.Fatalf("expected a record for dev1")
	}
	if record.Status != model.AttendanceLate {
		t.Fatalf("expected Late, got %s", record.Status)
	}
	if record.MarkedBy != "hr@compunic.com" {
		t.Fatalf("unexpected marker %s", record.MarkedBy)
	}
}

func TestMarkAttendanceUpdatesInPlace(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openHR(t, mem)
	ctx := context.Background()

	if err := d.MarkAttendance(ctx, "dev1", model.AttendancePresent, "09:00", "18:00", ""); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := d.MarkAttendance(ctx, "dev1", model.AttendanceAbsent, "", "", "no show"); err != nil {
		t.Fatalf("second mark: %v", err)
	}
	d.mirrors.Wait()

	snap, err := mem.GetAll(ctx, store.Query{Collection: colAttendance})
	if err != nil {
		t.Fatalf("getall: %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("expected exactly one record for (date,user), got %d", len(snap))
	}
	if snap[0].ID != model.AttendanceDocID("2026-08-28", "dev1") {
		t.Fatalf("unexpected doc id %s", snap[0].ID)
	}
	state := d.State("")
	if state.Attendance["dev1"].Status != model.AttendanceAbsent {
		t.Fatalf("expected the re-mark to win, got %s", state.Attendance["dev1"].Status)
	}
}

func TestMarkAttendanceLeaveNeedsReason(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openHR(t, mem)

	err := d.MarkAttendance(context.Background(), "dev1", model.AttendanceLeave, "", "", "")
	if _, ok := AsFormError(err); !ok {
		t.Fatalf("expected a form error, got %v", err)
	}
}

func TestMarkAttendanceRejectsLateDirectly(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openHR(t, mem)

	err := d.MarkAttendance(context.Background(), "dev1", model.AttendanceLate, "11:30", "", "")
	if _, ok := AsFormError(err); !ok {
		t.Fatalf("expected Late to be unavailable to markers, got %v", err)
	}
}

func TestSetDateSwitchesMirror(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openHR(t, mem)
	ctx := context.Background()

	if err := d.MarkAttendance(ctx, "dev1", model.AttendancePresent, "09:00", "18:00", ""); err != nil {
		t.Fatalf("mark: %v", err)
	}
	d.mirrors.Wait()

	if err := d.SetDate(ctx, "2026-08-27"); err != nil {
		t.Fatalf("set date: %v", err)
	}
	state := d.State("")
	if state.Date != "2026-08-27" {
		t.Fatalf("unexpected date %s", state.Date)
	}
	if len(state.Attendance) != 0 {
		t.Fatalf("expected the other day's mirror to be empty, got %v", state.Attendance)
	}

	if err := d.SetDate(ctx, "2026-08-28"); err != nil {
		t.Fatalf("set date back: %v", err)
	}
	if got := d.State("").Attendance["dev1"].Status; got != model.AttendancePresent {
		t.Fatalf("expected today's record back, got %s", got)
	}
}

func TestReviewLeaveApprovalWritesAttendance(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openHR(t, mem)
	ctx := context.Background()

	dev := model.Principal{ID: "dev1", Email: "dev@compunic.com", Role: model.RoleDeveloper}
	request, err := applyLeave(ctx, mem, dev, "2026-09-02", "family trip", testNow)
	if err != nil {
		t.Fatalf("apply leave: %v", err)
	}
	d.mirrors.Wait()

	if got := len(d.State("").PendingLeaves); got != 1 {
		t.Fatalf("expected one pending request, got %d", got)
	}

	if err := d.ReviewLeave(ctx, request.ID, model.LeaveApproved); err != nil {
		t.Fatalf("review: %v", err)
	}
	d.mirrors.Wait()

	// The derived attendance record lands under the composite key.
	snap, err := mem.GetAll(ctx, store.Query{Collection: colAttendance})
	if err != nil {
		t.Fatalf("getall: %v", err)
	}
	if len(snap) != 1 || snap[0].ID != model.AttendanceDocID("2026-09-02", "dev1") {
		t.Fatalf("unexpected attendance docs %v", snap)
	}
	var record model.AttendanceRecord
	if err := store.Decode(snap[0], &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Status != model.AttendanceLeave || record.MarkedBy != systemMarker {
		t.Fatalf("unexpected derived record %+v", record)
	}
	if record.Reason != "Approved: family trip" {
		t.Fatalf("unexpected reason %q", record.Reason)
	}

	// The queue mirror caught up and a second decision is refused.
	if got := len(d.State("").PendingLeaves); got != 0 {
		t.Fatalf("expected empty pending queue, got %d", got)
	}
	if err := d.ReviewLeave(ctx, request.ID, model.LeaveRejected); err == nil {
		t.Fatalf("expected re-review to fail")
	}
}

func TestMonthlyAnalysis(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openHR(t, mem)
	ctx := context.Background()

	days := []struct {
		date   string
		status model.AttendanceStatus
	}{
		{"2026-08-03", model.AttendanceLate},
		{"2026-08-04", model.AttendanceLate},
		{"2026-08-05", model.AttendanceLate},
		{"2026-08-06", model.AttendanceAbsent},
		{"2026-07-31", model.AttendancePresent}, // previous month
	}
	for _, day := range days {
		fields, err := store.Fields(model.AttendanceRecord{
			UserID: "dev1", Email: "dev@compunic.com", Date: day.date,
			Status: day.status, MarkedBy: "hr@compunic.com", MarkedAt: testNow,
		})
		if err != nil {
			t.Fatalf("fields: %v", err)
		}
		if err := mem.Set(ctx, colAttendance, model.AttendanceDocID(day.date, "dev1"), fields); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	grid, summary, err := d.MonthlyAnalysis(ctx, "dev1", 2026, time.August)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if summary.Late != 3 || summary.Absent != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.AbsentsFromLates != 1 || summary.TotalAbsents != 2 {
		t.Fatalf("conversion off: %+v", summary)
	}
	// August 2026: 6 leading blanks + 31 days.
	if len(grid) != 37 {
		t.Fatalf("unexpected grid length %d", len(grid))
	}
}
