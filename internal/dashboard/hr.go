package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/attendance"
	"github.com/Compunic-startup/compunic-management/internal/mirror"
	"github.com/Compunic-startup/compunic-management/internal/model"
	"github.com/Compunic-startup/compunic-management/internal/notify"
	"github.com/Compunic-startup/compunic-management/internal/store"
	"github.com/Compunic-startup/compunic-management/internal/view"
)

// systemMarker is the markedBy value for attendance records written as
// a side effect of a leave approval rather than by a person.
const systemMarker = "System (Auto)"

// HR runs the people side: the employee roster, one day of attendance
// at a time, the pending leave queue, the full expense stream, plus
// its own tasks, leave and expenses.
type HR struct {
	who     model.Principal
	store   store.Store
	mirrors *mirror.Manager
	notify  *notify.Notifier
	now     func() time.Time

	mu           sync.Mutex
	date         string
	employees    []model.Principal
	dayRecords   []model.AttendanceRecord
	pendingLeave []model.LeaveRequest
	myLeaves     []model.LeaveRequest
	myTasks      []model.Task
	allExpenses  []model.Expense
	myExpenses   []model.Expense
}

type HRState struct {
	Date          string                            `json:"date"`
	Employees     []model.Principal                 `json:"employees"`
	Attendance    map[string]model.AttendanceRecord `json:"attendance"`
	PendingLeaves []model.LeaveRequest              `json:"pendingLeaves"`
	MyLeaves      []model.LeaveRequest              `json:"myLeaves"`
	MyTasks       []TaskView                        `json:"myTasks"`
	AllExpenses   []model.Expense                   `json:"allExpenses"`
	MyExpenses    []model.Expense                   `json:"myExpenses"`
}

func OpenHR(ctx context.Context, st store.Store, who model.Principal, n *notify.Notifier, now func() time.Time) (*HR, error) {
	d := &HR{
		who:     who,
		store:   st,
		mirrors: mirror.NewManager(st),
		notify:  n,
		now:     now,
		date:    now().Format(model.DateLayout),
	}
	queries := map[string]store.Query{
		"employees": {
			Collection: colUsers,
			Wheres: []store.Where{{
				Field: "role",
				Op:    store.OpIn,
				Value: []string{string(model.RoleDeveloper), string(model.RoleTester), string(model.RoleHR)},
			}},
		},
		"attendance": d.attendanceQuery(d.date),
		"pendingLeave": {
			Collection: colLeaveRequests,
			Wheres: []store.Where{
				{Field: "status", Op: store.OpEq, Value: string(model.LeavePending)},
				{Field: "role", Op: store.OpIn, Value: []string{string(model.RoleDeveloper), string(model.RoleTester)}},
			},
		},
		"myLeaves": {
			Collection: colLeaveRequests,
			Wheres:     []store.Where{{Field: "userId", Op: store.OpEq, Value: who.ID}},
			OrderBy:    &store.Order{Field: "appliedAt", Desc: true},
		},
		"myTasks": {
			Collection: colTasks,
			Wheres:     []store.Where{{Field: "assignedToId", Op: store.OpEq, Value: who.ID}},
			OrderBy:    &store.Order{Field: "deadline"},
		},
		"allExpenses": {
			Collection: colExpenses,
			OrderBy:    &store.Order{Field: "submittedAt", Desc: true},
		},
		"myExpenses": {
			Collection: colExpenses,
			Wheres:     []store.Where{{Field: "userId", Op: store.OpEq, Value: who.ID}},
			OrderBy:    &store.Order{Field: "submittedAt", Desc: true},
		},
	}
	fns := map[string]func(store.Snapshot){
		"employees":    func(s store.Snapshot) { d.mu.Lock(); d.employees = decodePrincipals(s); d.mu.Unlock() },
		"attendance":   func(s store.Snapshot) { d.mu.Lock(); d.dayRecords = decodeAttendance(s); d.mu.Unlock() },
		"pendingLeave": func(s store.Snapshot) { d.mu.Lock(); d.pendingLeave = decodeLeaveRequests(s); d.mu.Unlock() },
		"myLeaves":     func(s store.Snapshot) { d.mu.Lock(); d.myLeaves = decodeLeaveRequests(s); d.mu.Unlock() },
		"myTasks":      func(s store.Snapshot) { d.mu.Lock(); d.myTasks = decodeTasks(s); d.mu.Unlock() },
		"allExpenses":  func(s store.Snapshot) { d.mu.Lock(); d.allExpenses = decodeExpenses(s); d.mu.Unlock() },
		"myExpenses":   func(s store.Snapshot) { d.mu.Lock(); d.myExpenses = decodeExpenses(s); d.mu.Unlock() },
	}
	if err := d.mirrors.OpenAll(ctx, queries, fns); err != nil {
		d.mirrors.Close()
		return nil, err
	}
	d.mirrors.Wait()
	return d, nil
}

func (d *HR) attendanceQuery(date string) store.Query {
	return store.Query{
		Collection: colAttendance,
		Wheres:     []store.Where{{Field: "date", Op: store.OpEq, Value: date}},
	}
}

func (d *HR) Role() model.Role { return model.RoleHR }

func (d *HR) Close() { d.mirrors.Close() }

// SetDate moves the attendance mirror to another day. Re-opening under
// the same logical name cancels the old day's subscription first, so
// the marking view never has two overlapping mirrors.
func (d *HR) SetDate(ctx context.Context, date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return formErrorf("invalid date")
	}
	d.mu.Lock()
	d.date = date
	d.mu.Unlock()
	_, err := d.mirrors.Open(ctx, "attendance", d.attendanceQuery(date), func(s store.Snapshot) {
		d.mu.Lock()
		d.dayRecords = decodeAttendance(s)
		d.mu.Unlock()
	})
	if err != nil {
		return err
	}
	d.mirrors.Wait()
	return nil
}

func (d *HR) State(employeeSearch string) HRState {
	d.mu.Lock()
	date := d.date
	employees := d.employees
	dayRecords := d.dayRecords
	pendingLeave := d.pendingLeave
	myLeaves := d.myLeaves
	myTasks := d.myTasks
	allExpenses := d.allExpenses
	myExpenses := d.myExpenses
	d.mu.Unlock()

	byUser := make(map[string]model.AttendanceRecord, len(dayRecords))
	for _, record := range dayRecords {
		byUser[record.UserID] = record
	}
	return HRState{
		Date:          date,
		Employees:     view.FilterEmployees(employees, employeeSearch),
		Attendance:    byUser,
		PendingLeaves: pendingLeave,
		MyLeaves:      myLeaves,
		MyTasks:       taskViews(myTasks, d.now()),
		AllExpenses:   allExpenses,
		MyExpenses:    myExpenses,
	}
}

// MarkAttendance writes the selected day's record for one employee.
// The document id is the (date, user) composite, so marking twice
// updates in place. A Present mark at or past the cutoff persists as
// Late; the marker never chooses Late directly.
func (d *HR) MarkAttendance(ctx context.Context, userID string, status model.AttendanceStatus, inTime, outTime, reason string) error {
	switch status {
	case model.AttendancePresent, model.AttendanceAbsent, model.AttendanceLeave:
	default:
		return formErrorf("invalid attendance status")
	}
	employee, ok := d.employee(userID)
	if !ok {
		return formErrorf("unknown employee")
	}
	final := model.ClassifyAttendance(status, inTime)
	if final == model.AttendanceLeave && reason == "" {
		return formErrorf("a reason is required for leave status")
	}
	d.mu.Lock()
	date := d.date
	d.mu.Unlock()

	fields, err := store.Fields(model.AttendanceRecord{
		UserID:   employee.ID,
		Email:    employee.Email,
		Date:     date,
		Status:   final,
		InTime:   inTime,
		OutTime:  outTime,
		Reason:   reason,
		MarkedBy: d.who.Email,
		MarkedAt: d.now(),
	})
	if err != nil {
		return err
	}
	if err := d.store.Set(ctx, colAttendance, model.AttendanceDocID(date, employee.ID), fields); err != nil {
		return formErrorf("failed to save attendance")
	}
	return nil
}

// ReviewLeave decides a pending request. Approval writes the derived
// Leave record for the leave date; the two writes land in no
// guaranteed order on other mirrors and readers must cope.
func (d *HR) ReviewLeave(ctx context.Context, requestID string, next model.LeaveStatus) error {
	if next != model.LeaveApproved && next != model.LeaveRejected {
		return formErrorf("invalid leave decision")
	}
	request, ok := d.pendingRequest(requestID)
	if !ok {
		return formErrorf("leave request not found or already reviewed")
	}
	now := d.now()
	err := d.store.Update(ctx, colLeaveRequests, requestID, map[string]any{
		"status":     string(next),
		"reviewedBy": d.who.Email,
		"reviewedAt": now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return formErrorf("failed to update leave request")
	}
	if next == model.LeaveApproved {
		fields, err := store.Fields(model.AttendanceRecord{
			UserID:   request.UserID,
			Email:    request.Email,
			Date:     request.LeaveDate,
			Status:   model.AttendanceLeave,
			Reason:   fmt.Sprintf("Approved: %s", request.Reason),
			MarkedBy: systemMarker,
			MarkedAt: now,
		})
		if err != nil {
			return err
		}
		if err := d.store.Set(ctx, colAttendance, model.AttendanceDocID(request.LeaveDate, request.UserID), fields); err != nil {
			return formErrorf("leave updated but attendance write failed")
		}
	}
	d.notify.LeaveDecision(request, next)
	return nil
}

// MonthlyAnalysis is the per-employee calendar modal: a one-shot read
// of one month's records fed through the analyzer.
func (d *HR) MonthlyAnalysis(ctx context.Context, userID string, year int, month time.Month) ([]attendance.Cell, attendance.Summary, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	snap, err := d.store.GetAll(ctx, store.Query{
		Collection: colAttendance,
		Wheres: []store.Where{
			{Field: "userId", Op: store.OpEq, Value: userID},
			{Field: "date", Op: store.OpGte, Value: first.Format(model.DateLayout)},
			{Field: "date", Op: store.OpLte, Value: last.Format(model.DateLayout)},
		},
		OrderBy: &store.Order{Field: "date"},
	})
	if err != nil {
		return nil, attendance.Summary{}, err
	}
	grid, summary := attendance.MonthlyReport(decodeAttendance(snap), year, month)
	return grid, summary, nil
}

func (d *HR) SubmitExpense(ctx context.Context, amount float64, reason string) error {
	return submitExpense(ctx, d.store, d.who, amount, reason, d.now())
}

func (d *HR) ApplyLeave(ctx context.Context, leaveDate, reason string) error {
	request, err := applyLeave(ctx, d.store, d.who, leaveDate, reason, d.now())
	if err != nil {
		return err
	}
	d.notify.LeaveSubmitted(request)
	return nil
}

func (d *HR) employee(id string) (model.Principal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.employees {
		if e.ID == id {
			return e, true
		}
	}
	return model.Principal{}, false
}

func (d *HR) pendingRequest(id string) (model.LeaveRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.pendingLeave {
		if r.ID == id {
			return r, true
		}
	}
	return model.LeaveRequest{}, false
}
