// Package dashboard wires one mirror set per role-specific console
// view: each dashboard opens its live queries on mount, recomputes its
// projected state on every delivery, owns the write operations its
// role may perform, and cancels everything on Close. Teardown is the
// resource-safety obligation of this whole package: a dashboard that
// is opened must be closed on every exit path.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/model"
	"github.com/Compunic-startup/compunic-management/internal/store"
	"github.com/Compunic-startup/compunic-management/internal/view"
)

const (
	colUsers         = "users"
	colTickets       = "tickets"
	colTasks         = "tasks"
	colExpenses      = "expenses"
	colLeaveRequests = "leaveRequests"
	colAttendance    = "attendance"
)

// defaultPageSize matches the ticket tables' page length.
const defaultPageSize = 3

// FormError is a write rejection the caller shows inline and may
// retry; it never triggers an automatic retry here.
type FormError struct {
	Message string
}

func (e *FormError) Error() string { return e.Message }

func formErrorf(format string, args ...any) error {
	return &FormError{Message: fmt.Sprintf(format, args...)}
}

// AsFormError unwraps a form rejection from a write error.
func AsFormError(err error) (string, bool) {
	var fe *FormError
	if errors.As(err, &fe) {
		return fe.Message, true
	}
	return "", false
}

// Dashboard is what the session registry holds: any mounted
// role-specific view that must be torn down on unmount.
type Dashboard interface {
	Role() model.Role
	Close()
}

// TaskView pairs a task with its derived overdue flag. Overdue is
// computed against the clock at projection time, never stored.
type TaskView struct {
	model.Task
	ID      string `json:"id"`
	Overdue bool   `json:"overdue"`
}

func taskViews(tasks []model.Task, now time.Time) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, TaskView{Task: task, ID: task.ID, Overdue: view.IsOverdue(task, now)})
	}
	return out
}

// Mirror decoders. A document that fails to decode is logged and
// skipped; one bad document must not empty the mirror.

func decodeTickets(snap store.Snapshot) []model.Ticket {
	out := make([]model.Ticket, 0, len(snap))
	for _, doc := range snap {
		var t model.Ticket
		if err := store.Decode(doc, &t); err != nil {
			log.Printf("dashboard: skipping ticket %s: %v", doc.ID, err)
			continue
		}
		t.ID = doc.ID
		out = append(out, t)
	}
	return out
}

func decodeTasks(snap store.Snapshot) []model.Task {
	out := make([]model.Task, 0, len(snap))
	for _, doc := range snap {
		var t model.Task
		if err := store.Decode(doc, &t); err != nil {
			log.Printf("dashboard: skipping task %s: %v", doc.ID, err)
			continue
		}
		t.ID = doc.ID
		out = append(out, t)
	}
	return out
}

func decodeExpenses(snap store.Snapshot) []model.Expense {
	out := make([]model.Expense, 0, len(snap))
	for _, doc := range snap {
		var e model.Expense
		if err := store.Decode(doc, &e); err != nil {
			log.Printf("dashboard: skipping expense %s: %v", doc.ID, err)
			continue
		}
		e.ID = doc.ID
		out = append(out, e)
	}
	return out
}

func decodeLeaveRequests(snap store.Snapshot) []model.LeaveRequest {
	out := make([]model.LeaveRequest, 0, len(snap))
	for _, doc := range snap {
		var r model.LeaveRequest
		if err := store.Decode(doc, &r); err != nil {
			log.Printf("dashboard: skipping leave request %s: %v", doc.ID, err)
			continue
		}
		r.ID = doc.ID
		out = append(out, r)
	}
	return out
}

func decodeAttendance(snap store.Snapshot) []model.AttendanceRecord {
	out := make([]model.AttendanceRecord, 0, len(snap))
	for _, doc := range snap {
		var r model.AttendanceRecord
		if err := store.Decode(doc, &r); err != nil {
			log.Printf("dashboard: skipping attendance record %s: %v", doc.ID, err)
			continue
		}
		r.ID = doc.ID
		out = append(out, r)
	}
	return out
}

func decodePrincipals(snap store.Snapshot) []model.Principal {
	out := make([]model.Principal, 0, len(snap))
	for _, doc := range snap {
		var p model.Principal
		if err := store.Decode(doc, &p); err != nil {
			log.Printf("dashboard: skipping user %s: %v", doc.ID, err)
			continue
		}
		p.ID = doc.ID
		out = append(out, p)
	}
	return out
}

// Shared employee-side writes.

func submitExpense(ctx context.Context, st store.Store, who model.Principal, amount float64, reason string, now time.Time) error {
	if amount <= 0 {
		return formErrorf("amount must be a positive number")
	}
	if reason == "" {
		return formErrorf("a reason is required")
	}
	fields, err := store.Fields(model.Expense{
		UserID:      who.ID,
		Email:       who.Email,
		Amount:      amount,
		Reason:      reason,
		Status:      model.ExpensePending,
		SubmittedAt: now,
	})
	if err != nil {
		return err
	}
	if _, err := st.Create(ctx, colExpenses, fields); err != nil {
		return formErrorf("failed to submit expense")
	}
	return nil
}

func applyLeave(ctx context.Context, st store.Store, who model.Principal, leaveDate, reason string, now time.Time) (model.LeaveRequest, error) {
	if reason == "" {
		return model.LeaveRequest{}, formErrorf("a reason is required")
	}
	if _, err := time.Parse(model.DateLayout, leaveDate); err != nil {
		return model.LeaveRequest{}, formErrorf("invalid leave date")
	}
	request := model.LeaveRequest{
		UserID:    who.ID,
		Email:     who.Email,
		Role:      who.Role,
		LeaveDate: leaveDate,
		Reason:    reason,
		Status:    model.LeavePending,
		AppliedAt: now,
	}
	fields, err := store.Fields(request)
	if err != nil {
		return model.LeaveRequest{}, err
	}
	id, err := st.Create(ctx, colLeaveRequests, fields)
	if err != nil {
		return model.LeaveRequest{}, formErrorf("failed to submit request")
	}
	request.ID = id
	return request, nil
}
