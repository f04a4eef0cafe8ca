package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/mirror"
	"github.com/Compunic-startup/compunic-management/internal/model"
	"github.com/Compunic-startup/compunic-management/internal/notify"
	"github.com/Compunic-startup/compunic-management/internal/store"
	"github.com/Compunic-startup/compunic-management/internal/view"
)

// Developer sees only the tickets routed to it, plus its own tasks,
// leave requests and expenses.
type Developer struct {
	who     model.Principal
	store   store.Store
	mirrors *mirror.Manager
	notify  *notify.Notifier
	now     func() time.Time

	mu       sync.Mutex
	tickets  []model.Ticket
	tasks    []model.Task
	leaves   []model.LeaveRequest
	expenses []model.Expense
}

type DeveloperState struct {
	Counts        view.StatusCounts    `json:"counts"`
	Tickets       []model.Ticket       `json:"tickets"`
	Page          int                  `json:"page"`
	TotalPages    int                  `json:"totalPages"`
	Tasks         []TaskView           `json:"tasks"`
	LeaveRequests []model.LeaveRequest `json:"leaveRequests"`
	Expenses      []model.Expense      `json:"expenses"`
}

func OpenDeveloper(ctx context.Context, st store.Store, who model.Principal, n *notify.Notifier, now func() time.Time) (*Developer, error) {
	d := &Developer{
		who:     who,
		store:   st,
		mirrors: mirror.NewManager(st),
		notify:  n,
		now:     now,
	}
	queries := map[string]store.Query{
		"tickets": {
			Collection: colTickets,
			Wheres:     []store.Where{{Field: "assignedDeveloper", Op: store.OpEq, Value: who.Email}},
			OrderBy:    &store.Order{Field: "createdAt", Desc: true},
		},
		"tasks": {
			Collection: colTasks,
			Wheres:     []store.Where{{Field: "assignedToId", Op: store.OpEq, Value: who.ID}},
			OrderBy:    &store.Order{Field: "deadline"},
		},
		"leaveRequests": {
			Collection: colLeaveRequests,
			Wheres:     []store.Where{{Field: "userId", Op: store.OpEq, Value: who.ID}},
			OrderBy:    &store.Order{Field: "appliedAt", Desc: true},
		},
		"expenses": {
			Collection: colExpenses,
			Wheres:     []store.Where{{Field: "userId", Op: store.OpEq, Value: who.ID}},
			OrderBy:    &store.Order{Field: "submittedAt", Desc: true},
		},
	}
	fns := map[string]func(store.Snapshot){
		"tickets":       func(s store.Snapshot) { d.mu.Lock(); d.tickets = decodeTickets(s); d.mu.Unlock() },
		"tasks":         func(s store.Snapshot) { d.mu.Lock(); d.tasks = decodeTasks(s); d.mu.Unlock() },
		"leaveRequests": func(s store.Snapshot) { d.mu.Lock(); d.leaves = decodeLeaveRequests(s); d.mu.Unlock() },
		"expenses":      func(s store.Snapshot) { d.mu.Lock(); d.expenses = decodeExpenses(s); d.mu.Unlock() },
	}
	if err := d.mirrors.OpenAll(ctx, queries, fns); err != nil {
		d.mirrors.Close()
		return nil, err
	}
	d.mirrors.Wait()
	return d, nil
}

func (d *Developer) Role() model.Role { return model.RoleDeveloper }

func (d *Developer) Close() { d.mirrors.Close() }

func (d *Developer) State(filter view.TicketFilter, page int) DeveloperState {
	d.mu.Lock()
	tickets := d.tickets
	tasks := d.tasks
	leaves := d.leaves
	expenses := d.expenses
	d.mu.Unlock()

	filtered := view.FilterTickets(tickets, filter)
	pageItems, clamped := view.Paginate(filtered, defaultPageSize, page)
	return DeveloperState{
		Counts:        view.CountTicketsByStatus(tickets),
		Tickets:       pageItems,
		Page:          clamped,
		TotalPages:    view.TotalPages(len(filtered), defaultPageSize),
		Tasks:         taskViews(tasks, d.now()),
		LeaveRequests: leaves,
		Expenses:      expenses,
	}
}

// ResolveTicket moves an open ticket to Resolved. Notes are required:
// the tester relies on them when deciding to close or reopen.
func (d *Developer) ResolveTicket(ctx context.Context, ticketID, notes string) error {
	if notes == "" {
		return formErrorf("resolution notes are required")
	}
	current, ok := d.ticket(ticketID)
	if !ok {
		return formErrorf("ticket not found")
	}
	if !current.Status.CanTransition(model.TicketResolved) {
		return formErrorf("cannot move ticket from %s to %s", current.Status, model.TicketResolved)
	}
	now := d.now()
	err := d.store.Update(ctx, colTickets, current.ID, map[string]any{
		"status":          string(model.TicketResolved),
		"resolutionNotes": notes,
		"resolvedAt":      now.Format(time.RFC3339Nano),
		"resolvedBy":      d.who.Email,
	})
	if err != nil {
		return formErrorf("failed to resolve ticket")
	}
	current.ResolutionNotes = notes
	current.ResolvedBy = d.who.Email
	d.notify.TicketResolved(current)
	return nil
}

// MarkTaskDone completes one of the developer's own tasks. Done is
// terminal.
func (d *Developer) MarkTaskDone(ctx context.Context, taskID string) error {
	d.mu.Lock()
	var target *model.Task
	for i := range d.tasks {
		if d.tasks[i].ID == taskID {
			target = &d.tasks[i]
			break
		}
	}
	if target == nil {
		d.mu.Unlock()
		return formErrorf("task not found")
	}
	if target.Status == model.TaskDone {
		d.mu.Unlock()
		return formErrorf("task is already done")
	}
	d.mu.Unlock()

	err := d.store.Update(ctx, colTasks, taskID, map[string]any{
		"status":      string(model.TaskDone),
		"completedAt": d.now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return formErrorf("failed to update task")
	}
	return nil
}

func (d *Developer) SubmitExpense(ctx context.Context, amount float64, reason string) error {
	return submitExpense(ctx, d.store, d.who, amount, reason, d.now())
}

func (d *Developer) ApplyLeave(ctx context.Context, leaveDate, reason string) error {
	request, err := applyLeave(ctx, d.store, d.who, leaveDate, reason, d.now())
	if err != nil {
		return err
	}
	d.notify.LeaveSubmitted(request)
	return nil
}

func (d *Developer) ReportTickets(filter view.TicketFilter) []model.Ticket {
	d.mu.Lock()
	tickets := d.tickets
	d.mu.Unlock()
	return view.FilterTickets(tickets, filter)
}

func (d *Developer) ticket(id string) (model.Ticket, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tickets {
		if t.ID == id || t.TicketID == id {
			return t, true
		}
	}
	return model.Ticket{}, false
}
