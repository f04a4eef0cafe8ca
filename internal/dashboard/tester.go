package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/mirror"
	"github.com/Compunic-startup/compunic-management/internal/model"
	"github.com/Compunic-startup/compunic-management/internal/notify"
	"github.com/Compunic-startup/compunic-management/internal/store"
	"github.com/Compunic-startup/compunic-management/internal/view"
)

// Tester sees the full ticket stream (it raises and closes tickets)
// plus its own tasks, leave requests and expenses.
type Tester struct {
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

type TesterState struct {
	Counts        view.StatusCounts    `json:"counts"`
	Tickets       []model.Ticket       `json:"tickets"`
	Page          int                  `json:"page"`
	TotalPages    int                  `json:"totalPages"`
	Tasks         []TaskView           `json:"tasks"`
	LeaveRequests []model.LeaveRequest `json:"leaveRequests"`
	Expenses      []model.Expense      `json:"expenses"`
}

func OpenTester(ctx context.Context, st store.Store, who model.Principal, n *notify.Notifier, now func() time.Time) (*Tester, error) {
	d := &Tester{
		who:     who,
		store:   st,
		mirrors: mirror.NewManager(st),
		notify:  n,
		now:     now,
	}
	queries := map[string]store.Query{
		"tickets": {
			Collection: colTickets,
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

func (d *Tester) Role() model.Role { return model.RoleTester }

func (d *Tester) Close() { d.mirrors.Close() }

// State projects the current mirrors. Pure over the mirror contents:
// the same mirrors and filter always yield the same state.
func (d *Tester) State(filter view.TicketFilter, page int) TesterState {
	d.mu.Lock()
	tickets := d.tickets
	tasks := d.tasks
	leaves := d.leaves
	expenses := d.expenses
	d.mu.Unlock()

	filtered := view.FilterTickets(tickets, filter)
	pageItems, clamped := view.Paginate(filtered, defaultPageSize, page)
	return TesterState{
		Counts:        view.CountTicketsByStatus(tickets),
		Tickets:       pageItems,
		Page:          clamped,
		TotalPages:    view.TotalPages(len(filtered), defaultPageSize),
		Tasks:         taskViews(tasks, d.now()),
		LeaveRequests: leaves,
		Expenses:      expenses,
	}
}

// RaiseTicket creates a new Open ticket; all fields are required.
func (d *Tester) RaiseTicket(ctx context.Context, projectName, assignedDeveloper, description string) (model.Ticket, error) {
	if projectName == "" || assignedDeveloper == "" || description == "" {
		return model.Ticket{}, formErrorf("all fields are required")
	}
	now := d.now()
	ticket := model.Ticket{
		TicketID:          model.NewTicketID(now),
		ProjectName:       projectName,
		AssignedDeveloper: assignedDeveloper,
		Description:       description,
		Status:            model.TicketOpen,
		RaisedBy:          d.who.Email,
		CreatedAt:         now,
	}
	fields, err := store.Fields(ticket)
	if err != nil {
		return model.Ticket{}, err
	}
	id, err := d.store.Create(ctx, colTickets, fields)
	if err != nil {
		return model.Ticket{}, formErrorf("failed to raise ticket")
	}
	ticket.ID = id
	d.notify.TicketRaised(ticket)
	return ticket, nil
}

// ReRaise drafts a new ticket from a closed one: same project and
// assignee, description prefixed with the provenance note.
func (d *Tester) ReRaise(ctx context.Context, ticketID string) (model.Ticket, error) {
	previous, ok := d.ticket(ticketID)
	if !ok {
		return model.Ticket{}, formErrorf("ticket not found")
	}
	if previous.Status != model.TicketClosed {
		return model.Ticket{}, formErrorf("only closed tickets can be re-raised")
	}
	description := fmt.Sprintf("(Re-raised from ticket %s)\n\n%s", previous.TicketID, previous.Description)
	return d.RaiseTicket(ctx, previous.ProjectName, previous.AssignedDeveloper, description)
}

// UpdateTicketStatus closes a resolved ticket or reopens it. Those are
// the only moves a tester owns; resolving belongs to the assigned
// developer.
func (d *Tester) UpdateTicketStatus(ctx context.Context, ticketID string, next model.TicketStatus) error {
	if next != model.TicketClosed && next != model.TicketOpen {
		return formErrorf("testers can only close or reopen tickets")
	}
	current, ok := d.ticket(ticketID)
	if !ok {
		return formErrorf("ticket not found")
	}
	if !current.Status.CanTransition(next) {
		return formErrorf("cannot move ticket from %s to %s", current.Status, next)
	}
	if err := d.store.Update(ctx, colTickets, current.ID, map[string]any{"status": string(next)}); err != nil {
		return formErrorf("failed to update ticket")
	}
	return nil
}

func (d *Tester) SubmitExpense(ctx context.Context, amount float64, reason string) error {
	return submitExpense(ctx, d.store, d.who, amount, reason, d.now())
}

func (d *Tester) ApplyLeave(ctx context.Context, leaveDate, reason string) error {
	request, err := applyLeave(ctx, d.store, d.who, leaveDate, reason, d.now())
	if err != nil {
		return err
	}
	d.notify.LeaveSubmitted(request)
	return nil
}

// ReportFile exports the currently filtered ticket set.
func (d *Tester) ReportTickets(filter view.TicketFilter) []model.Ticket {
	d.mu.Lock()
	tickets := d.tickets
	d.mu.Unlock()
	return view.FilterTickets(tickets, filter)
}

func (d *Tester) ticket(id string) (model.Ticket, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tickets {
		if t.ID == id || t.TicketID == id {
			return t, true
		}
	}
	return model.Ticket{}, false
}
