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

// Admin oversees everything: the whole ticket stream, every user,
// every task and every expense, plus its own submitted expenses.
type Admin struct {
	who     model.Principal
	store   store.Store
	mirrors *mirror.Manager
	notify  *notify.Notifier
	now     func() time.Time

	mu          sync.Mutex
	tickets     []model.Ticket
	users       []model.Principal
	tasks       []model.Task
	allExpenses []model.Expense
	myExpenses  []model.Expense
}

type AdminState struct {
	Counts         view.StatusCounts `json:"counts"`
	ProjectChart   view.ChartData    `json:"projectChart"`
	ActiveProjects int               `json:"activeProjects"`
	Tickets        []model.Ticket    `json:"tickets"`
	Users          []model.Principal `json:"users"`
	Tasks          []TaskView        `json:"tasks"`
	AllExpenses    []model.Expense   `json:"allExpenses"`
	MyExpenses     []model.Expense   `json:"myExpenses"`
}

func OpenAdmin(ctx context.Context, st store.Store, who model.Principal, n *notify.Notifier, now func() time.Time) (*Admin, error) {
	d := &Admin{
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
		"users": {Collection: colUsers},
		"tasks": {
			Collection: colTasks,
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
		"tickets":     func(s store.Snapshot) { d.mu.Lock(); d.tickets = decodeTickets(s); d.mu.Unlock() },
		"users":       func(s store.Snapshot) { d.mu.Lock(); d.users = decodePrincipals(s); d.mu.Unlock() },
		"tasks":       func(s store.Snapshot) { d.mu.Lock(); d.tasks = decodeTasks(s); d.mu.Unlock() },
		"allExpenses": func(s store.Snapshot) { d.mu.Lock(); d.allExpenses = decodeExpenses(s); d.mu.Unlock() },
		"myExpenses":  func(s store.Snapshot) { d.mu.Lock(); d.myExpenses = decodeExpenses(s); d.mu.Unlock() },
	}
	if err := d.mirrors.OpenAll(ctx, queries, fns); err != nil {
		d.mirrors.Close()
		return nil, err
	}
	d.mirrors.Wait()
	return d, nil
}

func (d *Admin) Role() model.Role { return model.RoleAdmin }

func (d *Admin) Close() { d.mirrors.Close() }

func (d *Admin) State() AdminState {
	d.mu.Lock()
	tickets := d.tickets
	users := d.users
	tasks := d.tasks
	allExpenses := d.allExpenses
	myExpenses := d.myExpenses
	d.mu.Unlock()

	chart := view.TicketsByProject(tickets)
	return AdminState{
		Counts:         view.CountTicketsByStatus(tickets),
		ProjectChart:   chart,
		ActiveProjects: len(chart.Labels),
		Tickets:        tickets,
		Users:          users,
		Tasks:          taskViews(tasks, d.now()),
		AllExpenses:    allExpenses,
		MyExpenses:     myExpenses,
	}
}

// AssignTask creates a task for an employee. The assignee must be a
// known user; the deadline must be a calendar date.
func (d *Admin) AssignTask(ctx context.Context, assignedToID, description, deadline string) error {
	if assignedToID == "" || description == "" || deadline == "" {
		return formErrorf("all fields are required")
	}
	if _, err := time.Parse(model.DateLayout, deadline); err != nil {
		return formErrorf("invalid deadline")
	}
	assignee, ok := d.user(assignedToID)
	if !ok {
		return formErrorf("unknown assignee")
	}
	fields, err := store.Fields(model.Task{
		AssignedToID:    assignee.ID,
		AssignedToEmail: assignee.Email,
		Description:     description,
		Deadline:        deadline,
		Status:          model.TaskAssigned,
		AssignedBy:      d.who.Email,
		AssignedAt:      d.now(),
	})
	if err != nil {
		return err
	}
	if _, err := d.store.Create(ctx, colTasks, fields); err != nil {
		return formErrorf("failed to assign task")
	}
	return nil
}

// EditTask updates a task's description and deadline. Done tasks are
// immutable.
func (d *Admin) EditTask(ctx context.Context, taskID, description, deadline string) error {
	if description == "" || deadline == "" {
		return formErrorf("all fields are required")
	}
	if _, err := time.Parse(model.DateLayout, deadline); err != nil {
		return formErrorf("invalid deadline")
	}
	task, ok := d.task(taskID)
	if !ok {
		return formErrorf("task not found")
	}
	if task.Status == model.TaskDone {
		return formErrorf("done tasks cannot be edited")
	}
	err := d.store.Update(ctx, colTasks, taskID, map[string]any{
		"description": description,
		"deadline":    deadline,
	})
	if err != nil {
		return formErrorf("failed to update task")
	}
	return nil
}

// ReviewExpense approves or rejects a pending expense. Pending is the
// only status a transition is allowed from.
func (d *Admin) ReviewExpense(ctx context.Context, expenseID string, next model.ExpenseStatus) error {
	if next != model.ExpenseApproved && next != model.ExpenseRejected {
		return formErrorf("invalid expense decision")
	}
	expense, ok := d.expense(expenseID)
	if !ok {
		return formErrorf("expense not found")
	}
	if expense.Status != model.ExpensePending {
		return formErrorf("expense has already been reviewed")
	}
	err := d.store.Update(ctx, colExpenses, expenseID, map[string]any{
		"status":     string(next),
		"reviewedBy": d.who.Email,
	})
	if err != nil {
		return formErrorf("failed to update expense")
	}
	return nil
}

func (d *Admin) SubmitExpense(ctx context.Context, amount float64, reason string) error {
	return submitExpense(ctx, d.store, d.who, amount, reason, d.now())
}

// SendOverdueReminder fires the share link for a task past its
// deadline. No-op error if the task is not actually overdue.
func (d *Admin) SendOverdueReminder(taskID string) error {
	task, ok := d.task(taskID)
	if !ok {
		return formErrorf("task not found")
	}
	if !view.IsOverdue(task, d.now()) {
		return formErrorf("task is not overdue")
	}
	d.notify.TaskOverdueReminder(task)
	return nil
}

// ReportTickets selects the export rows for a lookback range.
func (d *Admin) ReportTickets(r view.ReportRange) []model.Ticket {
	d.mu.Lock()
	tickets := d.tickets
	d.mu.Unlock()
	return view.TicketsSince(tickets, r, d.now())
}

func (d *Admin) user(id string) (model.Principal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.Principal{}, false
}

func (d *Admin) task(id string) (model.Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func (d *Admin) expense(id string) (model.Expense, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.allExpenses {
		if e.ID == id {
			return e, true
		}
	}
	return model.Expense{}, false
}
