package dashboard

import (
	"context"
	"testing"

	"github.com/Compunic-startup/compunic-management/internal/model"
	"github.com/Compunic-startup/compunic-management/internal/notify"
	"github.com/Compunic-startup/compunic-management/internal/store"
)

func openAdmin(t *testing.T, mem *store.Memory) *Admin {
	t.Helper()
	who := model.Principal{ID: "adm1", Email: "admin@compunic.com", Role: model.RoleAdmin}
	d, err := OpenAdmin(context.Background(), mem, who, notify.New(false), fixedNow)
	if err != nil {
		t.Fatalf("open admin: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestAssignTaskValidatesAssignee(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openAdmin(t, mem)
	ctx := context.Background()

	if err := d.AssignTask(ctx, "nobody", "write tests", "2026-09-01"); err == nil {
		t.Fatalf("expected unknown assignee to be rejected")
	}
	if err := d.AssignTask(ctx, "dev1", "write tests", "not-a-date"); err == nil {
		t.Fatalf("expected bad deadline to be rejected")
	}
	if err := d.AssignTask(ctx, "dev1", "write tests", "2026-09-01"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	d.mirrors.Wait()

	state := d.State()
	if len(state.Tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(state.Tasks))
	}
	task := state.Tasks[0]
	if task.AssignedToEmail != "dev@compunic.com" || task.Status != model.TaskAssigned {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.Overdue {
		t.Fatalf("future deadline flagged overdue")
	}
}

func TestEditTaskDoneIsImmutable(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openAdmin(t, mem)
	ctx := context.Background()

	if err := d.AssignTask(ctx, "dev1", "ship it", "2026-09-01"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	d.mirrors.Wait()
	taskID := d.State().Tasks[0].ID

	if err := d.EditTask(ctx, taskID, "ship it properly", "2026-09-05"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	d.mirrors.Wait()
	if got := d.State().Tasks[0].Description; got != "ship it properly" {
		t.Fatalf("edit not applied: %q", got)
	}

	if err := mem.Update(ctx, colTasks, taskID, map[string]any{"status": string(model.TaskDone)}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	d.mirrors.Wait()
	if err := d.EditTask(ctx, taskID, "too late", "2026-09-09"); err == nil {
		t.Fatalf("expected done task to be immutable")
	}
}

func TestReviewExpenseOnlyFromPending(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	d := openAdmin(t, mem)
	ctx := context.Background()

	dev := model.Principal{ID: "dev1", Email: "dev@compunic.com", Role: model.RoleDeveloper}
	if err := submitExpense(ctx, mem, dev, 75, "conference travel", testNow); err != nil {
		t.Fatalf("submit: %v", err)
	}
	d.mirrors.Wait()

	expenseID := d.State().AllExpenses[0].ID
	if err := d.ReviewExpense(ctx, expenseID, model.ExpenseApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	d.mirrors.Wait()

	if got := d.State().AllExpenses[0].Status; got != model.ExpenseApproved {
		t.Fatalf("expected approval to land, got %s", got)
	}
	if err := d.ReviewExpense(ctx, expenseID, model.ExpenseRejected); err == nil {
		t.Fatalf("expected a second review to be refused")
	}
}

func TestAdminProjectChart(t *testing.T) {
	mem := store.NewMemory()
	seedUsers(t, mem)
	tester := openTester(t, mem)
	d := openAdmin(t, mem)
	ctx := context.Background()

	for _, project := range []string{"Billing", "Billing", "Portal"} {
		if _, err := tester.RaiseTicket(ctx, project, "dev@compunic.com", "bug"); err != nil {
			t.Fatalf("raise: %v", err)
		}
	}
	d.mirrors.Wait()

	state := d.State()
	if state.ActiveProjects != 2 {
		t.Fatalf("expected 2 active projects, got %d", state.ActiveProjects)
	}
	if len(state.ProjectChart.Labels) != 2 || state.ProjectChart.Labels[0] != "Billing" {
		t.Fatalf("unexpected chart %+v", state.ProjectChart)
	}
	if state.ProjectChart.Values[0] != 2 || state.ProjectChart.Values[1] != 1 {
		t.Fatalf("unexpected chart values %+v", state.ProjectChart.Values)
	}
}
