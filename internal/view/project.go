// Package view holds the pure projections that turn mirror contents
// into display-ready state. Every function here is deterministic and
// side-effect free; dashboards re-run them on every mirror delivery.
package view

import (
	"sort"
	"strings"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/model"
)

type StatusCounts struct {
	Open     int `json:"open"`
	Resolved int `json:"resolved"`
	Closed   int `json:"closed"`
}

func CountTicketsByStatus(tickets []model.Ticket) StatusCounts {
	var counts StatusCounts
	for _, t := range tickets {
		switch t.Status {
		case model.TicketOpen:
			counts.Open++
		case model.TicketResolved:
			counts.Resolved++
		case model.TicketClosed:
			counts.Closed++
		}
	}
	return counts
}

// ChartData is the label/value pairing a pie or bar chart consumes.
type ChartData struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// TicketsByProject counts tickets per project, labels sorted so the
// same mirror always yields the same chart.
func TicketsByProject(tickets []model.Ticket) ChartData {
	byProject := make(map[string]int)
	for _, t := range tickets {
		byProject[t.ProjectName]++
	}
	labels := make([]string, 0, len(byProject))
	for name := range byProject {
		labels = append(labels, name)
	}
	sort.Strings(labels)
	values := make([]int, len(labels))
	for i, name := range labels {
		values[i] = byProject[name]
	}
	return ChartData{Labels: labels, Values: values}
}

// IsOverdue reports whether a task's deadline has passed as of now.
// Done tasks are never overdue; a deadline of today is not overdue.
// Evaluated against the clock on every call, never cached.
func IsOverdue(task model.Task, now time.Time) bool {
	if task.Status == model.TaskDone {
		return false
	}
	deadline, err := time.ParseInLocation(model.DateLayout, task.Deadline, now.Location())
	if err != nil {
		return false
	}
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return deadline.Before(startOfToday)
}

// TicketFilter is a conjunction of an optional case-insensitive search
// term, an optional status, an optional assignee, and an optional
// creation date. The zero filter is the identity.
type TicketFilter struct {
	Search    string
	Status    model.TicketStatus
	Developer string
	Date      string
}

func FilterTickets(tickets []model.Ticket, f TicketFilter) []model.Ticket {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]model.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if search != "" &&
			!strings.Contains(strings.ToLower(t.TicketID), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) &&
			!strings.Contains(strings.ToLower(t.ProjectName), search) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Developer != "" && t.AssignedDeveloper != f.Developer {
			continue
		}
		if f.Date != "" && t.CreatedAt.Format(model.DateLayout) != f.Date {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Paginate returns the 1-based page of a slice, with the page number
// clamped into [1, TotalPages]. The returned page is a contiguous,
// order-preserving window of the input.
func Paginate[T any](items []T, pageSize, page int) ([]T, int) {
	if pageSize <= 0 || len(items) == 0 {
		return nil, 1
	}
	total := TotalPages(len(items), pageSize)
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], page
}

func TotalPages(n, pageSize int) int {
	if pageSize <= 0 || n <= 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

// ReportRange selects the lookback window of an export.
type ReportRange string

const (
	RangeAll   ReportRange = "all"
	RangeToday ReportRange = "today"
	RangeWeek  ReportRange = "week"
	RangeMonth ReportRange = "month"
)

// RangeStart gives the inclusive lower bound of a report range: start
// of today, start of the current week (Sunday-based), or start of the
// current month. RangeAll has no bound and returns the zero time.
func RangeStart(r ReportRange, now time.Time) time.Time {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch r {
	case RangeToday:
		return startOfToday
	case RangeWeek:
		return startOfToday.AddDate(0, 0, -int(now.Weekday()))
	case RangeMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Time{}
	}
}

// TicketsSince keeps tickets created at or after the range start.
func TicketsSince(tickets []model.Ticket, r ReportRange, now time.Time) []model.Ticket {
	start := RangeStart(r, now)
	if start.IsZero() {
		return tickets
	}
	out := make([]model.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if !t.CreatedAt.Before(start) {
			out = append(out, t)
		}
	}
	return out
}

// OverdueTasks filters to tasks past their deadline.
func OverdueTasks(tasks []model.Task, now time.Time) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if IsOverdue(task, now) {
			out = append(out, task)
		}
	}
	return out
}

// FilterEmployees is the HR roster search: case-insensitive substring
// match on email.
func FilterEmployees(employees []model.Principal, search string) []model.Principal {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return employees
	}
	out := make([]model.Principal, 0, len(employees))
	for _, e := range employees {
		if strings.Contains(strings.ToLower(e.Email), needle) {
			out = append(out, e)
		}
	}
	return out
}
