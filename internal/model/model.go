package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates (deadlines, leave
// dates, attendance dates). Times of day travel as "HH:MM".
const DateLayout = "2006-01-02"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleTester    Role = "tester"
	RoleHR        Role = "hr"
	RoleUnknown   Role = "unknown"
)

// DefaultRole is the fail-safe fallback when a role lookup fails or
// returns nothing. Tester is the lowest-privilege dashboard.
const DefaultRole = RoleTester

func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleDeveloper:
		return RoleDeveloper
	case RoleTester:
		return RoleTester
	case RoleHR:
		return RoleHR
	default:
		return RoleUnknown
	}
}

// Principal is the authenticated identity of one session. Role is
// resolved once per session and never changes afterwards.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type TicketStatus string

const (
	TicketOpen     TicketStatus = "Open"
	TicketResolved TicketStatus = "Resolved"
	TicketClosed   TicketStatus = "Closed"
)

type Ticket struct {
	ID                string       `json:"-"`
	TicketID          string       `json:"ticketId"`
	ProjectName       string       `json:"projectName"`
	Description       string       `json:"description"`
	Status            TicketStatus `json:"status"`
	RaisedBy          string       `json:"raisedBy"`
	AssignedDeveloper string       `json:"assignedDeveloper"`
	CreatedAt         time.Time    `json:"createdAt"`
	ResolvedAt        *time.Time   `json:"resolvedAt,omitempty"`
	ResolvedBy        string       `json:"resolvedBy,omitempty"`
	ResolutionNotes   string       `json:"resolutionNotes,omitempty"`
}

// CanTransition reports whether a ticket status change is one of the
// allowed moves: Open->Resolved, Resolved->Closed, Resolved->Open
// (reopen). Closed tickets never move; they are re-raised as new ones.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	switch s {
	case TicketOpen:
		return next == TicketResolved
	case TicketResolved:
		return next == TicketClosed || next == TicketOpen
	default:
		return false
	}
}

// NewTicketID builds the human-facing ticket reference, e.g. COMP-583194.
func NewTicketID(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "COMP-" + ms
}

type TaskStatus string

const (
	TaskAssigned TaskStatus = "Assigned"
	TaskDone     TaskStatus = "Done"
)

// Task deadlines are calendar dates; overdue is always derived from
// the current clock, never stored.
type Task struct {
	ID              string     `json:"-"`
	AssignedToID    string     `json:"assignedToId"`
	AssignedToEmail string     `json:"assignedToEmail"`
	Description     string     `json:"description"`
	Deadline        string     `json:"deadline"`
	Status          TaskStatus `json:"status"`
	AssignedBy      string     `json:"assignedBy"`
	AssignedAt      time.Time  `json:"assignedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "Pending"
	ExpenseApproved ExpenseStatus = "Approved"
	ExpenseRejected ExpenseStatus = "Rejected"
)

type Expense struct {
	ID          string        `json:"-"`
	UserID      string        `json:"userId"`
	Email       string        `json:"email"`
	Amount      float64       `json:"amount"`
	Reason      string        `json:"reason"`
	Status      ExpenseStatus `json:"status"`
	SubmittedAt time.Time     `json:"submittedAt"`
	ReviewedBy  string        `json:"reviewedBy,omitempty"`
}

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "Pending"
	LeaveApproved LeaveStatus = "Approved"
	LeaveRejected LeaveStatus = "Rejected"
)

type LeaveRequest struct {
	ID         string      `json:"-"`
	UserID     string      `json:"userId"`
	Email      string      `json:"email"`
	Role       Role        `json:"role,omitempty"`
	LeaveDate  string      `json:"leaveDate"`
	Reason     string      `json:"reason"`
	Status     LeaveStatus `json:"status"`
	AppliedAt  time.Time   `json:"appliedAt"`
	ReviewedBy string      `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time  `json:"reviewedAt,omitempty"`
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "Present"
	AttendanceAbsent  AttendanceStatus = "Absent"
	AttendanceLeave   AttendanceStatus = "Leave"
	AttendanceLate    AttendanceStatus = "Late"
)

type AttendanceRecord struct {
	ID       string           `json:"-"`
	UserID   string           `json:"userId"`
	Email    string           `json:"email"`
	Date     string           `json:"date"`
	Status   AttendanceStatus `json:"status"`
	InTime   string           `json:"inTime,omitempty"`
	OutTime  string           `json:"outTime,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	MarkedBy string           `json:"markedBy"`
	MarkedAt time.Time        `json:"timestamp"`
}

// AttendanceDocID is the deterministic document identity for one
// (date, user) pair. Writing through this key is what enforces the
// one-record-per-day invariant without a transaction.
func AttendanceDocID(date, userID string) string {
	return date + "_" + userID
}

// LateCutoffMinutes is 11:20 as minutes since midnight. A Present mark
// clocked in at or past the cutoff persists as Late.
const LateCutoffMinutes = 680

// ClassifyAttendance applies the late rule at write time so readers
// only ever see already-classified statuses. Statuses other than
// Present, and unparseable in-times, pass through unchanged.
func ClassifyAttendance(status AttendanceStatus, inTime string) AttendanceStatus {
	if status != AttendancePresent {
		return status
	}
	minutes, err := MinutesOfDay(inTime)
	if err != nil {
		return status
	}
	if minutes >= LateCutoffMinutes {
		return AttendanceLate
	}
	return status
}

// MinutesOfDay parses "HH:MM" into minutes since midnight.
func MinutesOfDay(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", hhmm)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", hhmm)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", hhmm)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("time of day %q out of range", hhmm)
	}
	return hours*60 + minutes, nil
}
