package model

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"admin":     RoleAdmin,
		"Developer": RoleDeveloper,
		" hr ":      RoleHR,
		"tester":    RoleTester,
		"":          RoleUnknown,
		"manager":   RoleUnknown,
	}
	for input, expect := range cases {
		if got := ParseRole(input); got != expect {
			t.Fatalf("ParseRole(%q) = %s, want %s", input, got, expect)
		}
	}
}

func TestTicketTransitions(t *testing.T) {
	allowed := []struct {
		from, to TicketStatus
	}{
		{TicketOpen, TicketResolved},
		{TicketResolved, TicketClosed},
		{TicketResolved, TicketOpen},
	}
	for _, c := range allowed {
		if !c.from.CanTransition(c.to) {
			t.Fatalf("expected %s -> %s to be allowed", c.from, c.to)
		}
	}
	forbidden := []struct {
		from, to TicketStatus
	}{
		{TicketOpen, TicketClosed},
		{TicketClosed, TicketOpen},
		{TicketClosed, TicketResolved},
		{TicketOpen, TicketOpen},
	}
	for _, c := range forbidden {
		if c.from.CanTransition(c.to) {
			t.Fatalf("expected %s -> %s to be forbidden", c.from, c.to)
		}
	}
}

func TestClassifyAttendance(t *testing.T) {
	cases := []struct {
		status AttendanceStatus
		inTime string
		expect AttendanceStatus
	}{
		{AttendancePresent, "11:19", AttendancePresent},
		{AttendancePresent, "11:20", AttendanceLate},
		{AttendancePresent, "11:21", AttendanceLate},
		{AttendancePresent, "09:00", AttendancePresent},
		{AttendancePresent, "", AttendancePresent},
		{AttendancePresent, "not-a-time", AttendancePresent},
		{AttendanceAbsent, "12:00", AttendanceAbsent},
		{AttendanceLeave, "12:00", AttendanceLeave},
	}
	for _, c := range cases {
		if got := ClassifyAttendance(c.status, c.inTime); got != c.expect {
			t.Fatalf("ClassifyAttendance(%s, %q) = %s, want %s", c.status, c.inTime, got, c.expect)
		}
	}
}

func TestMinutesOfDay(t *testing.T) {
	if minutes, err := MinutesOfDay("11:20"); err != nil || minutes != 680 {
		t.Fatalf("MinutesOfDay(11:20) = %d, %v", minutes, err)
	}
	for _, bad := range []string{"", "11", "25:00", "11:60", "aa:bb"} {
		if _, err := MinutesOfDay(bad); err == nil {
			t.Fatalf("expected %q to fail", bad)
		}
	}
}

func TestAttendanceDocID(t *testing.T) {
	if got := AttendanceDocID("2026-08-28", "u1"); got != "2026-08-28_u1" {
		t.Fatalf("unexpected doc id %s", got)
	}
}

func TestNewTicketID(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	id := NewTicketID(now)
	if len(id) != len("COMP-")+6 {
		t.Fatalf("unexpected ticket id %s", id)
	}
	if id[:5] != "COMP-" {
		t.Fatalf("unexpected ticket id prefix %s", id)
	}
}
