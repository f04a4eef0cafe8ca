// Package attendance projects one principal's attendance mirror,
// restricted to a calendar month, into the calendar grid and summary
// the HR dashboard renders. Late classification is not done here: it
// happens at write time, so this package only counts statuses it is
// handed.
package attendance

import (
	"time"

	"github.com/Compunic-startup/compunic-management/internal/model"
)

// Cell is one slot of the month grid in row-major week order. Leading
// blanks (Day == 0) pad the first week so day 1 lands on its weekday
// column, Sunday first. A day without a record is unmarked.
type Cell struct {
	Day    int                     `json:"day"`
	Record *model.AttendanceRecord `json:"record,omitempty"`
}

func (c Cell) Blank() bool { return c.Day == 0 }

func (c Cell) Unmarked() bool { return c.Day != 0 && c.Record == nil }

// Summary carries the per-status counts plus the reporting rule that
// converts every three Late marks into one additional counted Absent.
// AbsentsFromLates adds to the directly marked absents, it never
// replaces them.
type Summary struct {
	Present          int `json:"present"`
	Absent           int `json:"absent"`
	Leave            int `json:"leave"`
	Late             int `json:"late"`
	AbsentsFromLates int `json:"absentsFromLates"`
	TotalAbsents     int `json:"totalAbsents"`
}

// MonthlyReport builds the calendar grid and summary for one month.
// Records outside the month, and malformed dates, are ignored; a
// second record for the same day cannot occur upstream (the store key
// is date_userId) but if one sneaks in the later one wins.
func MonthlyReport(records []model.AttendanceRecord, year int, month time.Month) ([]Cell, Summary) {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := firstOfMonth.AddDate(0, 1, -1).Day()

	byDay := make(map[int]model.AttendanceRecord, len(records))
	for _, record := range records {
		date, err := time.Parse(model.DateLayout, record.Date)
		if err != nil || date.Year() != year || date.Month() != month {
			continue
		}
		byDay[date.Day()] = record
	}

	var summary Summary
	for _, record := range byDay {
		switch record.Status {
		case model.AttendancePresent:
			summary.Present++
		case model.AttendanceAbsent:
			summary.Absent++
		case model.AttendanceLeave:
			summary.Leave++
		case model.AttendanceLate:
			summary.Late++
		}
	}
	summary.AbsentsFromLates = summary.Late / 3
	summary.TotalAbsents = summary.Absent + summary.AbsentsFromLates

	grid := make([]Cell, 0, int(firstOfMonth.Weekday())+daysInMonth)
	for i := 0; i < int(firstOfMonth.Weekday()); i++ {
		grid = append(grid, Cell{})
	}
	for day := 1; day <= daysInMonth; day++ {
		cell := Cell{Day: day}
		if record, ok := byDay[day]; ok {
			r := record
			cell.Record = &r
		}
		grid = append(grid, cell)
	}
	return grid, summary
}
