// Package period computes anchored monthly windows used to scope bill queries
// and debt views. A window starts on the anchor day of one month and ends the
// day before the anchor day of the next one.
package period

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultAnchorDay     = 15
	DefaultPreviousCount = 3

	dayLayout = "2006-01-02"
)

// Period is an inclusive range of whole days.
type Period struct {
	Start  time.Time // midnight of the first day
	End    time.Time // midnight of the last day
	anchor int
}

// ClampAnchorDay returns day when it is a valid day of month, otherwise the default.
func ClampAnchorDay(day int) int {
	if day < 1 || day > 31 {
		slog.Warn("invalid period start day, using default", "day", day, "default", DefaultAnchorDay)
		return DefaultAnchorDay
	}
	return day
}

// New builds the period [start, end] truncated to whole days.
func New(start, end time.Time) Period {
	return Period{Start: midnight(start), End: midnight(end), anchor: start.Day()}
}

// Current returns the window anchored on anchorDay that contains now.
func Current(now time.Time, anchorDay int) Period {
	anchorDay = ClampAnchorDay(anchorDay)
	start := anchorDate(now.Year(), now.Month(), anchorDay, now.Location())
	if now.Day() < start.Day() {
		start = anchorDate(now.Year(), now.Month()-1, anchorDay, now.Location())
	}
	return fromStart(start, anchorDay)
}

// anchorDate is the anchor day in the given month, clamped to the month's last day.
func anchorDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}

func fromStart(start time.Time, anchorDay int) Period {
	next := anchorDate(start.Year(), start.Month()+1, anchorDay, start.Location())
	return Period{Start: start, End: next.AddDate(0, 0, -1), anchor: anchorDay}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsZero reports whether p is the zero Period.
func (p Period) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

func (p Period) anchorDay() int {
	if p.anchor != 0 {
		return p.anchor
	}
	return p.Start.Day()
}

// PreviousMonthly shifts p back by n windows; a negative n moves forward.
func (p Period) PreviousMonthly(n int) Period {
	anchor := p.anchorDay()
	start := anchorDate(p.Start.Year(), p.Start.Month()-time.Month(n), anchor, p.Start.Location())
	return fromStart(start, anchor)
}

// Bounds returns the first and last second covered by p.
func (p Period) Bounds() (time.Time, time.Time) {
	end := time.Date(p.End.Year(), p.End.Month(), p.End.Day(), 23, 59, 59, 0, p.End.Location())
	return p.Start, end
}

// Contains is an inclusive, second-granularity range test.
func (p Period) Contains(t time.Time) bool {
	from, to := p.Bounds()
	t = t.Truncate(time.Second)
	return !t.Before(from) && !t.After(to)
}

// Equal compares the covered days.
func (p Period) Equal(o Period) bool {
	return p.Start.Equal(o.Start) && p.End.Equal(o.End)
}

func (p Period) String() string {
	return fmt.Sprintf("%s - %s", p.Start.Format(dayLayout), p.End.Format(dayLayout))
}

type periodJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label"`
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{
		Start: p.Start.Format(dayLayout),
		End:   p.End.Format(dayLayout),
		Label: p.String(),
	})
}

func (p *Period) UnmarshalJSON(data []byte) error {
	var raw periodJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := time.ParseInLocation(dayLayout, raw.Start, time.Local)
	if err != nil {
		return fmt.Errorf("period start: %w", err)
	}
	end, err := time.ParseInLocation(dayLayout, raw.End, time.Local)
	if err != nil {
		return fmt.Errorf("period end: %w", err)
	}
	*p = New(start, end)
	return nil
}

// Generate returns previousCount+1 windows ending with current, oldest first.
func Generate(current Period, previousCount int) []Period {
	if previousCount < 0 {
		previousCount = 0
	}
	periods := make([]Period, 0, previousCount+1)
	for n := previousCount; n >= 0; n-- {
		periods = append(periods, current.PreviousMonthly(n))
	}
	return periods
}
