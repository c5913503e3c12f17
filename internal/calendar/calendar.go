// Package calendar implements working-time arithmetic: which days are
// working days, how many working days or hours lie between two instants, and
// how to move an instant forward or backward by working days or hours.
//
// A Calendar combines a set of working weekdays, a daily work window, a list
// of fixed and recurring holidays, and optional project bounds that limit
// where recurring holidays apply. A resource view obtained through
// [Calendar.WithExceptions] additionally excludes that resource's exception
// dates.
//
// Every walk that steps day by day is bounded: if no working day is found
// within maxNonWorkingRun consecutive days the walk fails with a
// CalendarError wrapping ErrNoWorkingDays instead of looping forever.
package calendar

import (
	"fmt"
	"slices"
	"time"

	"github.com/Iron-Ham/plancast/internal/errors"
)

// Default work window used when none is configured or the configured one
// cannot be parsed.
const (
	DefaultWorkStart = "08:00"
	DefaultWorkEnd   = "16:00"
)

// maxNonWorkingRun bounds day-stepping walks. Ten years without a working
// day means the calendar is degenerate.
const maxNonWorkingRun = 3660

// epsilon absorbs float rounding when comparing instants against window
// boundaries.
const epsilon = time.Millisecond

// Holiday is a named non-working date range. Recurring holidays repeat every
// year on the same (month, day) range and may wrap the year boundary.
type Holiday struct {
	Name      string
	Start     time.Time
	End       time.Time // zero for a single-day holiday
	Comment   string
	Recurring bool
}

// last returns the holiday's final date, defaulting to Start.
func (h Holiday) last() time.Time {
	if h.End.IsZero() || h.End.Before(h.Start) {
		return h.Start
	}
	return h.End
}

// Options configures a new Calendar.
type Options struct {
	// WorkingDays holds weekday indices, 0=Monday through 6=Sunday.
	WorkingDays []int
	// WorkStart and WorkEnd are "HH:MM" clock times.
	WorkStart string
	WorkEnd   string
	Holidays  []Holiday
	// ProjectStart and ProjectEnd bound recurring holidays. Zero is unbounded.
	ProjectStart time.Time
	ProjectEnd   time.Time
}

// Calendar answers working-time questions. The zero value has no working
// days; use New or Default.
//
// A Calendar is not safe for concurrent mutation. Read-only use from
// multiple goroutines is safe once configuration is complete.
type Calendar struct {
	workingDays [7]bool
	workStart   time.Duration // offset from midnight
	hoursPerDay float64
	holidays    []Holiday
	fixed       map[string]struct{}
	projStart   time.Time
	projEnd     time.Time
	exceptions  Exceptions
	warnings    []error
}

// Default returns a Monday to Friday, 08:00-16:00 calendar with no holidays.
func Default() *Calendar {
	c, _ := New(Options{WorkingDays: []int{0, 1, 2, 3, 4}})
	return c
}

// New builds a Calendar. An empty or out-of-range working-day set is an
// error. An unparsable work window is not: the default window is applied
// and the problem is recorded in Warnings.
func New(opts Options) (*Calendar, error) {
	c := &Calendar{fixed: make(map[string]struct{})}
	if err := c.SetWorkingDays(opts.WorkingDays); err != nil {
		return nil, err
	}

	start, end := opts.WorkStart, opts.WorkEnd
	if start == "" && end == "" {
		start, end = DefaultWorkStart, DefaultWorkEnd
	}
	if err := c.SetWorkWindow(start, end); err != nil {
		c.warnings = append(c.warnings, err)
	}

	c.SetProjectBounds(opts.ProjectStart, opts.ProjectEnd)
	c.SetHolidays(opts.Holidays)
	return c, nil
}

// Warnings returns configuration problems that were recovered with defaults.
func (c *Calendar) Warnings() []error {
	return slices.Clone(c.warnings)
}

// SetWorkingDays replaces the working weekday set.
func (c *Calendar) SetWorkingDays(days []int) error {
	if len(days) == 0 {
		return errors.NewCalendarError("at least one working weekday is required", errors.ErrNoWorkingDays).
			WithField("working_days")
	}
	var set [7]bool
	for _, d := range days {
		if d < 0 || d > 6 {
			return errors.NewValidationError("weekday index must be between 0 (Monday) and 6 (Sunday)").
				WithField("working_days").
				WithValue(d)
		}
		set[d] = true
	}
	c.workingDays = set
	return nil
}

// WorkingDays returns the working weekday indices in ascending order.
func (c *Calendar) WorkingDays() []int {
	var days []int
	for i, ok := range c.workingDays {
		if ok {
			days = append(days, i)
		}
	}
	return days
}

// SetWorkWindow sets the daily work window from "HH:MM" strings. The window
// may wrap past midnight; equal start and end yield a zero-hour day.
//
// If either string is malformed the 08:00-16:00 default is applied and an
// error wrapping ErrInvalidWorkWindow with warning severity is returned.
// The calendar remains usable either way.
func (c *Calendar) SetWorkWindow(start, end string) error {
	s, errS := parseClock(start)
	e, errE := parseClock(end)
	var warn error
	if errS != nil || errE != nil {
		s, _ = parseClock(DefaultWorkStart)
		e, _ = parseClock(DefaultWorkEnd)
		warn = errors.NewCalendarError(
			fmt.Sprintf("cannot parse work window %q-%q, using %s-%s", start, end, DefaultWorkStart, DefaultWorkEnd),
			errors.ErrInvalidWorkWindow,
		).WithField("work_window").WithSeverity(errors.SeverityWarning)
	}

	span := e - s
	if span < 0 {
		span += 24 * time.Hour
	}
	c.workStart = s
	c.hoursPerDay = span.Hours()
	return warn
}

// WorkStart returns the window start as "HH:MM".
func (c *Calendar) WorkStart() string {
	return formatClock(c.workStart)
}

// WorkEnd returns the window end as "HH:MM".
func (c *Calendar) WorkEnd() string {
	return formatClock(c.workStart + c.windowSpan())
}

// HoursPerDay returns the length of the daily work window in hours.
func (c *Calendar) HoursPerDay() float64 {
	return c.hoursPerDay
}

func (c *Calendar) windowSpan() time.Duration {
	return time.Duration(c.hoursPerDay * float64(time.Hour))
}

// SetProjectBounds limits recurring holidays to [start, end]. A zero bound is
// open on that side.
func (c *Calendar) SetProjectBounds(start, end time.Time) {
	c.projStart, c.projEnd = start, end
}

// ProjectBounds returns the configured recurring-holiday bounds.
func (c *Calendar) ProjectBounds() (start, end time.Time) {
	return c.projStart, c.projEnd
}

// SetHolidays replaces the holiday list and rebuilds the fixed-date index.
func (c *Calendar) SetHolidays(holidays []Holiday) {
	c.holidays = slices.Clone(holidays)
	c.fixed = make(map[string]struct{})
	for _, h := range c.holidays {
		c.indexHoliday(h)
	}
}

// AddHoliday appends one holiday.
func (c *Calendar) AddHoliday(h Holiday) {
	c.holidays = append(c.holidays, h)
	if c.fixed == nil {
		c.fixed = make(map[string]struct{})
	}
	c.indexHoliday(h)
}

// Holidays returns a copy of the holiday list.
func (c *Calendar) Holidays() []Holiday {
	return slices.Clone(c.holidays)
}

func (c *Calendar) indexHoliday(h Holiday) {
	if h.Recurring || h.Start.IsZero() {
		return
	}
	last := DateOf(h.last())
	for d, n := DateOf(h.Start), 0; !d.After(last) && n <= maxNonWorkingRun; d, n = d.AddDate(0, 0, 1), n+1 {
		c.fixed[dateKey(d)] = struct{}{}
	}
}

// WithExceptions returns a view of the calendar that also treats the given
// resource exception dates as non-working. The view shares holiday data with
// c and must not outlive further configuration changes to c.
func (c *Calendar) WithExceptions(ex Exceptions) *Calendar {
	view := *c
	view.exceptions = ex
	view.warnings = nil
	return &view
}

// IsWorkingDay reports whether d's calendar date is a working day.
func (c *Calendar) IsWorkingDay(d time.Time) bool {
	if !c.workingDays[weekdayIndex(d)] {
		return false
	}
	if _, ok := c.fixed[dateKey(d)]; ok {
		return false
	}
	if c.isRecurringHoliday(d) {
		return false
	}
	return !c.exceptions.Contains(d)
}

func (c *Calendar) isRecurringHoliday(d time.Time) bool {
	day := DateOf(d)
	if !c.projStart.IsZero() && day.Before(DateOf(c.projStart)) {
		return false
	}
	if !c.projEnd.IsZero() && day.After(DateOf(c.projEnd)) {
		return false
	}

	md := monthDay(d)
	for _, h := range c.holidays {
		if !h.Recurring || h.Start.IsZero() {
			continue
		}
		from, to := monthDay(h.Start), monthDay(h.last())
		if from <= to {
			if md >= from && md <= to {
				return true
			}
		} else if md >= from || md <= to {
			return true
		}
	}
	return false
}

// WorkingDaysBetween counts working days in [start, end] by calendar date,
// inclusive at both ends. It returns 0 when end precedes start.
func (c *Calendar) WorkingDaysBetween(start, end time.Time) int {
	last := DateOf(end)
	count := 0
	for d := DateOf(start); !d.After(last); d = d.AddDate(0, 0, 1) {
		if c.IsWorkingDay(d) {
			count++
		}
	}
	return count
}

// WorkingHoursBetween sums the overlap between [start, end] and the work
// window of every working day touching it.
func (c *Calendar) WorkingHoursBetween(start, end time.Time) float64 {
	if !end.After(start) || c.hoursPerDay <= 0 {
		return 0
	}

	var total time.Duration
	last := DateOf(end)
	// The previous day's window can spill into start's day when it wraps
	// midnight.
	for d := DateOf(start).AddDate(0, 0, -1); !d.After(last); d = d.AddDate(0, 0, 1) {
		if !c.IsWorkingDay(d) {
			continue
		}
		ws, we := c.DayStart(d), c.DayEnd(d)
		lo, hi := maxTime(ws, start), minTime(we, end)
		if hi.After(lo) {
			total += hi.Sub(lo)
		}
	}
	return total.Hours()
}

// AddWorkingDays moves d forward by n working days, one calendar day at a
// time, keeping the clock time. n=0 returns d unchanged; negative n moves
// backward.
func (c *Calendar) AddWorkingDays(d time.Time, n int) (time.Time, error) {
	if n < 0 {
		return c.step(d, -n, -1)
	}
	return c.step(d, n, 1)
}

// SubtractWorkingDays moves d backward by n working days. Negative n moves
// forward.
func (c *Calendar) SubtractWorkingDays(d time.Time, n int) (time.Time, error) {
	if n < 0 {
		return c.step(d, -n, 1)
	}
	return c.step(d, n, -1)
}

func (c *Calendar) step(d time.Time, n, dir int) (time.Time, error) {
	cur := d
	run := 0
	for n > 0 {
		cur = cur.AddDate(0, 0, dir)
		if c.IsWorkingDay(cur) {
			n--
			run = 0
			continue
		}
		run++
		if run > maxNonWorkingRun {
			return d, c.degenerate(d)
		}
	}
	return cur, nil
}

// AddWorkingHours consumes hours against work windows starting at d. An
// instant outside any window first snaps to the next window start; hours
// left over at the end of a day carry to the next working day's start.
func (c *Calendar) AddWorkingHours(d time.Time, hours float64) (time.Time, error) {
	if hours <= 0 {
		return d, nil
	}
	if c.hoursPerDay <= 0 {
		return d, errors.NewCalendarError("cannot add working hours", errors.ErrNoWorkingHours).
			WithField("work_window").
			WithDate(d)
	}

	remaining := time.Duration(hours * float64(time.Hour))
	cur := d
	ws, we, err := c.windowAfter(cur)
	if err != nil {
		return d, err
	}
	for {
		if cur.Before(ws) {
			cur = ws
		}
		avail := we.Sub(cur)
		if remaining <= avail+epsilon {
			return cur.Add(remaining), nil
		}
		remaining -= avail
		if ws, we, err = c.windowAfter(we); err != nil {
			return d, err
		}
		cur = ws
	}
}

// windowAfter returns the first working-day window that ends after t.
func (c *Calendar) windowAfter(t time.Time) (start, end time.Time, err error) {
	run := 0
	for d := DateOf(t).AddDate(0, 0, -1); ; d = d.AddDate(0, 0, 1) {
		if c.IsWorkingDay(d) {
			run = 0
			ws, we := c.DayStart(d), c.DayEnd(d)
			if we.Sub(t) > epsilon {
				return ws, we, nil
			}
			continue
		}
		run++
		if run > maxNonWorkingRun {
			return time.Time{}, time.Time{}, c.degenerate(t)
		}
	}
}

// NextWorkingDay returns the first working date on or after d, at d's clock.
func (c *Calendar) NextWorkingDay(d time.Time) (time.Time, error) {
	if c.IsWorkingDay(d) {
		return d, nil
	}
	return c.AddWorkingDays(d, 1)
}

// DayStart returns the work window start on d's date.
func (c *Calendar) DayStart(d time.Time) time.Time {
	return DateOf(d).Add(c.workStart)
}

// DayEnd returns the work window end for the window starting on d's date.
// For windows that wrap midnight this falls on the following date.
func (c *Calendar) DayEnd(d time.Time) time.Time {
	return c.DayStart(d).Add(c.windowSpan())
}

// IsLate reports whether t is at or after the end of its day's work window.
func (c *Calendar) IsLate(t time.Time) bool {
	return !t.Before(c.DayEnd(t).Add(-epsilon))
}

func (c *Calendar) degenerate(d time.Time) error {
	return errors.NewCalendarError(
		fmt.Sprintf("no working day within %d days", maxNonWorkingRun),
		errors.ErrNoWorkingDays,
	).WithDate(d)
}

// DateOf truncates t to midnight in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	return dateKey(a) == dateKey(b)
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func monthDay(t time.Time) int {
	return int(t.Month())*100 + t.Day()
}

func parseClock(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q", s)
}

func formatClock(d time.Duration) string {
	d %= 24 * time.Hour
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
