// Package constraint holds the dependency rules shared by the scheduler, the
// critical path analyzer and the forecaster. Every date computed from a
// predecessor edge goes through Rules so the three components agree on what
// FS, SS, FF and SF mean on a working calendar.
package constraint

import (
	"time"

	"github.com/Iron-Ham/plancast/internal/calendar"
	"github.com/Iron-Ham/plancast/internal/graph"
)

// Endpoint is the part of a predecessor a rule reads. The scheduler passes
// authoritative dates; the analyzer passes early dates.
type Endpoint struct {
	Start     time.Time
	End       time.Time
	Milestone bool
}

// EndpointOf returns the authoritative endpoint of t.
func EndpointOf(t *graph.Task) Endpoint {
	return Endpoint{Start: t.Start, End: t.End, Milestone: t.IsMilestone}
}

// Rules evaluates dependency constraints against a calendar.
type Rules struct {
	Cal *calendar.Calendar
}

// New returns Rules bound to cal.
func New(cal *calendar.Calendar) Rules {
	return Rules{Cal: cal}
}

// Constraint returns the date a single edge imposes on its successor and
// whether that date bounds the successor's end (FF, SF) rather than its
// start (FS, SS). succMilestone reports whether the successor is a
// milestone.
func (r Rules) Constraint(pred Endpoint, dep graph.Predecessor, succMilestone bool) (time.Time, bool, error) {
	switch dep.Type {
	case graph.StartToStart:
		at, err := r.Cal.AddWorkingDays(pred.Start, dep.LagDays)
		return at, false, err
	case graph.FinishToFinish:
		at, err := r.Cal.AddWorkingDays(pred.End, dep.LagDays)
		return at, true, err
	case graph.StartToFinish:
		at, err := r.Cal.AddWorkingDays(pred.Start, dep.LagDays)
		return at, true, err
	default:
		at, err := r.FinishToStart(pred, dep.LagDays, succMilestone)
		return at, false, err
	}
}

// FinishToStart shifts the predecessor end by lag working days. A
// predecessor that consumes its last day (any non-milestone, or a milestone
// sitting at or past the end of the work window) pushes the successor to
// the start of the following working day. A milestone successor never
// rolls: it marks the moment its predecessor finishes.
func (r Rules) FinishToStart(pred Endpoint, lag int, succMilestone bool) (time.Time, error) {
	at, err := r.Cal.AddWorkingDays(pred.End, lag)
	if err != nil {
		return at, err
	}
	if !r.rolls(pred, succMilestone) {
		return at, nil
	}
	at, err = r.Cal.AddWorkingDays(at, 1)
	if err != nil {
		return at, err
	}
	return r.Cal.DayStart(at), nil
}

func (r Rules) rolls(pred Endpoint, succMilestone bool) bool {
	if succMilestone {
		return false
	}
	return !pred.Milestone || r.Cal.IsLate(pred.End)
}

// Bounds is the result of folding every edge of a task.
type Bounds struct {
	Start    time.Time
	End      time.Time
	HasStart bool
	HasEnd   bool
}

// Fold keeps the latest start-bounding and the latest end-bounding
// constraint.
func (b *Bounds) Fold(at time.Time, constrainsEnd bool) {
	if constrainsEnd {
		if !b.HasEnd || at.After(b.End) {
			b.End, b.HasEnd = at, true
		}
		return
	}
	if !b.HasStart || at.After(b.Start) {
		b.Start, b.HasStart = at, true
	}
}

// Duration is the working-day length of t: 0 for milestones, otherwise the
// working days in its range and never less than 1.
func (r Rules) Duration(t *graph.Task) int {
	if t.IsMilestone {
		return 0
	}
	return max(1, r.Cal.WorkingDaysBetween(t.Start, t.End))
}

// EndFromDuration returns the end of a task that starts at start and lasts
// days working days: the window end of its last day. A zero duration ends
// where it starts.
func (r Rules) EndFromDuration(start time.Time, days int) (time.Time, error) {
	if days <= 0 {
		return start, nil
	}
	last, err := r.Cal.AddWorkingDays(start, days-1)
	if err != nil {
		return start, err
	}
	return r.Cal.DayEnd(last), nil
}

// StartFromDuration is the inverse of EndFromDuration, snapped to the
// window start of the first day.
func (r Rules) StartFromDuration(end time.Time, days int) (time.Time, error) {
	if days <= 0 {
		return end, nil
	}
	first, err := r.Cal.SubtractWorkingDays(end, days-1)
	if err != nil {
		return end, err
	}
	return r.Cal.DayStart(first), nil
}

// LatestFinish is the inverse of Constraint used by the backward pass: the
// latest finish the predecessor may have without delaying a successor whose
// late dates are succ. dur is the predecessor's working-day duration and
// pred its early endpoint.
func (r Rules) LatestFinish(pred Endpoint, dur int, succ Endpoint, dep graph.Predecessor) (time.Time, error) {
	switch dep.Type {
	case graph.StartToStart:
		ls, err := r.Cal.SubtractWorkingDays(succ.Start, dep.LagDays)
		if err != nil {
			return ls, err
		}
		return r.finishFromStart(ls, dur)
	case graph.FinishToFinish:
		return r.Cal.SubtractWorkingDays(succ.End, dep.LagDays)
	case graph.StartToFinish:
		ls, err := r.Cal.SubtractWorkingDays(succ.End, dep.LagDays)
		if err != nil {
			return ls, err
		}
		return r.finishFromStart(ls, dur)
	default:
		back := dep.LagDays
		if r.rolls(pred, succ.Milestone) {
			back++
		}
		return r.Cal.SubtractWorkingDays(succ.Start, back)
	}
}

func (r Rules) finishFromStart(start time.Time, dur int) (time.Time, error) {
	if dur <= 1 {
		return start, nil
	}
	return r.Cal.AddWorkingDays(start, dur-1)
}

// Offset is the signed number of working days from a to b: 0 on the same
// date, positive when b is later.
func (r Rules) Offset(a, b time.Time) int {
	switch {
	case calendar.SameDate(a, b):
		return 0
	case b.After(a):
		return r.Cal.WorkingDaysBetween(a, b) - r.startCounts(a)
	default:
		return -(r.Cal.WorkingDaysBetween(b, a) - r.startCounts(b))
	}
}

func (r Rules) startCounts(d time.Time) int {
	if r.Cal.IsWorkingDay(d) {
		return 1
	}
	return 0
}
