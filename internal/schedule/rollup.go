package schedule

import (
	"strconv"

	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/graph"
)

// RollupSummary derives summary id from its children and then walks up to
// its ancestors. It returns the ids whose dates or percent changed. Calling
// it on a task that is not a summary only rolls up its ancestors.
func (s *Scheduler) RollupSummary(id int) ([]int, error) {
	t, ok := s.store.Task(id)
	if !ok {
		return nil, errors.NewNotFoundError("task", strconv.Itoa(id)).WithCause(errors.ErrTaskNotFound)
	}
	var changed []int
	for cur := t; cur != nil; {
		if s.rollupOne(cur) {
			changed = append(changed, cur.ID)
		}
		parent, ok := s.store.Parent(cur.ID)
		if !ok {
			break
		}
		cur = parent
	}
	return changed, nil
}

// rollupAll derives every summary, deepest first, so each parent sees
// final child values.
func (s *Scheduler) rollupAll() []int {
	var changed []int
	for _, t := range s.store.SummariesDeepestFirst() {
		if s.rollupOne(t) {
			changed = append(changed, t.ID)
		}
	}
	return changed
}

// rollupOne spans t over its children and sets its percent complete to
// the calendar-duration weighted average of the non-milestone children.
// With only milestone children it is the share of them at 100%.
func (s *Scheduler) rollupOne(t *graph.Task) bool {
	if !t.IsSummary {
		return false
	}
	children := s.store.Children(t.ID)
	if len(children) == 0 {
		return false
	}

	start, end := children[0].Start, children[0].End
	var weight, weighted, milestones, done int
	for _, c := range children {
		if c.Start.Before(start) {
			start = c.Start
		}
		if c.End.After(end) {
			end = c.End
		}
		if c.IsMilestone {
			milestones++
			if c.PercentComplete == 100 {
				done++
			}
			continue
		}
		d := c.CalendarDays()
		weight += d
		weighted += d * c.PercentComplete
	}

	percent := t.PercentComplete
	switch {
	case milestones == len(children):
		percent = done * 100 / len(children)
	case weight > 0:
		percent = weighted / weight
	}

	if start.Equal(t.Start) && end.Equal(t.End) && percent == t.PercentComplete {
		return false
	}
	t.Start, t.End, t.PercentComplete = start, end, percent
	return true
}
