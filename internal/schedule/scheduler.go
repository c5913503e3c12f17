// Package schedule moves auto-scheduled tasks to satisfy their predecessor
// constraints and keeps summary tasks in step with their children.
//
// A task is in one of three states. Tasks without predecessors are
// unconstrained and sit at the start the user last entered. Auto-scheduled
// tasks with predecessors are placed by the constraint rules. Manually
// scheduled tasks keep their dates and only act as sources for their
// successors.
//
// The Scheduler never changes graph structure. Callers apply a mutation to
// the graph.Store first and then call the matching On* hook.
package schedule

import (
	"slices"
	"strconv"

	"github.com/Iron-Ham/plancast/internal/calendar"
	"github.com/Iron-Ham/plancast/internal/constraint"
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/graph"
	"github.com/Iron-Ham/plancast/internal/logging"
)

// Scheduler recomputes task dates over a Store.
type Scheduler struct {
	store  *graph.Store
	rules  constraint.Rules
	opts   Options
	logger *logging.Logger
}

// New returns a Scheduler for store using cal. The calendar is read on
// every call, so in-place calendar edits take effect on the next
// OnCalendarChanged.
func New(store *graph.Store, cal *calendar.Calendar, opts Options) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		store:  store,
		rules:  constraint.New(cal),
		opts:   opts,
		logger: opts.Logger.WithComponent("schedule"),
	}
}

// Mode returns the propagation mode.
func (s *Scheduler) Mode() Mode {
	return s.opts.Mode
}

// Result reports what a scheduling call changed.
type Result struct {
	// Changed lists tasks whose start or end moved, ascending.
	Changed []int
	// Passes is the number of propagation passes run.
	Passes int
	// Converged is false when fixed-point propagation hit MaxPasses.
	Converged bool
}

func (r *Result) add(ids ...int) {
	for _, id := range ids {
		if i, found := slices.BinarySearch(r.Changed, id); !found {
			r.Changed = slices.Insert(r.Changed, i, id)
		}
	}
}

func (r *Result) merge(o Result) {
	r.add(o.Changed...)
	r.Passes += o.Passes
	r.Converged = r.Converged && o.Converged
}

// Recompute places task id from its predecessors and reports whether its
// dates moved. Manually scheduled tasks and summaries are left alone.
func (s *Scheduler) Recompute(id int) (bool, error) {
	t, ok := s.store.Task(id)
	if !ok {
		return false, errors.NewNotFoundError("task", strconv.Itoa(id)).WithCause(errors.ErrTaskNotFound)
	}
	return s.recompute(t)
}

func (s *Scheduler) recompute(t *graph.Task) (bool, error) {
	if t.ScheduleType == graph.ManuallyScheduled || t.IsSummary {
		return false, nil
	}

	dur := s.rules.Duration(t)
	var b constraint.Bounds
	for _, p := range t.Predecessors {
		pred, ok := s.store.Task(p.TaskID)
		if !ok {
			continue
		}
		at, endsAt, err := s.rules.Constraint(constraint.EndpointOf(pred), p, t.IsMilestone)
		if err != nil {
			return false, s.wrap(t.ID, err)
		}
		b.Fold(at, endsAt)
	}

	start, end := t.Start, t.End
	var err error
	switch {
	case b.HasStart:
		start = b.Start
		if b.HasEnd {
			end = b.End
		} else {
			end, err = s.rules.EndFromDuration(start, dur)
		}
	case b.HasEnd:
		end = b.End
		start, err = s.rules.StartFromDuration(end, dur)
	default:
		start = t.OriginalStart()
		end, err = s.rules.EndFromDuration(start, dur)
	}
	if err != nil {
		return false, s.wrap(t.ID, err)
	}

	if t.IsMilestone || end.Before(start) {
		end = start
	}
	if start.Equal(t.Start) && end.Equal(t.End) {
		return false, nil
	}
	t.Start, t.End = start, end
	return true, nil
}

func (s *Scheduler) wrap(id int, err error) error {
	return errors.NewScheduleError("cannot place task", err).WithTaskID(id)
}

// Propagate recomputes the auto-scheduled successors of seedID breadth
// first, then rolls up every summary. The seed itself is recomputed unless
// it is manually scheduled.
//
// In FixedPoint mode further passes run over everything downstream of the
// seed until nothing moves. When MaxPasses is reached first, the returned
// Result has Converged false and the error wraps ErrNotConverged.
func (s *Scheduler) Propagate(seedID int) (Result, error) {
	res := Result{Converged: true}
	if _, ok := s.store.Task(seedID); !ok {
		return res, errors.NewNotFoundError("task", strconv.Itoa(seedID)).WithCause(errors.ErrTaskNotFound)
	}

	changed, err := s.singlePass(seedID)
	res.Passes = 1
	res.add(changed...)
	if err != nil {
		return res, err
	}

	if s.opts.Mode == FixedPoint {
		downstream, err := s.downstream(seedID)
		if err != nil {
			return res, err
		}
		for {
			if res.Passes >= s.opts.MaxPasses {
				res.Converged = false
				break
			}
			moved, err := s.recomputeAll(downstream)
			res.Passes++
			res.add(moved...)
			if err != nil {
				return res, err
			}
			if len(moved) == 0 {
				break
			}
		}
	}

	rolled := s.rollupAll()
	res.add(rolled...)

	s.logger.Debug("propagation complete",
		"seed", seedID,
		"mode", s.opts.Mode.String(),
		"changed", len(res.Changed),
		"passes", res.Passes,
		"converged", res.Converged,
	)

	if !res.Converged {
		return res, errors.NewScheduleError("dates still moving after the last pass", errors.ErrNotConverged).
			WithTaskID(seedID).
			WithPass(res.Passes).
			WithSeverity(errors.SeverityWarning)
	}
	return res, nil
}

// singlePass is the breadth-first walk. A task that moves (or the seed) is
// finalized and enqueues its auto-scheduled successors that are not yet
// finalized; each task is therefore finalized at most once.
func (s *Scheduler) singlePass(seedID int) ([]int, error) {
	var changed []int
	finalized := make(map[int]bool)
	queue := []int{seedID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if finalized[id] {
			continue
		}
		t, ok := s.store.Task(id)
		if !ok {
			continue
		}

		moved, err := s.recompute(t)
		if err != nil {
			return changed, err
		}
		if moved {
			changed = append(changed, id)
		}
		if !moved && id != seedID {
			continue
		}

		finalized[id] = true
		for _, succ := range s.store.Successors(id) {
			if succ.ScheduleType == graph.AutoScheduled && !succ.IsSummary && !finalized[succ.ID] {
				queue = append(queue, succ.ID)
			}
		}
	}
	return changed, nil
}

// downstream returns the tasks reachable from seedID along successor edges,
// in topological order.
func (s *Scheduler) downstream(seedID int) ([]*graph.Task, error) {
	reach := map[int]bool{seedID: true}
	stack := []int{seedID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, succ := range s.store.Successors(id) {
			if !reach[succ.ID] {
				reach[succ.ID] = true
				stack = append(stack, succ.ID)
			}
		}
	}

	order, err := s.store.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(order, func(t *graph.Task) bool { return !reach[t.ID] }), nil
}

func (s *Scheduler) recomputeAll(tasks []*graph.Task) ([]int, error) {
	var changed []int
	for _, t := range tasks {
		moved, err := s.recompute(t)
		if err != nil {
			return changed, err
		}
		if moved {
			changed = append(changed, t.ID)
		}
	}
	return changed, nil
}

// RescheduleAll recomputes every task in dependency order and rolls up all
// summaries.
func (s *Scheduler) RescheduleAll() (Result, error) {
	res := Result{Passes: 1, Converged: true}
	order, err := s.store.TopologicalOrder()
	if err != nil {
		return res, err
	}
	changed, err := s.recomputeAll(order)
	res.add(changed...)
	if err != nil {
		return res, err
	}
	res.add(s.rollupAll()...)

	s.logger.Debug("full reschedule complete", "tasks", len(order), "changed", len(res.Changed))
	return res, nil
}
