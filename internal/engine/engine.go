// Package engine ties the graph store, calendar and scheduler together
// behind one mutation API.
//
// Every edit is applied to the graph.Store first. If the store accepts it,
// the matching scheduler hook runs and the outcome is announced on the
// event bus. Rejected edits leave the graph unchanged and publish nothing.
//
// Events are published after the engine's lock is released, so handlers may
// call back into the Engine.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/plancast/internal/calendar"
	"github.com/Iron-Ham/plancast/internal/cpm"
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/event"
	"github.com/Iron-Ham/plancast/internal/forecast"
	"github.com/Iron-Ham/plancast/internal/graph"
	"github.com/Iron-Ham/plancast/internal/logging"
	"github.com/Iron-Ham/plancast/internal/schedule"
	"github.com/Iron-Ham/plancast/internal/workload"
)

// Options configures an Engine.
type Options struct {
	Schedule schedule.Options
	// Bus receives engine events. A new bus is created when nil.
	Bus    *event.Bus
	Logger *logging.Logger
}

// Engine owns a project's graph and keeps its schedule consistent.
type Engine struct {
	mu     sync.Mutex
	store  *graph.Store
	cal    *calendar.Calendar
	sched  *schedule.Scheduler
	bus    *event.Bus
	logger *logging.Logger
}

// New returns an Engine with an empty graph scheduled on cal. A nil
// calendar means calendar.Default().
func New(cal *calendar.Calendar, opts Options) *Engine {
	if cal == nil {
		cal = calendar.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.Schedule.Logger == nil {
		opts.Schedule.Logger = logger
	}
	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus(logger)
	}

	store := graph.NewStore()
	return &Engine{
		store:  store,
		cal:    cal,
		sched:  schedule.New(store, cal, opts.Schedule),
		bus:    bus,
		logger: logger.WithComponent("engine"),
	}
}

// Store returns the underlying graph. Callers may read it freely but must
// route structural edits through the Engine.
func (e *Engine) Store() *graph.Store { return e.store }

// Calendar returns the project calendar. Edit it through the Engine so that
// tasks are rescheduled.
func (e *Engine) Calendar() *calendar.Calendar { return e.cal }

// Bus returns the event bus.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Scheduler returns the dependency scheduler.
func (e *Engine) Scheduler() *schedule.Scheduler { return e.sched }

// Logger returns the engine logger.
func (e *Engine) Logger() *logging.Logger { return e.logger }

// mutation runs fn under the engine lock and publishes the events it
// returns once the lock is released.
func (e *Engine) mutation(fn func() ([]event.Event, error)) error {
	e.mu.Lock()
	events, err := fn()
	e.mu.Unlock()

	for _, ev := range events {
		e.bus.Publish(ev)
	}
	return err
}

// settled turns a scheduler outcome into a propagation event. Errors at
// warning severity, such as a non-converged fixed-point run, still leave a
// valid schedule and are reported alongside the event.
func (e *Engine) settled(seed int, res schedule.Result, err error) (event.Event, error) {
	if err != nil {
		if errors.GetSeverity(err) != errors.SeverityWarning {
			e.logger.Error("scheduling failed", "seed", seed, "error", err.Error())
			return nil, err
		}
		e.logger.Warn("scheduling incomplete", "seed", seed, "error", err.Error())
	}
	return event.NewSchedulePropagatedEvent(seed, res.Changed, res.Passes, res.Converged), err
}

func appendIf(events []event.Event, ev event.Event) []event.Event {
	if ev == nil {
		return events
	}
	return append(events, ev)
}

// AddTask inserts t under parentID (0 for top level), places it against
// its predecessors and returns its id.
func (e *Engine) AddTask(t *graph.Task, parentID int) (int, error) {
	var id int
	err := e.mutation(func() ([]event.Event, error) {
		var err error
		if id, err = e.store.AddTask(t, parentID); err != nil {
			return nil, err
		}
		added, _ := e.store.Task(id)
		events := []event.Event{event.NewTaskAddedEvent(id, added.Name, parentID)}

		res, serr := e.sched.OnTaskAdded(id)
		ev, serr := e.settled(id, res, serr)
		return appendIf(events, ev), serr
	})
	return id, err
}

// UpdateTask replaces the editable fields of task id and re-places
// everything downstream of it.
func (e *Engine) UpdateTask(id int, t *graph.Task) error {
	return e.mutation(func() ([]event.Event, error) {
		if err := e.store.UpdateTask(id, t); err != nil {
			return nil, err
		}
		return e.afterUpdate(id)
	})
}

// SetPredecessors replaces the predecessor list of task id.
func (e *Engine) SetPredecessors(id int, preds []graph.Predecessor) error {
	return e.mutation(func() ([]event.Event, error) {
		if err := e.store.SetPredecessors(id, preds); err != nil {
			return nil, err
		}
		return e.afterUpdate(id)
	})
}

// AddPredecessor appends one dependency edge to task id.
func (e *Engine) AddPredecessor(id int, p graph.Predecessor) error {
	return e.mutation(func() ([]event.Event, error) {
		if err := e.store.AddPredecessor(id, p); err != nil {
			return nil, err
		}
		return e.afterUpdate(id)
	})
}

func (e *Engine) afterUpdate(id int) ([]event.Event, error) {
	events := []event.Event{event.NewTaskUpdatedEvent(id)}
	res, err := e.sched.OnTaskUpdated(id)
	ev, err := e.settled(id, res, err)
	return appendIf(events, ev), err
}

// DeleteTask removes task id and its descendants.
func (e *Engine) DeleteTask(id int) (graph.Removal, error) {
	var rm graph.Removal
	err := e.mutation(func() ([]event.Event, error) {
		var err error
		if rm, err = e.store.DeleteTask(id); err != nil {
			return nil, err
		}
		events := []event.Event{event.NewTaskDeletedEvent(id, rm.IDs, rm.ParentID)}

		res, serr := e.sched.OnTaskDeleted(rm)
		ev, serr := e.settled(0, res, serr)
		return appendIf(events, ev), serr
	})
	return rm, err
}

// MoveTask reparents task id under newParent (0 for top level).
func (e *Engine) MoveTask(id, newParent int) error {
	return e.mutation(func() ([]event.Event, error) {
		old, err := e.store.MoveTask(id, newParent)
		if err != nil {
			return nil, err
		}
		if old == newParent {
			return nil, nil
		}
		return e.afterMoves([]graph.Move{{TaskID: id, OldParent: old, NewParent: newParent}})
	})
}

// Indent makes each task a child of its preceding sibling.
func (e *Engine) Indent(ids []int) ([]graph.Move, error) {
	var moves []graph.Move
	err := e.mutation(func() ([]event.Event, error) {
		var err error
		moves, err = e.store.Indent(ids)
		events, serr := e.afterMoves(moves)
		return events, errors.Join(err, serr)
	})
	return moves, err
}

// Outdent moves each task up to its grandparent.
func (e *Engine) Outdent(ids []int) ([]graph.Move, error) {
	var moves []graph.Move
	err := e.mutation(func() ([]event.Event, error) {
		var err error
		moves, err = e.store.Outdent(ids)
		events, serr := e.afterMoves(moves)
		return events, errors.Join(err, serr)
	})
	return moves, err
}

func (e *Engine) afterMoves(moves []graph.Move) ([]event.Event, error) {
	var (
		events []event.Event
		errs   []error
	)
	for _, m := range moves {
		events = append(events, event.NewTaskMovedEvent(m.TaskID, m.OldParent, m.NewParent))
		res, err := e.sched.OnTaskMoved(m.TaskID, m.OldParent)
		ev, err := e.settled(m.TaskID, res, err)
		events = appendIf(events, ev)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return events, errors.Join(errs...)
}

// AddResource registers a resource.
func (e *Engine) AddResource(r graph.Resource) error {
	return e.mutation(func() ([]event.Event, error) {
		if err := e.store.AddResource(r); err != nil {
			return nil, err
		}
		return []event.Event{event.NewResourceChangedEvent(r.Name, "", event.ResourceAdded, nil)}, nil
	})
}

// UpdateResource replaces resource name with r, carrying a rename into
// every assignment.
func (e *Engine) UpdateResource(name string, r graph.Resource) error {
	return e.mutation(func() ([]event.Event, error) {
		touched, err := e.store.UpdateResource(name, r)
		if err != nil {
			return nil, err
		}
		prev := ""
		if r.Name != name {
			prev = name
		}
		return []event.Event{event.NewResourceChangedEvent(r.Name, prev, event.ResourceUpdated, touched)}, nil
	})
}

// DeleteResource removes a resource and its assignments.
func (e *Engine) DeleteResource(name string) error {
	return e.mutation(func() ([]event.Event, error) {
		touched, err := e.store.DeleteResource(name)
		if err != nil {
			return nil, err
		}
		return []event.Event{event.NewResourceChangedEvent(name, "", event.ResourceDeleted, touched)}, nil
	})
}

// SetWorkingDays replaces the working weekdays and reschedules.
func (e *Engine) SetWorkingDays(days []int) error {
	return e.calendarEdit("working_days", func() error {
		return e.cal.SetWorkingDays(days)
	})
}

// SetWorkWindow replaces the daily work window and reschedules. A malformed
// window falls back to the default one; the schedule still follows it and
// the fallback is returned as a warning.
func (e *Engine) SetWorkWindow(start, end string) error {
	return e.calendarEdit("work_window", func() error {
		return e.cal.SetWorkWindow(start, end)
	})
}

// SetHolidays replaces the holiday list and reschedules.
func (e *Engine) SetHolidays(holidays []calendar.Holiday) error {
	return e.calendarEdit("holidays", func() error {
		e.cal.SetHolidays(holidays)
		return nil
	})
}

// SetProjectBounds limits recurring holidays to [start, end] and
// reschedules.
func (e *Engine) SetProjectBounds(start, end time.Time) error {
	return e.calendarEdit("project_bounds", func() error {
		e.cal.SetProjectBounds(start, end)
		return nil
	})
}

// calendarEdit applies a calendar change and reschedules. A warning from
// apply means the change went through in adjusted form, so the reschedule
// and events happen as usual and the warning is returned with them.
func (e *Engine) calendarEdit(field string, apply func() error) error {
	return e.mutation(func() ([]event.Event, error) {
		warn := apply()
		if warn != nil {
			if errors.GetSeverity(warn) != errors.SeverityWarning {
				return nil, warn
			}
			e.logger.Warn("calendar edit adjusted", "field", field, "error", warn.Error())
		}
		events := []event.Event{event.NewCalendarChangedEvent(field)}
		res, err := e.sched.OnCalendarChanged()
		ev, err := e.settled(0, res, err)
		if err == nil {
			err = warn
		}
		return appendIf(events, ev), err
	})
}

// RescheduleAll re-places every task in dependency order.
func (e *Engine) RescheduleAll() (schedule.Result, error) {
	var res schedule.Result
	err := e.mutation(func() ([]event.Event, error) {
		var err error
		res, err = e.sched.RescheduleAll()
		ev, err := e.settled(0, res, err)
		return appendIf(nil, ev), err
	})
	return res, err
}

// Import runs load directly against the store and then reschedules every
// task once, publishing a single propagation event. It is meant for bulk
// loading a project. If load fails nothing is rescheduled or published and
// the store keeps whatever load applied before the failure.
func (e *Engine) Import(load func(*graph.Store) error) (schedule.Result, error) {
	var res schedule.Result
	err := e.mutation(func() ([]event.Event, error) {
		if err := load(e.store); err != nil {
			return nil, err
		}
		var err error
		res, err = e.sched.RescheduleAll()
		ev, err := e.settled(0, res, err)
		return appendIf(nil, ev), err
	})
	return res, err
}

// CriticalPath runs critical path analysis over the current schedule and
// annotates every task's CPM fields.
func (e *Engine) CriticalPath() (*cpm.Result, error) {
	e.mu.Lock()
	res, err := cpm.Analyze(e.store, e.cal)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.logger.Debug("critical path analyzed",
		"tasks", len(res.Tasks),
		"critical", len(res.Critical),
		"finish", res.ProjectFinish.Format(time.DateTime),
	)
	e.bus.Publish(event.NewCriticalPathEvent(res.CriticalPath, res.ProjectFinish))
	return res, nil
}

// Forecast runs a Monte Carlo simulation of the current schedule. The
// graph is locked only while the simulation's snapshot is taken and the
// run itself, not while the result is published.
func (e *Engine) Forecast(ctx context.Context, opts forecast.Options) (*forecast.Result, error) {
	if opts.Logger == nil {
		opts.Logger = e.logger
	}
	e.mu.Lock()
	res, err := forecast.Run(ctx, e.store, e.cal, opts)
	e.mu.Unlock()

	if err != nil {
		var fe *errors.ForecastError
		runID := ""
		if errors.As(err, &fe) {
			runID = fe.RunID
		}
		e.bus.Publish(event.NewForecastEvent(runID, opts.Iterations, time.Time{}, time.Time{}, err.Error()))
		return nil, err
	}
	e.bus.Publish(event.NewForecastEvent(res.RunID, res.Iterations, res.P50, res.P90, ""))
	return res, nil
}

// Workload reports resource allocation and over-allocation. A non-nil
// error alongside a report carries warnings about malformed resource
// exceptions.
func (e *Engine) Workload() (*workload.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return workload.Analyze(e.store, e.cal)
}
