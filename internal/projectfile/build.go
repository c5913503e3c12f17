package projectfile

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/Iron-Ham/plancast/internal/calendar"
	"github.com/Iron-Ham/plancast/internal/config"
	"github.com/Iron-Ham/plancast/internal/engine"
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/graph"
	"github.com/Iron-Ham/plancast/internal/logging"
	"github.com/Iron-Ham/plancast/internal/schedule"
)

// Build validates f and loads it into a new Engine.
//
// The calendar starts from cfg (config.Default when nil) and is overlaid by
// the file's calendar section. The propagation mode and pass limit come
// from cfg; opts supplies the bus and logger. Resources are added first,
// then tasks parent before child, then every predecessor list, and finally
// the whole project is rescheduled once.
//
// A file with validation errors is rejected without building anything. A
// warning from the initial reschedule, such as a fixed-point run that did
// not converge, is returned alongside a usable Engine.
func Build(f *File, cfg *config.Config, opts engine.Options) (*engine.Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("projectfile")

	msgs := Validate(f)
	if HasErrors(msgs) {
		return nil, invalid(msgs)
	}
	for _, m := range msgs {
		logger.Warn("project file warning", "message", m.String())
	}

	cal, err := buildCalendar(f.Calendar, cfg.Calendar)
	if err != nil {
		return nil, err
	}
	for _, w := range cal.Warnings() {
		logger.Warn("calendar warning", "error", w.Error())
	}

	mode, err := schedule.ParseMode(cfg.Schedule.Propagation)
	if err != nil {
		return nil, errors.NewValidationError(err.Error()).WithField("schedule.propagation")
	}
	opts.Schedule.Mode = mode
	opts.Schedule.MaxPasses = cfg.Schedule.MaxPasses

	e := engine.New(cal, opts)
	res, err := e.Import(func(s *graph.Store) error {
		return load(s, cal, f)
	})
	if err != nil && errors.GetSeverity(err) != errors.SeverityWarning {
		return nil, errors.Wrap(err, "loading project")
	}

	logger.Info("project loaded",
		"name", f.Name,
		"tasks", len(f.Tasks),
		"resources", len(f.Resources),
		"changed", len(res.Changed),
	)
	return e, err
}

// invalid summarizes validation errors as a single error.
func invalid(msgs []ValidationMessage) error {
	var first ValidationMessage
	n := 0
	for _, m := range msgs {
		if m.Severity < errors.SeverityError {
			continue
		}
		if n == 0 {
			first = m
		}
		n++
	}
	return errors.NewValidationError(fmt.Sprintf("project file has %d errors, first: %s", n, first.Message)).
		WithField(first.Field).
		WithValue(first.TaskID)
}

func buildCalendar(fc *Calendar, cc config.CalendarConfig) (*calendar.Calendar, error) {
	opts := calendar.Options{
		WorkingDays: cc.WorkingDays,
		WorkStart:   cc.WorkStart,
		WorkEnd:     cc.WorkEnd,
	}
	if fc != nil {
		if fc.WorkingDays != nil {
			opts.WorkingDays = fc.WorkingDays
		}
		if fc.WorkStart != "" {
			opts.WorkStart = fc.WorkStart
		}
		if fc.WorkEnd != "" {
			opts.WorkEnd = fc.WorkEnd
		}
		if fc.ProjectStart != "" {
			opts.ProjectStart, _, _ = parseDate(fc.ProjectStart)
		}
		if fc.ProjectEnd != "" {
			opts.ProjectEnd, _, _ = parseDate(fc.ProjectEnd)
		}
		for _, h := range fc.Holidays {
			start, _, err := parseDate(h.Start)
			if err != nil {
				return nil, errors.NewValidationError(err.Error()).WithField("calendar.holidays").WithValue(h.Name)
			}
			var end time.Time
			if h.End != "" {
				if end, _, err = parseDate(h.End); err != nil {
					return nil, errors.NewValidationError(err.Error()).WithField("calendar.holidays").WithValue(h.Name)
				}
			}
			opts.Holidays = append(opts.Holidays, calendar.Holiday{
				Name:      h.Name,
				Start:     start,
				End:       end,
				Comment:   h.Comment,
				Recurring: h.Recurring,
			})
		}
	}
	return calendar.New(opts)
}

// load populates s from f. Predecessors are attached only after every task
// exists so that file order does not matter.
func load(s *graph.Store, cal *calendar.Calendar, f *File) error {
	for _, r := range f.Resources {
		err := s.AddResource(graph.Resource{
			Name:           r.Name,
			MaxHoursPerDay: r.MaxHoursPerDay,
			Exceptions:     slices.Clone(r.Exceptions),
		})
		if err != nil {
			return errors.Wrapf(err, "resource %q", r.Name)
		}
	}

	ordered := parentFirst(f.Tasks)
	for _, ft := range ordered {
		t, err := toTask(ft, cal)
		if err != nil {
			return errors.Wrapf(err, "task %d", ft.ID)
		}
		if _, err := s.AddTask(t, ft.Parent); err != nil {
			return errors.Wrapf(err, "task %d", ft.ID)
		}
	}

	for _, ft := range ordered {
		if len(ft.Predecessors) == 0 {
			continue
		}
		preds, err := toPredecessors(ft.Predecessors)
		if err != nil {
			return errors.Wrapf(err, "task %d", ft.ID)
		}
		if err := s.SetPredecessors(ft.ID, preds); err != nil {
			return errors.Wrapf(err, "task %d", ft.ID)
		}
	}
	return nil
}

// parentFirst orders tasks by depth in the parent forest, keeping file
// order among tasks at the same depth. Parent chains must be acyclic.
func parentFirst(tasks []Task) []Task {
	byID := make(map[int]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	depth := make(map[int]int, len(tasks))
	var depthOf func(id int) int
	depthOf = func(id int) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		if p := byID[id].Parent; p != 0 {
			d = depthOf(p) + 1
		}
		depth[id] = d
		return d
	}

	out := slices.Clone(tasks)
	slices.SortStableFunc(out, func(a, b Task) int {
		return cmp.Compare(depthOf(a.ID), depthOf(b.ID))
	})
	return out
}

func toTask(ft Task, cal *calendar.Calendar) (*graph.Task, error) {
	st, err := graph.ParseScheduleType(ft.Schedule)
	if err != nil {
		return nil, errors.NewValidationError(err.Error()).WithField("schedule")
	}

	// A summary may leave its dates to the rollup.
	var start time.Time
	if ft.Start != "" {
		var dateOnly bool
		start, dateOnly, err = parseDate(ft.Start)
		if err != nil {
			return nil, errors.NewValidationError(err.Error()).WithField("start")
		}
		if dateOnly {
			start = cal.DayStart(start)
		}
	}
	end := start
	if ft.End != "" && !ft.Milestone {
		var dateOnly bool
		end, dateOnly, err = parseDate(ft.End)
		if err != nil {
			return nil, errors.NewValidationError(err.Error()).WithField("end")
		}
		if dateOnly {
			end = cal.DayEnd(end)
		}
	}

	t := &graph.Task{
		ID:              ft.ID,
		Name:            ft.Name,
		Start:           start,
		End:             end,
		PercentComplete: ft.PercentComplete,
		IsMilestone:     ft.Milestone,
		ScheduleType:    st,
		Notes:           ft.Notes,
	}
	for _, a := range ft.Resources {
		t.Resources = append(t.Resources, graph.Assignment{ResourceName: a.Name, Allocation: a.Percent()})
	}
	return t, nil
}

func toPredecessors(deps []Dependency) ([]graph.Predecessor, error) {
	out := make([]graph.Predecessor, 0, len(deps))
	for _, d := range deps {
		typ := graph.FinishToStart
		if d.Type != "" {
			var err error
			if typ, err = graph.ParseDependencyType(d.Type); err != nil {
				return nil, errors.NewValidationError(err.Error()).WithField("predecessors").WithValue(d.Type)
			}
		}
		out = append(out, graph.Predecessor{TaskID: d.Task, Type: typ, LagDays: d.Lag})
	}
	return out, nil
}

// FromEngine renders the current state of e as a File. Dates keep their
// time of day, so the result round-trips through Build without drift.
func FromEngine(name string, e *engine.Engine) *File {
	s := e.Store()
	cal := e.Calendar()

	f := &File{Name: name}
	start, end := cal.ProjectBounds()
	fc := &Calendar{
		WorkingDays: cal.WorkingDays(),
		WorkStart:   cal.WorkStart(),
		WorkEnd:     cal.WorkEnd(),
	}
	if !start.IsZero() {
		fc.ProjectStart = start.Format(time.DateOnly)
	}
	if !end.IsZero() {
		fc.ProjectEnd = end.Format(time.DateOnly)
	}
	for _, h := range cal.Holidays() {
		fh := Holiday{Name: h.Name, Start: h.Start.Format(time.DateOnly), Comment: h.Comment, Recurring: h.Recurring}
		if !h.End.IsZero() {
			fh.End = h.End.Format(time.DateOnly)
		}
		fc.Holidays = append(fc.Holidays, fh)
	}
	f.Calendar = fc

	for _, r := range s.Resources() {
		f.Resources = append(f.Resources, Resource{
			Name:           r.Name,
			MaxHoursPerDay: r.MaxHoursPerDay,
			Exceptions:     slices.Clone(r.Exceptions),
		})
	}

	for _, t := range s.Tasks() {
		ft := Task{
			ID:              t.ID,
			Name:            t.Name,
			Start:           t.Start.Format(DateTimeLayout),
			PercentComplete: t.PercentComplete,
			Milestone:       t.IsMilestone,
			Schedule:        t.ScheduleType.String(),
			Parent:          t.ParentID,
			Notes:           t.Notes,
		}
		if !t.IsMilestone {
			ft.End = t.End.Format(DateTimeLayout)
		}
		for _, p := range t.Predecessors {
			ft.Predecessors = append(ft.Predecessors, Dependency{Task: p.TaskID, Type: p.Type.String(), Lag: p.LagDays})
		}
		for _, a := range t.Resources {
			pct := a.Allocation
			ft.Resources = append(ft.Resources, Assignment{Name: a.ResourceName, Allocation: &pct})
		}
		f.Tasks = append(f.Tasks, ft)
	}
	return f
}
