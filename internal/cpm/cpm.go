// Package cpm runs the Critical Path Method over a project graph.
//
// Analyze makes a forward pass in dependency order to find early dates and
// a backward pass in reverse order to find late dates. Both passes use the
// same dependency rules as the scheduler. Slack is late start minus early
// start; tasks with zero or negative slack are critical.
//
// Every analysis is a full recomputation. The results are written to each
// task's CPM fields and also returned as a Result.
package cpm

import (
	"slices"
	"time"

	"github.com/Iron-Ham/plancast/internal/calendar"
	"github.com/Iron-Ham/plancast/internal/constraint"
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/graph"
)

// Schedule holds the computed dates of one task.
type Schedule struct {
	TaskID      int           `json:"id"`
	Name        string        `json:"name"`
	EarlyStart  time.Time     `json:"early_start"`
	EarlyFinish time.Time     `json:"early_finish"`
	LateStart   time.Time     `json:"late_start"`
	LateFinish  time.Time     `json:"late_finish"`
	Slack       time.Duration `json:"slack"`
	SlackDays   int           `json:"slack_days"`
	Critical    bool          `json:"critical"`
}

// Result is the outcome of one analysis.
type Result struct {
	// Tasks holds one entry per task, ordered by id.
	Tasks         []Schedule `json:"tasks"`
	ProjectStart  time.Time  `json:"project_start"`
	ProjectFinish time.Time  `json:"project_finish"`
	// CriticalPath is one chain of critical, non-summary tasks ending at
	// the project finish, in dependency order.
	CriticalPath []int `json:"critical_path"`
	// Critical lists every task with slack <= 0, ascending.
	Critical []int `json:"critical"`

	index map[int]int
}

// Schedule returns the computed dates of task id.
func (r *Result) Schedule(id int) (Schedule, bool) {
	i, ok := r.index[id]
	if !ok {
		return Schedule{}, false
	}
	return r.Tasks[i], true
}

type edge struct {
	succ *graph.Task
	dep  graph.Predecessor
}

type node struct {
	t   *graph.Task
	dur int
	pos int // index in topological order
	es  time.Time
	ef  time.Time
	ls  time.Time
	lf  time.Time
}

func (n *node) early() constraint.Endpoint {
	return constraint.Endpoint{Start: n.es, End: n.ef, Milestone: n.t.IsMilestone}
}

// Analyze computes early and late dates for every task in store, annotates
// the tasks' CPM fields and returns the result. The graph must be acyclic.
func Analyze(store *graph.Store, cal *calendar.Calendar) (*Result, error) {
	order, err := store.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	rules := constraint.New(cal)
	res := &Result{index: make(map[int]int, len(order))}
	if len(order) == 0 {
		return res, nil
	}

	nodes := make(map[int]*node, len(order))
	succs := make(map[int][]edge, len(order))
	for i, t := range order {
		nodes[t.ID] = &node{t: t, dur: rules.Duration(t), pos: i}
		for _, p := range t.Predecessors {
			succs[p.TaskID] = append(succs[p.TaskID], edge{succ: t, dep: p})
		}
	}

	if err := forward(rules, order, nodes); err != nil {
		return nil, err
	}
	finish := nodes[order[0].ID].ef
	start := nodes[order[0].ID].es
	for _, n := range nodes {
		if n.ef.After(finish) {
			finish = n.ef
		}
		if n.es.Before(start) {
			start = n.es
		}
	}
	if err := backward(rules, order, nodes, succs, finish); err != nil {
		return nil, err
	}

	res.ProjectStart, res.ProjectFinish = start, finish
	byID := slices.Clone(order)
	slices.SortFunc(byID, func(a, b *graph.Task) int { return a.ID - b.ID })
	for _, t := range byID {
		n := nodes[t.ID]
		slack := n.ls.Sub(n.es)
		s := Schedule{
			TaskID:      t.ID,
			Name:        t.Name,
			EarlyStart:  n.es,
			EarlyFinish: n.ef,
			LateStart:   n.ls,
			LateFinish:  n.lf,
			Slack:       slack,
			SlackDays:   rules.Offset(n.es, n.ls),
			Critical:    slack <= 0,
		}
		t.CPM = graph.CPMFields{
			EarlyStart:  s.EarlyStart,
			EarlyFinish: s.EarlyFinish,
			LateStart:   s.LateStart,
			LateFinish:  s.LateFinish,
			Slack:       s.Slack,
			SlackDays:   s.SlackDays,
			IsCritical:  s.Critical,
		}
		res.index[t.ID] = len(res.Tasks)
		res.Tasks = append(res.Tasks, s)
		if s.Critical {
			res.Critical = append(res.Critical, t.ID)
		}
	}
	res.CriticalPath = criticalPath(nodes, res, finish)
	return res, nil
}

func forward(rules constraint.Rules, order []*graph.Task, nodes map[int]*node) error {
	for _, t := range order {
		n := nodes[t.ID]
		var b constraint.Bounds
		for _, p := range t.Predecessors {
			pred, ok := nodes[p.TaskID]
			if !ok {
				continue
			}
			at, endsAt, err := rules.Constraint(pred.early(), p, t.IsMilestone)
			if err != nil {
				return wrap(t.ID, err)
			}
			b.Fold(at, endsAt)
		}

		es := t.Start
		if b.HasStart {
			es = b.Start
		}
		if b.HasEnd {
			fromEnd, err := rules.StartFromDuration(b.End, n.dur)
			if err != nil {
				return wrap(t.ID, err)
			}
			if !b.HasStart || fromEnd.After(es) {
				es = fromEnd
			}
		}
		n.es = es
		if t.IsMilestone {
			n.ef = es
			continue
		}
		ef, err := rules.EndFromDuration(es, n.dur)
		if err != nil {
			return wrap(t.ID, err)
		}
		n.ef = ef
	}
	return nil
}

func backward(rules constraint.Rules, order []*graph.Task, nodes map[int]*node, succs map[int][]edge, finish time.Time) error {
	for i := len(order) - 1; i >= 0; i-- {
		t := order[i]
		n := nodes[t.ID]

		lf := finish
		for j, e := range succs[t.ID] {
			sn := nodes[e.succ.ID]
			late := constraint.Endpoint{Start: sn.ls, End: sn.lf, Milestone: e.succ.IsMilestone}
			at, err := rules.LatestFinish(n.early(), n.dur, late, e.dep)
			if err != nil {
				return wrap(t.ID, err)
			}
			if j == 0 || at.Before(lf) {
				lf = at
			}
		}
		n.lf = withClock(lf, n.ef)

		if t.IsMilestone || n.dur <= 1 {
			n.ls = withClock(n.lf, n.es)
			continue
		}
		ls, err := rules.Cal.SubtractWorkingDays(n.lf, n.dur-1)
		if err != nil {
			return wrap(t.ID, err)
		}
		n.ls = withClock(ls, n.es)
	}
	return nil
}

// criticalPath walks back from the critical task that finishes last,
// following the critical predecessor that finishes latest. When several
// finish on the project finish date, the walk starts from the one latest in
// topological order, so a finish milestone ends the path rather than the
// task it follows.
func criticalPath(nodes map[int]*node, res *Result, finish time.Time) []int {
	critical := func(id int) bool {
		s, ok := res.Schedule(id)
		return ok && s.Critical && !nodes[id].t.IsSummary
	}

	cur := 0
	for _, id := range res.Critical {
		if !critical(id) || !calendar.SameDate(nodes[id].ef, finish) {
			continue
		}
		if cur == 0 || nodes[id].pos > nodes[cur].pos {
			cur = id
		}
	}
	if cur == 0 {
		return nil
	}

	var path []int
	seen := make(map[int]bool)
	for cur != 0 && !seen[cur] {
		seen[cur] = true
		path = append(path, cur)
		next := 0
		for _, p := range nodes[cur].t.Predecessors {
			if !critical(p.TaskID) {
				continue
			}
			if next == 0 || nodes[p.TaskID].ef.After(nodes[next].ef) ||
				(nodes[p.TaskID].ef.Equal(nodes[next].ef) && p.TaskID < next) {
				next = p.TaskID
			}
		}
		cur = next
	}
	slices.Reverse(path)
	return path
}

// withClock returns d's date at ref's time of day.
func withClock(d, ref time.Time) time.Time {
	return calendar.DateOf(d).Add(ref.Sub(calendar.DateOf(ref)))
}

func wrap(id int, err error) error {
	return errors.NewScheduleError("critical path analysis failed", err).WithTaskID(id)
}
