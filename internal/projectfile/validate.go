package projectfile

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/plancast/internal/calendar"
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/graph"
)

// Limits that keep a hostile or corrupt file from exhausting memory.
const (
	MaxTasks      = 10000
	MaxTextLength = 250
)

// ValidationMessage is one problem found in a project file.
type ValidationMessage struct {
	Severity   errors.Severity
	Message    string
	TaskID     int    // 0 when the problem is not tied to a task
	Field      string // e.g. "predecessors", "calendar.work_start"
	RelatedIDs []int
	Suggestion string
}

func (m ValidationMessage) String() string {
	var sb strings.Builder
	sb.WriteString(m.Severity.String())
	sb.WriteString(": ")
	if m.TaskID != 0 {
		fmt.Fprintf(&sb, "task %d: ", m.TaskID)
	}
	if m.Field != "" {
		fmt.Fprintf(&sb, "%s: ", m.Field)
	}
	sb.WriteString(m.Message)
	if m.Suggestion != "" {
		fmt.Fprintf(&sb, " (%s)", m.Suggestion)
	}
	return sb.String()
}

// HasErrors reports whether any message is at error severity or above.
func HasErrors(msgs []ValidationMessage) bool {
	return slices.ContainsFunc(msgs, func(m ValidationMessage) bool {
		return m.Severity >= errors.SeverityError
	})
}

// Validate checks f for problems that would make Build fail or produce a
// schedule the author did not intend. Messages are ordered by section:
// calendar, resources, tasks, then cycles.
func Validate(f *File) []ValidationMessage {
	v := &validator{file: f, tasks: make(map[int]*Task)}

	if len(f.Tasks) > MaxTasks {
		v.errorf(0, "tasks", "", "project has %d tasks, more than the maximum of %d", len(f.Tasks), MaxTasks)
		return v.msgs
	}
	if len(f.Name) > MaxTextLength {
		v.errorf(0, "name", "", "project name exceeds %d characters", MaxTextLength)
	}

	v.checkCalendar()
	v.checkResources()
	v.checkTasks()
	v.checkParentCycles()
	v.checkDependencyCycles()
	return v.msgs
}

type validator struct {
	file      *File
	tasks     map[int]*Task // first occurrence of each id
	resources map[string]bool
	parents   map[int]bool // ids referenced as a parent
	msgs      []ValidationMessage
}

func (v *validator) add(sev errors.Severity, taskID int, field, suggestion, format string, args ...any) *ValidationMessage {
	v.msgs = append(v.msgs, ValidationMessage{
		Severity:   sev,
		Message:    fmt.Sprintf(format, args...),
		TaskID:     taskID,
		Field:      field,
		Suggestion: suggestion,
	})
	return &v.msgs[len(v.msgs)-1]
}

func (v *validator) errorf(taskID int, field, suggestion, format string, args ...any) *ValidationMessage {
	return v.add(errors.SeverityError, taskID, field, suggestion, format, args...)
}

func (v *validator) warnf(taskID int, field, suggestion, format string, args ...any) *ValidationMessage {
	return v.add(errors.SeverityWarning, taskID, field, suggestion, format, args...)
}

func (v *validator) checkCalendar() {
	c := v.file.Calendar
	if c == nil {
		return
	}

	if c.WorkingDays != nil {
		seen := make(map[int]bool)
		for _, d := range c.WorkingDays {
			switch {
			case d < 0 || d > 6:
				v.errorf(0, "calendar.working_days", "use 0 for Monday through 6 for Sunday", "weekday %d is out of range", d)
			case seen[d]:
				v.warnf(0, "calendar.working_days", "", "weekday %d is listed more than once", d)
			}
			seen[d] = true
		}
		if len(c.WorkingDays) == 0 {
			v.errorf(0, "calendar.working_days", "list at least one weekday or remove the key", "no working days")
		}
	}

	if c.WorkStart != "" || c.WorkEnd != "" {
		start, end := c.WorkStart, c.WorkEnd
		if start == "" {
			start = calendar.DefaultWorkStart
		}
		if end == "" {
			end = calendar.DefaultWorkEnd
		}
		if err := calendar.Default().SetWorkWindow(start, end); err != nil {
			v.errorf(0, "calendar.work_window", "use 24-hour HH:MM times", "%s", err.Error())
		}
	}

	var projStart, projEnd time.Time
	if c.ProjectStart != "" {
		t, _, err := parseDate(c.ProjectStart)
		if err != nil {
			v.errorf(0, "calendar.project_start", "", "%s", err.Error())
		}
		projStart = t
	}
	if c.ProjectEnd != "" {
		t, _, err := parseDate(c.ProjectEnd)
		if err != nil {
			v.errorf(0, "calendar.project_end", "", "%s", err.Error())
		}
		projEnd = t
	}
	if !projStart.IsZero() && !projEnd.IsZero() && projEnd.Before(projStart) {
		v.errorf(0, "calendar.project_end", "", "project end %s is before project start %s", c.ProjectEnd, c.ProjectStart)
	}

	for i, h := range c.Holidays {
		field := "calendar.holidays[" + strconv.Itoa(i) + "]"
		start, _, err := parseDate(h.Start)
		if err != nil {
			v.errorf(0, field, "", "holiday %q: %s", h.Name, err.Error())
			continue
		}
		if h.End == "" {
			continue
		}
		end, _, err := parseDate(h.End)
		if err != nil {
			v.errorf(0, field, "", "holiday %q: %s", h.Name, err.Error())
			continue
		}
		if end.Before(start) && !h.Recurring {
			v.errorf(0, field, "omit end for a single-day holiday", "holiday %q ends before it starts", h.Name)
		}
	}
}

func (v *validator) checkResources() {
	v.resources = make(map[string]bool, len(v.file.Resources))
	for _, r := range v.file.Resources {
		field := "resources"
		switch {
		case strings.TrimSpace(r.Name) == "":
			v.errorf(0, field, "", "resource name is required")
			continue
		case len(r.Name) > MaxTextLength:
			v.errorf(0, field, "", "resource name exceeds %d characters", MaxTextLength)
		case v.resources[r.Name]:
			v.errorf(0, field, "merge the entries", "resource %q is listed more than once", r.Name)
		}
		v.resources[r.Name] = true

		if r.MaxHoursPerDay < 0 {
			v.errorf(0, field, "", "resource %q has negative max_hours_per_day", r.Name)
		} else if r.MaxHoursPerDay > 24 {
			v.warnf(0, field, "", "resource %q can never work %.1f hours in a day", r.Name, r.MaxHoursPerDay)
		}
		if _, err := calendar.ParseExceptions(r.Exceptions); err != nil {
			v.warnf(0, field, "use YYYY-MM-DD or YYYY-MM-DD to YYYY-MM-DD", "resource %q: %s", r.Name, err.Error())
		}
	}
}

func (v *validator) checkTasks() {
	v.parents = make(map[int]bool)
	for i := range v.file.Tasks {
		t := &v.file.Tasks[i]
		if t.ID <= 0 {
			v.errorf(0, "id", "use a positive integer", "task %q has id %d", t.Name, t.ID)
			continue
		}
		if _, dup := v.tasks[t.ID]; dup {
			v.errorf(t.ID, "id", "give every task a unique id", "duplicate task id %d", t.ID)
			continue
		}
		v.tasks[t.ID] = t
		if t.Parent != 0 {
			v.parents[t.Parent] = true
		}
	}

	for i := range v.file.Tasks {
		t := &v.file.Tasks[i]
		if t.ID <= 0 {
			continue
		}
		v.checkTaskFields(t)
		v.checkTaskLinks(t)
	}
}

func (v *validator) checkTaskFields(t *Task) {
	switch {
	case strings.TrimSpace(t.Name) == "":
		v.errorf(t.ID, "name", "", "name is required")
	case len(t.Name) > MaxTextLength:
		v.errorf(t.ID, "name", "", "name exceeds %d characters", MaxTextLength)
	}
	if len(t.Notes) > MaxTextLength {
		v.errorf(t.ID, "notes", "", "notes exceed %d characters", MaxTextLength)
	}

	var start, end time.Time
	startOK, endOK := false, false
	endDateOnly := false
	summary := v.parents[t.ID]
	if t.Start == "" {
		if !summary {
			v.errorf(t.ID, "start", "", "start is required")
		}
	} else if s, _, err := parseDate(t.Start); err != nil {
		v.errorf(t.ID, "start", "", "%s", err.Error())
	} else {
		start, startOK = s, true
	}
	switch {
	case t.End == "" && !t.Milestone && !summary:
		v.errorf(t.ID, "end", "set an end date or mark the task as a milestone", "end is required")
	case t.End != "":
		if e, dateOnly, err := parseDate(t.End); err != nil {
			v.errorf(t.ID, "end", "", "%s", err.Error())
		} else {
			end, endOK, endDateOnly = e, true, dateOnly
		}
	}
	if startOK && endOK {
		before := end.Before(start)
		if endDateOnly {
			before = end.Before(calendar.DateOf(start))
		}
		switch {
		case t.Milestone && !calendar.SameDate(start, end):
			v.warnf(t.ID, "end", "remove end from the milestone", "milestone end %s is ignored", t.End)
		case before:
			v.errorf(t.ID, "end", "move the end on or after the start", "end %s is before start %s", t.End, t.Start)
		}
	}

	if t.PercentComplete < 0 || t.PercentComplete > 100 {
		v.errorf(t.ID, "percent_complete", "use a value from 0 to 100", "percent complete %d is out of range", t.PercentComplete)
	}

	st, err := graph.ParseScheduleType(t.Schedule)
	if err != nil {
		v.errorf(t.ID, "schedule", "", "%s", err.Error())
	}
	if summary {
		if st == graph.ManuallyScheduled {
			v.warnf(t.ID, "schedule", "", "summary tasks are always auto scheduled")
		}
		if t.Milestone {
			v.warnf(t.ID, "milestone", "", "a summary task cannot be a milestone")
		}
	}
}

func (v *validator) checkTaskLinks(t *Task) {
	if t.Parent != 0 && t.Parent != t.ID {
		if _, ok := v.tasks[t.Parent]; !ok {
			v.errorf(t.ID, "parent", "remove parent or point it at an existing task", "parent %d does not exist", t.Parent).
				RelatedIDs = []int{t.Parent}
		}
	}

	seen := make(map[int]bool)
	for _, p := range t.Predecessors {
		switch _, ok := v.tasks[p.Task]; {
		case p.Task == t.ID:
			v.errorf(t.ID, "predecessors", "remove the edge", "%s", errors.ErrSelfDependency.Error())
		case !ok:
			v.errorf(t.ID, "predecessors", "remove the edge or point it at an existing task", "predecessor %d does not exist", p.Task).
				RelatedIDs = []int{p.Task}
		case seen[p.Task]:
			v.warnf(t.ID, "predecessors", "keep one edge per predecessor", "predecessor %d is listed more than once", p.Task).
				RelatedIDs = []int{p.Task}
		}
		seen[p.Task] = true
		if p.Type != "" {
			if _, err := graph.ParseDependencyType(p.Type); err != nil {
				v.errorf(t.ID, "predecessors", "", "%s", err.Error())
			}
		}
	}

	assigned := make(map[string]bool)
	for _, a := range t.Resources {
		if !v.resources[a.Name] {
			v.errorf(t.ID, "resources", "add it to the resources section", "resource %q is not listed", a.Name)
		}
		if assigned[a.Name] {
			v.warnf(t.ID, "resources", "", "resource %q is assigned more than once", a.Name)
		}
		assigned[a.Name] = true
		if a.Percent() < 0 {
			v.errorf(t.ID, "resources", "", "allocation for %q cannot be negative", a.Name)
		}
	}
}

// Walk states shared by both cycle searches.
const (
	unvisited = iota
	onPath
	done
)

// checkParentCycles follows each task's parent chain. A chain that returns
// to a task already on it is reported once, listing the tasks in the loop.
func (v *validator) checkParentCycles() {
	state := make(map[int]int, len(v.tasks))
	for _, t := range v.file.Tasks {
		if _, ok := v.tasks[t.ID]; !ok || state[t.ID] != unvisited {
			continue
		}
		var path []int
		id := t.ID
		for {
			if state[id] == done {
				break
			}
			if state[id] == onPath {
				loop := path[slices.Index(path, id):]
				v.errorf(loop[0], "parent", "break the loop by moving one task to top level",
					"parent cycle: %s", joinLoop(loop)).RelatedIDs = slices.Clone(loop)
				break
			}
			state[id] = onPath
			path = append(path, id)
			next, ok := v.tasks[id]
			if !ok || next.Parent == 0 {
				break
			}
			if _, ok := v.tasks[next.Parent]; !ok {
				break
			}
			id = next.Parent
		}
		for _, p := range path {
			state[p] = done
		}
	}
}

// checkDependencyCycles runs a colored depth-first search from every task
// along predecessor edges. Each back edge found is reported as one cycle.
// Self edges and edges to missing tasks are reported elsewhere and skipped.
func (v *validator) checkDependencyCycles() {
	state := make(map[int]int, len(v.tasks))
	var stack []int

	var visit func(id int)
	visit = func(id int) {
		state[id] = onPath
		stack = append(stack, id)
		for _, p := range v.tasks[id].Predecessors {
			if _, ok := v.tasks[p.Task]; !ok || p.Task == id {
				continue
			}
			switch state[p.Task] {
			case unvisited:
				visit(p.Task)
			case onPath:
				loop := stack[slices.Index(stack, p.Task):]
				v.errorf(loop[0], "predecessors", "remove one of the edges in the loop",
					"dependency cycle: %s", joinLoop(loop)).RelatedIDs = slices.Clone(loop)
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, t := range v.file.Tasks {
		if _, ok := v.tasks[t.ID]; ok && state[t.ID] == unvisited {
			visit(t.ID)
		}
	}
}

// joinLoop renders a cycle as "1 -> 2 -> 1".
func joinLoop(ids []int) string {
	parts := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	parts = append(parts, strconv.Itoa(ids[0]))
	return strings.Join(parts, " -> ")
}
