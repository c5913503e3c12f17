package graph

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DependencyType is the relationship between a predecessor and its
// successor.
type DependencyType int

const (
	// FinishToStart: the successor starts after the predecessor finishes.
	FinishToStart DependencyType = iota
	// StartToStart: the successor starts after the predecessor starts.
	StartToStart
	// FinishToFinish: the successor finishes after the predecessor finishes.
	FinishToFinish
	// StartToFinish: the successor finishes after the predecessor starts.
	StartToFinish
)

// String returns the short code (FS, SS, FF, SF).
func (d DependencyType) String() string {
	switch d {
	case FinishToStart:
		return "FS"
	case StartToStart:
		return "SS"
	case FinishToFinish:
		return "FF"
	case StartToFinish:
		return "SF"
	default:
		return fmt.Sprintf("DependencyType(%d)", int(d))
	}
}

// Valid reports whether d is one of the four defined relationships.
func (d DependencyType) Valid() bool {
	return d >= FinishToStart && d <= StartToFinish
}

// ConstrainsEnd reports whether the relationship bounds the successor's end
// rather than its start.
func (d DependencyType) ConstrainsEnd() bool {
	return d == FinishToFinish || d == StartToFinish
}

// FromPredecessorStart reports whether the constraint is measured from the
// predecessor's start rather than its end.
func (d DependencyType) FromPredecessorStart() bool {
	return d == StartToStart || d == StartToFinish
}

// MarshalText renders the short code.
func (d DependencyType) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid dependency type %d", int(d))
	}
	return []byte(d.String()), nil
}

// ParseDependencyType accepts the short code or the spelled-out name in any
// case, with or without separators: "FS", "finish-to-start",
// "FinishToStart", "Finish to Start".
func ParseDependencyType(s string) (DependencyType, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "fs", "finishtostart":
		return FinishToStart, nil
	case "ss", "starttostart":
		return StartToStart, nil
	case "ff", "finishtofinish":
		return FinishToFinish, nil
	case "sf", "starttofinish":
		return StartToFinish, nil
	default:
		return 0, fmt.Errorf("unknown dependency type %q (want FS, SS, FF or SF)", s)
	}
}

// ScheduleType selects whether a task's dates follow its predecessors.
type ScheduleType int

const (
	// AutoScheduled tasks are moved by predecessor constraints.
	AutoScheduled ScheduleType = iota
	// ManuallyScheduled tasks keep user-entered dates.
	ManuallyScheduled
)

func (s ScheduleType) String() string {
	switch s {
	case AutoScheduled:
		return "auto"
	case ManuallyScheduled:
		return "manual"
	default:
		return fmt.Sprintf("ScheduleType(%d)", int(s))
	}
}

// Valid reports whether s is a defined schedule type.
func (s ScheduleType) Valid() bool {
	return s == AutoScheduled || s == ManuallyScheduled
}

// MarshalText renders "auto" or "manual".
func (s ScheduleType) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid schedule type %d", int(s))
	}
	return []byte(s.String()), nil
}

// ParseScheduleType accepts "auto", "manual" and the long forms
// "auto scheduled" / "manually scheduled" in any case.
func ParseScheduleType(s string) (ScheduleType, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "", "auto", "autoscheduled":
		return AutoScheduled, nil
	case "manual", "manuallyscheduled":
		return ManuallyScheduled, nil
	default:
		return 0, fmt.Errorf("unknown schedule type %q (want auto or manual)", s)
	}
}

// Predecessor is one incoming dependency edge.
type Predecessor struct {
	TaskID  int            `json:"task_id"`
	Type    DependencyType `json:"type"`
	LagDays int            `json:"lag_days"`
}

// Assignment links a resource to a task at a percentage of its time.
type Assignment struct {
	ResourceName string `json:"resource"`
	Allocation   int    `json:"allocation"`
}

// CPMFields holds critical path results. They are transient and overwritten
// on every analysis.
type CPMFields struct {
	EarlyStart  time.Time     `json:"early_start"`
	EarlyFinish time.Time     `json:"early_finish"`
	LateStart   time.Time     `json:"late_start"`
	LateFinish  time.Time     `json:"late_finish"`
	Slack       time.Duration `json:"slack"`
	SlackDays   int           `json:"slack_days"`
	IsCritical  bool          `json:"critical"`
}

// Task is a node in the project graph.
type Task struct {
	ID              int           `json:"id"`
	Name            string        `json:"name"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	PercentComplete int           `json:"percent_complete"`
	IsMilestone     bool          `json:"milestone"`
	IsSummary       bool          `json:"summary"`
	ScheduleType    ScheduleType  `json:"schedule"`
	ParentID        int           `json:"parent_id,omitempty"`
	Predecessors    []Predecessor `json:"predecessors,omitempty"`
	Resources       []Assignment  `json:"resources,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	WBS             string        `json:"wbs"`
	CPM             CPMFields     `json:"-"`

	originalStart time.Time
}

// OriginalStart returns the start date last entered by the user. Tasks
// without predecessors are restored to it when rescheduled.
func (t *Task) OriginalStart() time.Time {
	if t.originalStart.IsZero() {
		return t.Start
	}
	return t.originalStart
}

// CalendarDays is the inclusive calendar-day span of the task; 0 for
// milestones.
func (t *Task) CalendarDays() int {
	if t.IsMilestone {
		return 0
	}
	s := time.Date(t.Start.Year(), t.Start.Month(), t.Start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(t.End.Year(), t.End.Month(), t.End.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}

// HasPredecessor reports whether id appears in t's predecessor list.
func (t *Task) HasPredecessor(id int) bool {
	return slices.ContainsFunc(t.Predecessors, func(p Predecessor) bool { return p.TaskID == id })
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	c.Predecessors = slices.Clone(t.Predecessors)
	c.Resources = slices.Clone(t.Resources)
	return &c
}

// DefaultMaxHoursPerDay applies to resources created without a limit.
const DefaultMaxHoursPerDay = 8.0

// Resource is a person or asset assignable to tasks.
type Resource struct {
	Name           string   `json:"name"`
	MaxHoursPerDay float64  `json:"max_hours_per_day"`
	Exceptions     []string `json:"exceptions,omitempty"`
}
