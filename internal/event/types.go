package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier, e.g. "task.added".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeTaskAdded           = "task.added"
	TypeTaskUpdated         = "task.updated"
	TypeTaskDeleted         = "task.deleted"
	TypeTaskMoved           = "task.moved"
	TypeResourceChanged     = "resource.changed"
	TypeCalendarChanged     = "calendar.changed"
	TypeSchedulePropagated  = "schedule.propagated"
	TypeCriticalPathUpdated = "analysis.critical_path"
	TypeForecastCompleted   = "analysis.forecast"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Task Events
// -----------------------------------------------------------------------------

// TaskAddedEvent is emitted after a task is inserted into the graph.
type TaskAddedEvent struct {
	baseEvent
	TaskID   int
	Name     string
	ParentID int // 0 for top level
}

// NewTaskAddedEvent creates a TaskAddedEvent.
func NewTaskAddedEvent(taskID int, name string, parentID int) TaskAddedEvent {
	return TaskAddedEvent{
		baseEvent: newBaseEvent(TypeTaskAdded),
		TaskID:    taskID,
		Name:      name,
		ParentID:  parentID,
	}
}

// TaskUpdatedEvent is emitted after a task's fields or predecessors change.
type TaskUpdatedEvent struct {
	baseEvent
	TaskID int
}

// NewTaskUpdatedEvent creates a TaskUpdatedEvent.
func NewTaskUpdatedEvent(taskID int) TaskUpdatedEvent {
	return TaskUpdatedEvent{
		baseEvent: newBaseEvent(TypeTaskUpdated),
		TaskID:    taskID,
	}
}

// TaskDeletedEvent is emitted after a task and its descendants are removed.
type TaskDeletedEvent struct {
	baseEvent
	TaskID     int
	RemovedIDs []int // the task and every descendant
	ParentID   int
}

// NewTaskDeletedEvent creates a TaskDeletedEvent.
func NewTaskDeletedEvent(taskID int, removedIDs []int, parentID int) TaskDeletedEvent {
	return TaskDeletedEvent{
		baseEvent:  newBaseEvent(TypeTaskDeleted),
		TaskID:     taskID,
		RemovedIDs: removedIDs,
		ParentID:   parentID,
	}
}

// TaskMovedEvent is emitted when a task changes parent, including by
// indent or outdent.
type TaskMovedEvent struct {
	baseEvent
	TaskID         int
	PreviousParent int
	CurrentParent  int
}

// NewTaskMovedEvent creates a TaskMovedEvent.
func NewTaskMovedEvent(taskID, previousParent, currentParent int) TaskMovedEvent {
	return TaskMovedEvent{
		baseEvent:      newBaseEvent(TypeTaskMoved),
		TaskID:         taskID,
		PreviousParent: previousParent,
		CurrentParent:  currentParent,
	}
}

// -----------------------------------------------------------------------------
// Resource and Calendar Events
// -----------------------------------------------------------------------------

// ResourceChange names what happened to a resource.
type ResourceChange string

const (
	ResourceAdded   ResourceChange = "added"
	ResourceUpdated ResourceChange = "updated"
	ResourceDeleted ResourceChange = "deleted"
)

// ResourceChangedEvent is emitted when a resource is added, edited,
// renamed or deleted.
type ResourceChangedEvent struct {
	baseEvent
	Name         string
	PreviousName string // set on rename
	Change       ResourceChange
	TaskIDs      []int // tasks whose assignments were rewritten
}

// NewResourceChangedEvent creates a ResourceChangedEvent.
func NewResourceChangedEvent(name, previousName string, change ResourceChange, taskIDs []int) ResourceChangedEvent {
	return ResourceChangedEvent{
		baseEvent:    newBaseEvent(TypeResourceChanged),
		Name:         name,
		PreviousName: previousName,
		Change:       change,
		TaskIDs:      taskIDs,
	}
}

// CalendarChangedEvent is emitted after the project calendar is edited and
// every task has been rescheduled against it.
type CalendarChangedEvent struct {
	baseEvent
	Field string // "working_days", "work_window", "holidays" or "project_bounds"
}

// NewCalendarChangedEvent creates a CalendarChangedEvent.
func NewCalendarChangedEvent(field string) CalendarChangedEvent {
	return CalendarChangedEvent{
		baseEvent: newBaseEvent(TypeCalendarChanged),
		Field:     field,
	}
}

// -----------------------------------------------------------------------------
// Schedule and Analysis Events
// -----------------------------------------------------------------------------

// SchedulePropagatedEvent reports the tasks whose dates moved as a result
// of one mutation.
type SchedulePropagatedEvent struct {
	baseEvent
	SeedID     int // 0 when the whole project was rescheduled
	ChangedIDs []int
	Passes     int
	Converged  bool
}

// NewSchedulePropagatedEvent creates a SchedulePropagatedEvent.
func NewSchedulePropagatedEvent(seedID int, changedIDs []int, passes int, converged bool) SchedulePropagatedEvent {
	return SchedulePropagatedEvent{
		baseEvent:  newBaseEvent(TypeSchedulePropagated),
		SeedID:     seedID,
		ChangedIDs: changedIDs,
		Passes:     passes,
		Converged:  converged,
	}
}

// CriticalPathEvent is emitted after critical path analysis.
type CriticalPathEvent struct {
	baseEvent
	Path          []int
	ProjectFinish time.Time
}

// NewCriticalPathEvent creates a CriticalPathEvent.
func NewCriticalPathEvent(path []int, projectFinish time.Time) CriticalPathEvent {
	return CriticalPathEvent{
		baseEvent:     newBaseEvent(TypeCriticalPathUpdated),
		Path:          path,
		ProjectFinish: projectFinish,
	}
}

// ForecastEvent is emitted when a Monte Carlo run finishes, successfully
// or not.
type ForecastEvent struct {
	baseEvent
	RunID      string
	Iterations int
	P50        time.Time
	P90        time.Time
	Error      string // empty on success
}

// NewForecastEvent creates a ForecastEvent.
func NewForecastEvent(runID string, iterations int, p50, p90 time.Time, errMsg string) ForecastEvent {
	return ForecastEvent{
		baseEvent:  newBaseEvent(TypeForecastCompleted),
		RunID:      runID,
		Iterations: iterations,
		P50:        p50,
		P90:        p90,
		Error:      errMsg,
	}
}
