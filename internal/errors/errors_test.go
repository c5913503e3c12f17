package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// GraphError Tests
// -----------------------------------------------------------------------------

func TestGraphError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *GraphError
		want string
	}{
		{
			name: "basic error",
			err:  NewGraphError("rejected", nil),
			want: "graph error: rejected",
		},
		{
			name: "with cause",
			err:  NewGraphError("predecessor rejected", ErrDependencyCycle),
			want: "graph error: predecessor rejected: dependency cycle detected",
		},
		{
			name: "with task and related ids",
			err:  NewGraphError("predecessor rejected", ErrDependencyCycle).WithTaskID(3).WithRelatedIDs(1, 2),
			want: "graph error [task=3, related=1,2]: predecessor rejected: dependency cycle detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGraphError_Is(t *testing.T) {
	err := NewGraphError("move rejected", ErrParentCycle).WithTaskID(5)

	if !errors.Is(err, ErrParentCycle) {
		t.Error("errors.Is(err, ErrParentCycle) = false, want true")
	}
	if errors.Is(err, ErrDependencyCycle) {
		t.Error("errors.Is(err, ErrDependencyCycle) = true, want false")
	}
	if !errors.Is(err, &GraphError{}) {
		t.Error("errors.Is(err, &GraphError{}) = false, want true")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	var graphErr *GraphError
	if !errors.As(wrapped, &graphErr) {
		t.Fatal("errors.As(wrapped, &GraphError) = false, want true")
	}
	if graphErr.TaskID != 5 {
		t.Errorf("TaskID = %d, want 5", graphErr.TaskID)
	}
}

// -----------------------------------------------------------------------------
// CalendarError Tests
// -----------------------------------------------------------------------------

func TestCalendarError_Error(t *testing.T) {
	date := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
	err := NewCalendarError("no working day within search limit", ErrNoWorkingDays).
		WithField("working_days").
		WithDate(date)

	want := "calendar error [field=working_days, date=2025-03-04]: no working day within search limit: calendar has no working days"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrNoWorkingDays) {
		t.Error("errors.Is(err, ErrNoWorkingDays) = false, want true")
	}
}

func TestCalendarError_WithSeverity(t *testing.T) {
	err := NewCalendarError("fell back to default window", ErrInvalidWorkWindow).WithSeverity(SeverityWarning)
	if got := GetSeverity(err); got != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want %v", got, SeverityWarning)
	}
}

// -----------------------------------------------------------------------------
// ScheduleError / ForecastError Tests
// -----------------------------------------------------------------------------

func TestScheduleError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ScheduleError
		want string
	}{
		{
			name: "no context",
			err:  NewScheduleError("recompute failed", nil),
			want: "schedule error: recompute failed",
		},
		{
			name: "task and pass",
			err:  NewScheduleError("recompute failed", nil).WithTaskID(7).WithPass(0),
			want: "schedule error [task=7, pass=0]: recompute failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestForecastError_RetryableWhenCanceled(t *testing.T) {
	canceled := NewForecastError("run stopped", Join(ErrCanceled, errors.New("context canceled"))).
		WithRunID("run-1").
		WithIteration(42)

	if !IsRetryable(canceled) {
		t.Error("IsRetryable(canceled forecast) = false, want true")
	}
	want := "forecast error [run=run-1, iteration=42]: run stopped"
	if got := canceled.Error(); len(got) < len(want) || got[:len(want)] != want {
		t.Errorf("Error() = %q, want prefix %q", got, want)
	}

	failed := NewForecastError("empty project", ErrInvalidInput)
	if IsRetryable(failed) {
		t.Error("IsRetryable(failed forecast) = true, want false")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("task", "12")
	if got, want := err.Error(), "task '12' not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	withCause := NewNotFoundError("resource", "Alice").WithCause(ErrResourceNotFound)
	if !errors.Is(withCause, ErrResourceNotFound) {
		t.Error("errors.Is(err, ErrResourceNotFound) = false, want true")
	}
	if !errors.Is(withCause, &NotFoundError{}) {
		t.Error("errors.Is(err, &NotFoundError{}) = false, want true")
	}
}

func TestAlreadyExistsError(t *testing.T) {
	err := NewAlreadyExistsError("resource", "Alice")
	if got, want := err.Error(), "resource 'Alice' already exists"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityWarning)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("end is before start").WithField("end").WithValue("2025-01-01")

	want := "validation error [field=end, value=2025-01-01]: end is before start"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}

	locked := NewValidationError("summary tasks are auto scheduled").WithCause(ErrSummaryLocked)
	if !errors.Is(locked, ErrSummaryLocked) {
		t.Error("errors.Is(err, ErrSummaryLocked) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Classification Helper Tests
// -----------------------------------------------------------------------------

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"graph error", NewGraphError("x", nil), true},
		{"wrapped validation", Wrap(NewValidationError("x"), "outer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want %v", got, SeverityDebug)
	}
	if got := GetSeverity(errors.New("plain")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want %v", got, SeverityError)
	}
	if got := GetSeverity(NewGraphError("x", nil).WithSeverity(SeverityCritical)); got != SeverityCritical {
		t.Errorf("GetSeverity(graph) = %v, want %v", got, SeverityCritical)
	}
}

func TestIsValidationFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"graph error", NewGraphError("cycle", ErrDependencyCycle), true},
		{"not found", NewNotFoundError("task", "1"), true},
		{"calendar error", NewCalendarError("degenerate", ErrNoWorkingDays), false},
		{"wrapped exists", Wrapf(NewAlreadyExistsError("task", "2"), "add task %d", 2), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidationFailure(tt.err); got != tt.want {
				t.Errorf("IsValidationFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	err := Wrapf(ErrTaskNotFound, "update task %d", 9)
	if got, want := err.Error(), "update task 9: task not found"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
	if !Is(err, ErrTaskNotFound) {
		t.Error("Is(wrapped, ErrTaskNotFound) = false, want true")
	}
}
