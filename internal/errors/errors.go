// Package errors provides centralized error definitions and error handling utilities
// for plancast. It defines domain-specific errors for each scheduling subsystem,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - GraphError: task/resource graph mutations (cycles, locked summary fields)
//   - CalendarError: calendar configuration and degenerate calendars
//   - ScheduleError: dependency propagation and critical path passes
//   - ForecastError: Monte Carlo forecasting runs
//
// Semantic errors represent common error conditions:
//   - NotFoundError: task or resource not found
//   - AlreadyExistsError: task id or resource name already in use
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewGraphError("predecessor rejected", errors.ErrDependencyCycle).
//		WithTaskID(4).WithRelatedIDs(2)
//
//	err := errors.NewNotFoundError("task", "12")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrDependencyCycle) { ... }
//
//	var calErr *errors.CalendarError
//	if errors.As(err, &calErr) { ... }
//
//	if errors.IsUserFacing(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry (canceled forecasts)
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for recovered conditions, such as a config value
	// replaced by its default.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Graph-related sentinel errors
var (
	// ErrTaskNotFound indicates that a task could not be found.
	ErrTaskNotFound = New("task not found")
	// ErrResourceNotFound indicates that a resource could not be found.
	ErrResourceNotFound = New("resource not found")
	// ErrDependencyCycle indicates a circular dependency between tasks.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrParentCycle indicates a task would become its own ancestor.
	ErrParentCycle = New("parent cycle detected")
	// ErrSelfDependency indicates a task listed itself as a predecessor.
	ErrSelfDependency = New("task cannot depend on itself")
	// ErrSummaryLocked indicates an edit to a field that summary tasks derive
	// from their children.
	ErrSummaryLocked = New("summary task field is derived from children")
)

// Calendar-related sentinel errors
var (
	// ErrNoWorkingDays indicates the calendar has no reachable working day.
	ErrNoWorkingDays = New("calendar has no working days")
	// ErrNoWorkingHours indicates the daily work window is empty.
	ErrNoWorkingHours = New("calendar work window is empty")
	// ErrInvalidWorkWindow indicates an unparsable work window; the default
	// window was applied instead.
	ErrInvalidWorkWindow = New("invalid work window")
	// ErrInvalidException indicates a malformed resource exception entry.
	ErrInvalidException = New("invalid resource exception")
)

// Schedule-related sentinel errors
var (
	// ErrNotConverged indicates fixed-point propagation hit its pass limit.
	ErrNotConverged = New("propagation did not converge")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// PlanError is the base interface for all plancast errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type PlanError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

func joinIDs(ids []int) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.Itoa(id)
	}
	return strings.Join(s, ",")
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GraphError represents a rejected task or resource graph mutation. The graph
// is left unchanged when one is returned.
//
// Example:
//
//	err := errors.NewGraphError("predecessor rejected", errors.ErrDependencyCycle)
//	err = err.WithTaskID(3).WithRelatedIDs(1, 2)
//	fmt.Println(err) // "graph error [task=3, related=1,2]: predecessor rejected: dependency cycle detected"
type GraphError struct {
	baseError
	TaskID     int
	RelatedIDs []int
}

// NewGraphError creates a new GraphError.
func NewGraphError(message string, cause error) *GraphError {
	return &GraphError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithTaskID adds the task being mutated to the error context.
func (e *GraphError) WithTaskID(id int) *GraphError {
	e.TaskID = id
	return e
}

// WithRelatedIDs adds the other tasks involved (cycle members, parents).
func (e *GraphError) WithRelatedIDs(ids ...int) *GraphError {
	e.RelatedIDs = append(e.RelatedIDs, ids...)
	return e
}

// WithSeverity sets the error severity.
func (e *GraphError) WithSeverity(s Severity) *GraphError {
	e.severity = s
	return e
}

func (e *GraphError) Error() string {
	var parts []string
	if e.TaskID != 0 {
		parts = append(parts, fmt.Sprintf("task=%d", e.TaskID))
	}
	if len(e.RelatedIDs) > 0 {
		parts = append(parts, "related="+joinIDs(e.RelatedIDs))
	}
	return e.format("graph error", parts)
}

// Is checks if this error matches the target.
func (e *GraphError) Is(target error) bool {
	if _, ok := target.(*GraphError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CalendarError represents calendar configuration problems, including
// degenerate calendars that have no reachable working time.
//
// Example:
//
//	err := errors.NewCalendarError("no working day within search limit", errors.ErrNoWorkingDays)
//	err = err.WithDate(start)
type CalendarError struct {
	baseError
	Date  time.Time
	Field string
}

// NewCalendarError creates a new CalendarError.
func NewCalendarError(message string, cause error) *CalendarError {
	return &CalendarError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithDate adds the date being evaluated to the error context.
func (e *CalendarError) WithDate(d time.Time) *CalendarError {
	e.Date = d
	return e
}

// WithField adds the calendar setting at fault.
func (e *CalendarError) WithField(field string) *CalendarError {
	e.Field = field
	return e
}

// WithSeverity sets the error severity.
func (e *CalendarError) WithSeverity(s Severity) *CalendarError {
	e.severity = s
	return e
}

func (e *CalendarError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if !e.Date.IsZero() {
		parts = append(parts, fmt.Sprintf("date=%s", e.Date.Format(time.DateOnly)))
	}
	return e.format("calendar error", parts)
}

// Is checks if this error matches the target.
func (e *CalendarError) Is(target error) bool {
	if _, ok := target.(*CalendarError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ScheduleError represents a failure during recompute, propagation or a
// critical path pass.
//
// Example:
//
//	err := errors.NewScheduleError("recompute failed", calErr).WithTaskID(7).WithPass(2)
type ScheduleError struct {
	baseError
	TaskID int
	Pass   int
}

// NewScheduleError creates a new ScheduleError.
func NewScheduleError(message string, cause error) *ScheduleError {
	return &ScheduleError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
		Pass: -1,
	}
}

// WithTaskID adds the task being scheduled.
func (e *ScheduleError) WithTaskID(id int) *ScheduleError {
	e.TaskID = id
	return e
}

// WithPass adds the propagation pass number.
func (e *ScheduleError) WithPass(pass int) *ScheduleError {
	e.Pass = pass
	return e
}

// WithSeverity sets the error severity.
func (e *ScheduleError) WithSeverity(s Severity) *ScheduleError {
	e.severity = s
	return e
}

func (e *ScheduleError) Error() string {
	var parts []string
	if e.TaskID != 0 {
		parts = append(parts, fmt.Sprintf("task=%d", e.TaskID))
	}
	if e.Pass >= 0 {
		parts = append(parts, fmt.Sprintf("pass=%d", e.Pass))
	}
	return e.format("schedule error", parts)
}

// Is checks if this error matches the target.
func (e *ScheduleError) Is(target error) bool {
	if _, ok := target.(*ScheduleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ForecastError represents a failed or canceled Monte Carlo run.
type ForecastError struct {
	baseError
	RunID     string
	Iteration int
}

// NewForecastError creates a new ForecastError.
func NewForecastError(message string, cause error) *ForecastError {
	return &ForecastError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  Is(cause, ErrCanceled),
			userFacing: true,
		},
		Iteration: -1,
	}
}

// WithRunID adds the forecast run identifier.
func (e *ForecastError) WithRunID(id string) *ForecastError {
	e.RunID = id
	return e
}

// WithIteration adds the iteration at which the run stopped.
func (e *ForecastError) WithIteration(i int) *ForecastError {
	e.Iteration = i
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ForecastError) WithRetryable(r bool) *ForecastError {
	e.retryable = r
	return e
}

func (e *ForecastError) Error() string {
	var parts []string
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}
	if e.Iteration >= 0 {
		parts = append(parts, fmt.Sprintf("iteration=%d", e.Iteration))
	}
	return e.format("forecast error", parts)
}

// Is checks if this error matches the target.
func (e *ForecastError) Is(target error) bool {
	if _, ok := target.(*ForecastError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a task or resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("task", "12")
//	fmt.Println(err) // "task '12' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a task id or resource name already in use.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("end is before start")
//	err = err.WithField("end").WithValue(end)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry, such as a canceled forecast.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var planErr PlanError
	if As(err, &planErr) {
		return planErr.IsRetryable()
	}

	return Is(err, ErrCanceled)
}

// IsUserFacing returns true if the error message is safe to display to end users.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    fmt.Fprintln(os.Stderr, err)
//	} else {
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var planErr PlanError
	if As(err, &planErr) {
		return planErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement PlanError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var planErr PlanError
	if As(err, &planErr) {
		return planErr.Severity()
	}

	return SeverityError
}

// IsValidationFailure reports whether err is a rejected graph edit or invalid
// input, as opposed to a configuration or runtime failure.
func IsValidationFailure(err error) bool {
	if err == nil {
		return false
	}

	var graphErr *GraphError
	var validation *ValidationError
	var notFound *NotFoundError
	var exists *AlreadyExistsError

	return As(err, &graphErr) || As(err, &validation) ||
		As(err, &notFound) || As(err, &exists)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to load project")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to schedule task %d", id)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
