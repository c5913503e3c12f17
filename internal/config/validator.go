package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "forecast.iterations")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// clockRegex matches a 24-hour "HH:MM" time of day
var clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Upper bounds that keep a run from exhausting memory or time.
const (
	maxIterations = 1_000_000
	maxPassLimit  = 1000
	maxWorkers    = 1024
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateCalendar()...)
	errors = append(errors, c.validateSchedule()...)
	errors = append(errors, c.validateForecast()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateOutput()...)

	return errors
}

// validateCalendar validates the CalendarConfig
func (c *Config) validateCalendar() []ValidationError {
	var errors []ValidationError

	if len(c.Calendar.WorkingDays) == 0 {
		errors = append(errors, ValidationError{
			Field:   "calendar.working_days",
			Value:   c.Calendar.WorkingDays,
			Message: "at least one working weekday is required",
		})
	}
	seen := make(map[int]bool)
	for _, d := range c.Calendar.WorkingDays {
		if d < 0 || d > 6 {
			errors = append(errors, ValidationError{
				Field:   "calendar.working_days",
				Value:   d,
				Message: "must be between 0 (Monday) and 6 (Sunday)",
			})
			continue
		}
		if seen[d] {
			errors = append(errors, ValidationError{
				Field:   "calendar.working_days",
				Value:   d,
				Message: "duplicate weekday",
			})
		}
		seen[d] = true
	}

	clocks := []struct{ field, value string }{
		{"calendar.work_start", c.Calendar.WorkStart},
		{"calendar.work_end", c.Calendar.WorkEnd},
	}
	for _, clock := range clocks {
		if !clockRegex.MatchString(clock.value) {
			errors = append(errors, ValidationError{
				Field:   clock.field,
				Value:   clock.value,
				Message: "must be a 24-hour HH:MM time",
			})
		}
	}

	return errors
}

// validateSchedule validates the ScheduleConfig
func (c *Config) validateSchedule() []ValidationError {
	var errors []ValidationError

	if c.Schedule.Propagation != "" && !slices.Contains(ValidPropagationModes(), c.Schedule.Propagation) {
		errors = append(errors, ValidationError{
			Field:   "schedule.propagation",
			Value:   c.Schedule.Propagation,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPropagationModes(), ", ")),
		})
	}

	// 0 means use the default
	if c.Schedule.MaxPasses < 0 {
		errors = append(errors, ValidationError{
			Field:   "schedule.max_passes",
			Value:   c.Schedule.MaxPasses,
			Message: "must be non-negative",
		})
	}
	if c.Schedule.MaxPasses > maxPassLimit {
		errors = append(errors, ValidationError{
			Field:   "schedule.max_passes",
			Value:   c.Schedule.MaxPasses,
			Message: fmt.Sprintf("exceeds maximum of %d", maxPassLimit),
		})
	}

	return errors
}

// validateForecast validates the ForecastConfig
func (c *Config) validateForecast() []ValidationError {
	var errors []ValidationError

	if c.Forecast.Iterations <= 0 {
		errors = append(errors, ValidationError{
			Field:   "forecast.iterations",
			Value:   c.Forecast.Iterations,
			Message: "must be positive",
		})
	}
	if c.Forecast.Iterations > maxIterations {
		errors = append(errors, ValidationError{
			Field:   "forecast.iterations",
			Value:   c.Forecast.Iterations,
			Message: fmt.Sprintf("exceeds maximum of %d", maxIterations),
		})
	}

	if c.Forecast.Workers < 0 || c.Forecast.Workers > maxWorkers {
		errors = append(errors, ValidationError{
			Field:   "forecast.workers",
			Value:   c.Forecast.Workers,
			Message: fmt.Sprintf("must be between 0 and %d", maxWorkers),
		})
	}

	if c.Forecast.TopDrivers < 0 {
		errors = append(errors, ValidationError{
			Field:   "forecast.top_drivers",
			Value:   c.Forecast.TopDrivers,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateOutput validates the OutputConfig
func (c *Config) validateOutput() []ValidationError {
	var errors []ValidationError

	// A layout without any date or time element renders every value the same.
	if c.Output.DateFormat != "" {
		ref := time.Date(2001, time.February, 3, 4, 5, 6, 0, time.UTC)
		if ref.Format(c.Output.DateFormat) == c.Output.DateFormat {
			errors = append(errors, ValidationError{
				Field:   "output.date_format",
				Value:   c.Output.DateFormat,
				Message: "must be a Go time layout such as 2006-01-02 15:04",
			})
		}
	}

	return errors
}
