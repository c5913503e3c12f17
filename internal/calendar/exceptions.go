package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/plancast/internal/errors"
)

// rangeSeparator separates the two dates of an exception range entry.
const rangeSeparator = " to "

// Exceptions is a parsed list of per-resource non-working dates.
type Exceptions []dateRange

// dateRange is inclusive; bounds are ISO date keys so they compare
// lexically.
type dateRange struct {
	from, to string
}

// ParseExceptions parses entries of the form "YYYY-MM-DD" or
// "YYYY-MM-DD to YYYY-MM-DD". Well-formed entries are always returned;
// malformed ones are skipped and reported together in the error.
func ParseExceptions(entries []string) (Exceptions, error) {
	var (
		out  Exceptions
		errs []error
	)
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		r, err := parseException(entry)
		if err != nil {
			errs = append(errs, errors.NewCalendarError(err.Error(), errors.ErrInvalidException).
				WithField("exceptions").
				WithSeverity(errors.SeverityWarning))
			continue
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}

func parseException(entry string) (dateRange, error) {
	fromStr, toStr, isRange := strings.Cut(entry, rangeSeparator)
	from, err := time.Parse(time.DateOnly, strings.TrimSpace(fromStr))
	if err != nil {
		return dateRange{}, fmt.Errorf("malformed exception %q", entry)
	}
	if !isRange {
		k := dateKey(from)
		return dateRange{from: k, to: k}, nil
	}

	to, err := time.Parse(time.DateOnly, strings.TrimSpace(toStr))
	if err != nil {
		return dateRange{}, fmt.Errorf("malformed exception %q", entry)
	}
	if to.Before(from) {
		return dateRange{}, fmt.Errorf("exception %q ends before it starts", entry)
	}
	return dateRange{from: dateKey(from), to: dateKey(to)}, nil
}

// Contains reports whether d's date falls inside any exception.
func (ex Exceptions) Contains(d time.Time) bool {
	if len(ex) == 0 {
		return false
	}
	k := dateKey(d)
	for _, r := range ex {
		if k >= r.from && k <= r.to {
			return true
		}
	}
	return false
}

// String renders the exceptions in their input syntax.
func (ex Exceptions) String() string {
	parts := make([]string, len(ex))
	for i, r := range ex {
		if r.from == r.to {
			parts[i] = r.from
		} else {
			parts[i] = r.from + rangeSeparator + r.to
		}
	}
	return strings.Join(parts, ", ")
}
