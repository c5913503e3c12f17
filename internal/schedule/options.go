package schedule

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/plancast/internal/logging"
)

// DefaultMaxPasses bounds fixed-point propagation.
const DefaultMaxPasses = 16

// Mode selects how far Propagate goes to reach stable dates.
type Mode int

const (
	// SinglePass visits each successor until it is finalized once. Diamond
	// shaped graphs can end with a successor computed before its last
	// predecessor moved.
	SinglePass Mode = iota
	// FixedPoint repeats passes over everything downstream of the seed
	// until no date changes or MaxPasses is reached.
	FixedPoint
)

func (m Mode) String() string {
	switch m {
	case SinglePass:
		return "single-pass"
	case FixedPoint:
		return "fixed-point"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "single-pass" or "fixed-point". An empty string is
// SinglePass.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single-pass", "single":
		return SinglePass, nil
	case "fixed-point", "fixed":
		return FixedPoint, nil
	default:
		return SinglePass, fmt.Errorf("unknown propagation mode %q (want single-pass or fixed-point)", s)
	}
}

// Options configures a Scheduler.
type Options struct {
	Mode      Mode
	MaxPasses int
	Logger    *logging.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxPasses <= 0 {
		o.MaxPasses = DefaultMaxPasses
	}
	if o.Logger == nil {
		o.Logger = logging.NopLogger()
	}
	return o
}
