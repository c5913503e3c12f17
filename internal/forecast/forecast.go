// Package forecast estimates project completion by Monte Carlo simulation.
//
// A run snapshots the current schedule, then re-derives it many times with
// every task duration drawn from a triangular distribution around its
// deterministic length (75% to 125%, most likely at 100%). Completion dates
// are aggregated into percentiles, and tasks are ranked by how often they sit
// on the chain that drives the simulated finish.
//
// A sampled duration is rounded to whole working days and clamped to
// [ceil(0.75b), floor(1.25b)] for a base of b days, so a task never
// finishes outside its envelope. Tasks of one to three working days have
// an envelope of a single day and carry no variance; spread in a forecast
// comes from tasks of four days or more.
//
// Simulation follows finish-to-start edges only. Start-to-start,
// finish-to-finish and start-to-finish edges are present in the graph but
// do not constrain simulated dates. A milestone lands on its predecessor's
// finish, as it does in the deterministic schedule.
//
// Iterations are split across workers. Each worker has its own random
// source and working state, and the live graph is only read while the
// snapshot is taken.
package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/plancast/internal/calendar"
	"github.com/Iron-Ham/plancast/internal/constraint"
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/graph"
	"github.com/Iron-Ham/plancast/internal/logging"
)

// Defaults applied to zero Options fields.
const (
	DefaultIterations = 1000
	DefaultTopDrivers = 5
)

// Options configures a run.
type Options struct {
	// Iterations is the number of simulated schedules.
	Iterations int
	// Workers is the number of goroutines; 0 means runtime.NumCPU().
	Workers int
	// Seed makes a run reproducible for a fixed Workers count. 0 picks a
	// seed from the clock.
	Seed uint64
	// TopDrivers caps the risk driver list.
	TopDrivers int
	Logger     *logging.Logger
}

func (o Options) withDefaults() Options {
	if o.Iterations <= 0 {
		o.Iterations = DefaultIterations
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	o.Workers = min(o.Workers, o.Iterations)
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	if o.TopDrivers <= 0 {
		o.TopDrivers = DefaultTopDrivers
	}
	if o.Logger == nil {
		o.Logger = logging.NopLogger()
	}
	return o
}

// Driver is a task that often lies on the chain driving completion.
type Driver struct {
	TaskID    int     `json:"id"`
	Name      string  `json:"name"`
	Count     int     `json:"count"`
	Frequency float64 `json:"frequency"`
}

// Result summarizes a run.
type Result struct {
	RunID      string    `json:"run_id"`
	Iterations int       `json:"iterations"`
	Seed       uint64    `json:"seed"`
	Baseline   time.Time `json:"baseline"`
	P50        time.Time `json:"p50"`
	P80        time.Time `json:"p80"`
	P90        time.Time `json:"p90"`
	Mean       time.Time `json:"mean"`
	StdDevDays float64   `json:"stddev_days"`
	Min        time.Time `json:"min"`
	Max        time.Time `json:"max"`
	Drivers    []Driver  `json:"drivers"`

	// Completions holds every simulated completion date, ascending.
	Completions []time.Time `json:"-"`
}

// Percentile returns the completion date at fraction p of the sorted
// distribution: index floor(p*N), clamped to the last entry.
func (r *Result) Percentile(p float64) time.Time {
	return percentile(r.Completions, p)
}

func percentile(sorted []time.Time, p float64) time.Time {
	if len(sorted) == 0 {
		return time.Time{}
	}
	idx := min(int(math.Floor(p*float64(len(sorted)))), len(sorted)-1)
	return sorted[max(idx, 0)]
}

// chunk is what one worker hands back.
type chunk struct {
	completions []time.Time
	counts      []int
}

// Run simulates opts.Iterations schedules of the tasks in store. The store
// is read only while the snapshot is taken; callers must not mutate it
// concurrently with that.
func Run(ctx context.Context, store *graph.Store, cal *calendar.Calendar, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	runID := uuid.NewString()
	logger := opts.Logger.WithRun(runID).WithComponent("forecast")

	rules := constraint.New(cal)
	snap := takeSnapshot(store, rules)
	if len(snap.tasks) == 0 {
		return nil, errors.NewForecastError("project has no tasks", errors.ErrInvalidInput).WithRunID(runID)
	}

	logger.Info("forecast started",
		"iterations", opts.Iterations,
		"workers", opts.Workers,
		"seed", opts.Seed,
		"tasks", len(snap.tasks),
	)
	started := time.Now()

	p := pool.NewWithResults[chunk]().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(opts.Workers)
	per, extra := opts.Iterations/opts.Workers, opts.Iterations%opts.Workers
	first := 0
	for w := range opts.Workers {
		n := per
		if w < extra {
			n++
		}
		sim := newSimulator(snap, rules, rand.New(rand.NewPCG(opts.Seed, uint64(w))))
		offset := first
		p.Go(func(ctx context.Context) (chunk, error) {
			return sim.run(ctx, n, offset)
		})
		first += n
	}

	chunks, err := p.Wait()
	if err != nil {
		logger.Warn("forecast stopped", "error", err.Error())
		var fe *errors.ForecastError
		if errors.As(err, &fe) {
			return nil, fe.WithRunID(runID)
		}
		return nil, errors.NewForecastError("simulation failed", err).WithRunID(runID)
	}

	res := aggregate(snap, chunks, opts)
	res.RunID = runID
	logger.Info("forecast finished",
		"duration_ms", time.Since(started).Milliseconds(),
		"p50", res.P50.Format(time.DateTime),
		"p90", res.P90.Format(time.DateTime),
	)
	return res, nil
}

func aggregate(snap *snapshot, chunks []chunk, opts Options) *Result {
	res := &Result{
		Iterations: opts.Iterations,
		Seed:       opts.Seed,
		Baseline:   snap.baseline,
	}

	counts := make([]int, len(snap.tasks))
	for _, c := range chunks {
		res.Completions = append(res.Completions, c.completions...)
		for i, n := range c.counts {
			counts[i] += n
		}
	}
	slices.SortFunc(res.Completions, func(a, b time.Time) int { return a.Compare(b) })

	n := len(res.Completions)
	res.P50 = percentile(res.Completions, 0.50)
	res.P80 = percentile(res.Completions, 0.80)
	res.P90 = percentile(res.Completions, 0.90)
	res.Min, res.Max = res.Completions[0], res.Completions[n-1]

	loc := res.Completions[0].Location()
	var sum float64
	for _, c := range res.Completions {
		sum += float64(c.Unix())
	}
	mean := sum / float64(n)
	var sq float64
	for _, c := range res.Completions {
		d := float64(c.Unix()) - mean
		sq += d * d
	}
	if n > 1 {
		res.StdDevDays = math.Sqrt(sq/float64(n-1)) / (24 * 60 * 60)
	}
	res.Mean = time.Unix(int64(math.Round(mean)), 0).In(loc)

	res.Drivers = rankDrivers(snap, counts, n, opts.TopDrivers)
	return res
}

func rankDrivers(snap *snapshot, counts []int, iterations, top int) []Driver {
	var drivers []Driver
	for i, c := range counts {
		t := snap.tasks[i]
		if c == 0 || t.summary || t.milestone {
			continue
		}
		drivers = append(drivers, Driver{
			TaskID:    t.id,
			Name:      t.name,
			Count:     c,
			Frequency: float64(c) / float64(iterations),
		})
	}
	slices.SortFunc(drivers, func(a, b Driver) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return a.TaskID - b.TaskID
	})
	if len(drivers) > top {
		drivers = drivers[:top]
	}
	return drivers
}

func canceled(ctx context.Context, iteration int) error {
	return errors.NewForecastError("forecast canceled", fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())).
		WithIteration(iteration)
}
