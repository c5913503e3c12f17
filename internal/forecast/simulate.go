package forecast

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Iron-Ham/plancast/internal/constraint"
)

// simulator is one worker's private state.
type simulator struct {
	snap  *snapshot
	rules constraint.Rules
	rng   *rand.Rand

	starts  []time.Time
	ends    []time.Time
	drivers []int
	stamp   []int
}

func newSimulator(snap *snapshot, rules constraint.Rules, rng *rand.Rand) *simulator {
	n := len(snap.tasks)
	return &simulator{
		snap:    snap,
		rules:   rules,
		rng:     rng,
		starts:  make([]time.Time, n),
		ends:    make([]time.Time, n),
		drivers: make([]int, n),
		stamp:   make([]int, n),
	}
}

// run executes n iterations. offset is the global number of the first one,
// used when reporting where a run stopped.
func (s *simulator) run(ctx context.Context, n, offset int) (chunk, error) {
	out := chunk{
		completions: make([]time.Time, 0, n),
		counts:      make([]int, len(s.snap.tasks)),
	}
	for i := range n {
		if ctx.Err() != nil {
			return out, canceled(ctx, offset+i)
		}
		finish, err := s.iterate()
		if err != nil {
			return out, err
		}
		out.completions = append(out.completions, finish)
		s.countDrivers(finish, i+1, out.counts)
	}
	return out, nil
}

// iterate simulates one schedule and returns its completion date.
func (s *simulator) iterate() (time.Time, error) {
	for i, t := range s.snap.tasks {
		s.starts[i], s.ends[i] = t.start, t.end
		s.drivers[i] = -1
	}

	for _, i := range s.snap.order {
		t := &s.snap.tasks[i]
		if t.summary {
			continue
		}
		days := s.sample(t)

		start := t.start
		for k, p := range t.preds {
			pred := constraint.Endpoint{
				Start:     s.starts[p.idx],
				End:       s.ends[p.idx],
				Milestone: s.snap.tasks[p.idx].milestone,
			}
			at, err := s.rules.FinishToStart(pred, p.lag, t.milestone)
			if err != nil {
				return time.Time{}, err
			}
			if k == 0 || at.After(start) {
				start = at
				s.drivers[i] = p.idx
			}
		}

		end := start
		if days > 0 {
			var err error
			if end, err = s.rules.EndFromDuration(start, days); err != nil {
				return time.Time{}, err
			}
		}
		s.starts[i], s.ends[i] = start, end
	}

	for _, r := range s.snap.summaries {
		first := true
		for _, c := range r.children {
			if first || s.starts[c].Before(s.starts[r.idx]) {
				s.starts[r.idx] = s.starts[c]
			}
			if first || s.ends[c].After(s.ends[r.idx]) {
				s.ends[r.idx] = s.ends[c]
			}
			first = false
		}
	}

	var finish time.Time
	for _, e := range s.ends {
		if e.After(finish) {
			finish = e
		}
	}
	return finish, nil
}

// sample draws a working-day duration. Summaries and milestones take 0.
func (s *simulator) sample(t *simTask) int {
	if t.summary || t.milestone {
		return 0
	}
	d := int(math.Round(triangular(s.rng.Float64(), t.low, float64(t.base), t.high)))
	return min(max(d, t.minDays), t.maxDays)
}

// triangular maps u in [0, 1) through the inverse CDF of the triangular
// distribution on [low, high] with the given mode.
func triangular(u, low, mode, high float64) float64 {
	if high <= low {
		return mode
	}
	f := (mode - low) / (high - low)
	if u < f {
		return low + math.Sqrt(u*(high-low)*(mode-low))
	}
	return high - math.Sqrt((1-u)*(high-low)*(high-mode))
}

// countDrivers walks the driver chain back from every task that ends at
// finish, counting each task once per iteration.
func (s *simulator) countDrivers(finish time.Time, iteration int, counts []int) {
	for i, e := range s.ends {
		if !e.Equal(finish) {
			continue
		}
		for cur := i; cur >= 0 && s.stamp[cur] != iteration; cur = s.drivers[cur] {
			s.stamp[cur] = iteration
			counts[cur]++
		}
	}
}
