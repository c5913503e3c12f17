package forecast

import (
	"math"
	"slices"
	"time"

	"github.com/Iron-Ham/plancast/internal/constraint"
	"github.com/Iron-Ham/plancast/internal/graph"
)

// simTask is the immutable per-task record shared by all workers.
type simTask struct {
	id        int
	name      string
	summary   bool
	milestone bool
	start     time.Time
	end       time.Time

	// base is the deterministic working-day duration. Durations are drawn
	// from the triangle (low, base, high) and clamped to [minDays, maxDays].
	base    int
	low     float64
	high    float64
	minDays int
	maxDays int

	preds []simPred
}

// simPred is a finish-to-start edge. Other dependency types are not
// simulated.
type simPred struct {
	idx int
	lag int
}

type snapshot struct {
	tasks []simTask
	// order is a topological order over FS edges with leftovers appended by
	// id.
	order []int
	// summaries lists summary indices deepest first with their children.
	summaries []summaryRollup
	baseline  time.Time
}

type summaryRollup struct {
	idx      int
	children []int
}

func takeSnapshot(store *graph.Store, rules constraint.Rules) *snapshot {
	all := store.Tasks()
	index := make(map[int]int, len(all))
	for i, t := range all {
		index[t.ID] = i
	}

	snap := &snapshot{tasks: make([]simTask, len(all))}
	for i, t := range all {
		st := simTask{
			id:        t.ID,
			name:      t.Name,
			summary:   t.IsSummary,
			milestone: t.IsMilestone,
			start:     t.Start,
			end:       t.End,
		}
		if !t.IsSummary && !t.IsMilestone {
			st.base = rules.Duration(t)
			b := float64(st.base)
			st.low = max(0.1, 0.75*b)
			st.high = 1.25 * b
			st.minDays = max(1, int(math.Ceil(0.75*b)))
			st.maxDays = max(st.minDays, int(math.Floor(1.25*b)))
		}
		for _, p := range t.Predecessors {
			j, ok := index[p.TaskID]
			if !ok || p.Type != graph.FinishToStart {
				continue
			}
			st.preds = append(st.preds, simPred{idx: j, lag: p.LagDays})
		}
		snap.tasks[i] = st
		if t.End.After(snap.baseline) {
			snap.baseline = t.End
		}
	}

	snap.order = fsOrder(snap.tasks)
	for _, t := range store.SummariesDeepestFirst() {
		r := summaryRollup{idx: index[t.ID]}
		for _, c := range store.Children(t.ID) {
			r.children = append(r.children, index[c.ID])
		}
		snap.summaries = append(snap.summaries, r)
	}
	return snap
}

// fsOrder runs Kahn's algorithm over FS edges. Indices follow id order, so
// the ready list is kept sorted by index. Tasks left over are appended by
// id.
func fsOrder(tasks []simTask) []int {
	inDegree := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for i, t := range tasks {
		for _, p := range t.preds {
			dependents[p.idx] = append(dependents[p.idx], i)
			inDegree[i]++
		}
	}

	var ready []int
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, len(tasks))
	placed := make([]bool, len(tasks))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		placed[i] = true
		for _, dep := range dependents[i] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				pos, _ := slices.BinarySearch(ready, dep)
				ready = slices.Insert(ready, pos, dep)
			}
		}
	}
	for i := range tasks {
		if !placed[i] {
			order = append(order, i)
		}
	}
	return order
}
