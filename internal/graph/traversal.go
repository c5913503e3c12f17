package graph

import (
	"fmt"
	"slices"
	"time"

	"github.com/Iron-Ham/plancast/internal/errors"
)

// Children returns the direct children of parentID ordered by id. Passing 0
// returns the top-level tasks.
func (s *Store) Children(parentID int) []*Task {
	ids := s.children[parentID]
	out := make([]*Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.tasks[id])
	}
	return out
}

// TopLevel returns the tasks without a parent.
func (s *Store) TopLevel() []*Task {
	return s.Children(0)
}

// Parent returns the parent of task id, if it has one.
func (s *Store) Parent(id int) (*Task, bool) {
	t, ok := s.tasks[id]
	if !ok || t.ParentID == 0 {
		return nil, false
	}
	p, ok := s.tasks[t.ParentID]
	return p, ok
}

// Descendants returns every task below id in depth-first pre-order.
func (s *Store) Descendants(id int) []*Task {
	var out []*Task
	var walk func(int)
	walk = func(pid int) {
		for _, cid := range s.children[pid] {
			out = append(out, s.tasks[cid])
			walk(cid)
		}
	}
	walk(id)
	return out
}

// IsDescendant reports whether candidate lies below ancestor.
func (s *Store) IsDescendant(ancestor, candidate int) bool {
	for cur, ok := s.tasks[candidate]; ok && cur.ParentID != 0; cur, ok = s.tasks[cur.ParentID] {
		if cur.ParentID == ancestor {
			return true
		}
	}
	return false
}

// Level returns the depth of task id: 0 for top-level tasks.
func (s *Store) Level(id int) int {
	level := 0
	for t, ok := s.tasks[id]; ok && t.ParentID != 0; t, ok = s.tasks[t.ParentID] {
		level++
	}
	return level
}

// Successors returns the tasks that list id as a predecessor, ordered by id.
func (s *Store) Successors(id int) []*Task {
	var out []*Task
	for _, t := range s.Tasks() {
		if t.HasPredecessor(id) {
			out = append(out, t)
		}
	}
	return out
}

// WouldCreateCycle reports whether adding predID as a predecessor of taskID
// would make taskID depend on itself.
func (s *Store) WouldCreateCycle(taskID, predID int) bool {
	return taskID == predID || s.dependsOn(predID, taskID)
}

// dependsOn reports whether from reaches target by following predecessor
// edges. Edges to missing tasks are ignored.
func (s *Store) dependsOn(from, target int) bool {
	visited := make(map[int]bool)
	stack := []int{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		t, ok := s.tasks[id]
		if !ok {
			continue
		}
		for _, p := range t.Predecessors {
			stack = append(stack, p.TaskID)
		}
	}
	return false
}

// TopologicalOrder returns all tasks ordered so every task follows its
// existing predecessors. Ties are broken by ascending id, so the result
// equals id order whenever ids are already topological.
func (s *Store) TopologicalOrder() ([]*Task, error) {
	inDegree := make(map[int]int, len(s.tasks))
	dependents := make(map[int][]int, len(s.tasks))
	for id, t := range s.tasks {
		inDegree[id] += 0
		for _, p := range t.Predecessors {
			if _, ok := s.tasks[p.TaskID]; !ok || slices.Contains(dependents[p.TaskID], id) {
				continue
			}
			dependents[p.TaskID] = append(dependents[p.TaskID], id)
			inDegree[id]++
		}
	}

	var ready []int
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	order := make([]*Task, 0, len(s.tasks))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, s.tasks[id])
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	if len(order) != len(s.tasks) {
		var stuck []int
		for id, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		slices.Sort(stuck)
		return nil, errors.NewGraphError(
			fmt.Sprintf("%d tasks are part of or blocked by a cycle", len(stuck)),
			errors.ErrDependencyCycle,
		).WithRelatedIDs(stuck...)
	}
	return order, nil
}

// SummariesDeepestFirst returns summary tasks ordered by descending depth,
// then id, which is the order rollups must run in.
func (s *Store) SummariesDeepestFirst() []*Task {
	type entry struct {
		t     *Task
		level int
	}
	var entries []entry
	for _, t := range s.tasks {
		if t.IsSummary {
			entries = append(entries, entry{t, s.Level(t.ID)})
		}
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if a.level != b.level {
			return b.level - a.level
		}
		return a.t.ID - b.t.ID
	})
	out := make([]*Task, len(entries))
	for i, e := range entries {
		out[i] = e.t
	}
	return out
}

// renumberWBS assigns "1", "1.2", "1.2.3" style numbers from sibling
// position.
func (s *Store) renumberWBS() {
	var walk func(parentID int, prefix string)
	walk = func(parentID int, prefix string) {
		for i, id := range s.children[parentID] {
			wbs := fmt.Sprintf("%s%d", prefix, i+1)
			s.tasks[id].WBS = wbs
			walk(id, wbs+".")
		}
	}
	walk(0, "")
}

// ProjectStart returns the earliest start among top-level tasks.
func (s *Store) ProjectStart() (time.Time, bool) {
	var start time.Time
	found := false
	for _, t := range s.TopLevel() {
		if !found || t.Start.Before(start) {
			start, found = t.Start, true
		}
	}
	return start, found
}

// ProjectEnd returns the latest end among top-level tasks.
func (s *Store) ProjectEnd() (time.Time, bool) {
	var end time.Time
	found := false
	for _, t := range s.TopLevel() {
		if !found || t.End.After(end) {
			end, found = t.End, true
		}
	}
	return end, found
}

// OverallCompletion returns the calendar-duration weighted percent complete
// across all tasks.
func (s *Store) OverallCompletion() float64 {
	var total, weighted float64
	for _, t := range s.tasks {
		d := float64(t.CalendarDays())
		total += d
		weighted += d * float64(t.PercentComplete)
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}
