// Package graph holds the in-memory task and resource graph of a project:
// tasks arranged in a parent/child forest, predecessor edges between tasks,
// and the resources assigned to them.
//
// The Store validates every structural edit before applying it. Rejected
// edits (dependency or parent cycles, edits to derived summary fields) return
// an error and leave the graph unchanged. The Store never schedules; callers
// pair each mutation with the matching scheduler hook.
package graph

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/Iron-Ham/plancast/internal/errors"
)

// Store is the arena of tasks and resources plus the indexes derived from
// them. It is not safe for concurrent mutation; callers serialize edits and
// must not mutate while a scheduling pass runs.
//
// Tasks returned by accessors are live. Date and CPM fields may be written
// by scheduling components; structural fields must go through Store methods.
type Store struct {
	ids       *IDAllocator
	tasks     map[int]*Task
	children  map[int][]int // parent id to child ids ascending; 0 holds top-level tasks
	resources map[string]*Resource
	resOrder  []string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		ids:       NewIDAllocator(),
		tasks:     make(map[int]*Task),
		children:  make(map[int][]int),
		resources: make(map[string]*Resource),
	}
}

// Removal describes the effect of DeleteTask.
type Removal struct {
	// IDs holds the deleted task and all its descendants.
	IDs []int
	// ParentID is the deleted task's former parent (0 for top level).
	ParentID int
	// FormerSuccessors are surviving tasks that lost a predecessor.
	FormerSuccessors []int
}

// Move records one reparenting performed by Indent or Outdent.
type Move struct {
	TaskID    int
	OldParent int
	NewParent int
}

func taskNotFound(id int) error {
	return errors.NewNotFoundError("task", strconv.Itoa(id)).WithCause(errors.ErrTaskNotFound)
}

// Len returns the number of tasks.
func (s *Store) Len() int {
	return len(s.tasks)
}

// Task returns the live task with the given id.
func (s *Store) Task(id int) (*Task, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

// Tasks returns all tasks ordered by id.
func (s *Store) Tasks() []*Task {
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Task) int { return a.ID - b.ID })
	return out
}

// AddTask validates t and inserts a copy under parentID (0 for top level).
// A zero t.ID is allocated; a non-zero one must be unused. The parent, if
// any, becomes an auto-scheduled summary task.
func (s *Store) AddTask(t *Task, parentID int) (int, error) {
	if t == nil {
		return 0, errors.NewValidationError("task is nil")
	}
	var parent *Task
	if parentID != 0 {
		p, ok := s.tasks[parentID]
		if !ok {
			return 0, taskNotFound(parentID)
		}
		parent = p
	}

	task := t.Clone()
	if task.ID != 0 {
		if task.ID < 0 {
			return 0, errors.NewValidationError("task id must be positive").WithField("id").WithValue(task.ID)
		}
		if _, exists := s.tasks[task.ID]; exists {
			return 0, errors.NewAlreadyExistsError("task", strconv.Itoa(task.ID))
		}
	}
	id := task.ID
	if id == 0 {
		id = s.ids.Peek()
	}

	normalize(task)
	if err := validateFields(task); err != nil {
		return 0, err
	}
	if err := s.checkPredecessors(id, task.Predecessors); err != nil {
		return 0, err
	}

	if task.ID == 0 {
		task.ID = s.ids.Next()
	} else {
		s.ids.Observe(task.ID)
	}
	task.ParentID = parentID
	task.IsSummary = false
	task.WBS = ""
	task.CPM = CPMFields{}
	task.originalStart = task.Start

	s.tasks[task.ID] = task
	s.children[parentID] = insertSorted(s.children[parentID], task.ID)
	if parent != nil {
		promote(parent)
	}
	s.renumberWBS()
	return task.ID, nil
}

// UpdateTask replaces the editable fields of task id with those of t:
// name, dates, percent complete, milestone flag, schedule type,
// predecessors, resources and notes. Parent and summary status are not
// editable here.
//
// Summary tasks reject Manual scheduling and any change to their derived
// dates, percent complete or milestone flag.
func (s *Store) UpdateTask(id int, t *Task) error {
	cur, ok := s.tasks[id]
	if !ok {
		return taskNotFound(id)
	}
	if t == nil {
		return errors.NewValidationError("task is nil")
	}

	next := t.Clone()
	normalize(next)
	if cur.IsSummary {
		if err := checkSummaryEdit(cur, next); err != nil {
			return err
		}
	}
	if err := validateFields(next); err != nil {
		return err
	}
	if err := s.checkPredecessors(id, next.Predecessors); err != nil {
		return err
	}

	if !next.Start.Equal(cur.Start) {
		cur.originalStart = next.Start
	}
	cur.Name = next.Name
	cur.Start = next.Start
	cur.End = next.End
	cur.PercentComplete = next.PercentComplete
	cur.IsMilestone = next.IsMilestone
	cur.ScheduleType = next.ScheduleType
	cur.Predecessors = next.Predecessors
	cur.Resources = next.Resources
	cur.Notes = next.Notes
	return nil
}

func checkSummaryEdit(cur, next *Task) error {
	locked := func(field string) error {
		return errors.NewGraphError(fmt.Sprintf("%s of a summary task is derived from its children", field), errors.ErrSummaryLocked).
			WithTaskID(cur.ID)
	}
	switch {
	case next.ScheduleType == ManuallyScheduled:
		return locked("schedule type")
	case next.IsMilestone:
		return locked("milestone flag")
	case !next.Start.Equal(cur.Start) || !next.End.Equal(cur.End):
		return locked("date range")
	case next.PercentComplete != cur.PercentComplete:
		return locked("percent complete")
	}
	return nil
}

// SetPredecessors replaces the predecessor list of task id.
func (s *Store) SetPredecessors(id int, preds []Predecessor) error {
	cur, ok := s.tasks[id]
	if !ok {
		return taskNotFound(id)
	}
	for _, p := range preds {
		if !p.Type.Valid() {
			return errors.NewValidationError("invalid dependency type").WithField("predecessors").WithValue(int(p.Type))
		}
	}
	if err := s.checkPredecessors(id, preds); err != nil {
		return err
	}
	cur.Predecessors = slices.Clone(preds)
	return nil
}

// AddPredecessor appends one edge to task id.
func (s *Store) AddPredecessor(id int, p Predecessor) error {
	cur, ok := s.tasks[id]
	if !ok {
		return taskNotFound(id)
	}
	return s.SetPredecessors(id, append(slices.Clone(cur.Predecessors), p))
}

// DeleteTask removes task id and all of its descendants, strips edges that
// pointed at them, and demotes the parent if it has no children left.
func (s *Store) DeleteTask(id int) (Removal, error) {
	t, ok := s.tasks[id]
	if !ok {
		return Removal{}, taskNotFound(id)
	}

	removed := []int{id}
	for _, d := range s.Descendants(id) {
		removed = append(removed, d.ID)
	}
	gone := make(map[int]bool, len(removed))
	for _, rid := range removed {
		gone[rid] = true
	}

	var successors []int
	for _, other := range s.Tasks() {
		if gone[other.ID] {
			continue
		}
		kept := other.Predecessors[:0:0]
		for _, p := range other.Predecessors {
			if gone[p.TaskID] {
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) != len(other.Predecessors) {
			other.Predecessors = kept
			successors = append(successors, other.ID)
		}
	}

	parentID := t.ParentID
	s.children[parentID] = removeID(s.children[parentID], id)
	for _, rid := range removed {
		delete(s.tasks, rid)
		delete(s.children, rid)
	}
	s.demoteIfEmpty(parentID)
	s.renumberWBS()

	slices.Sort(removed)
	return Removal{IDs: removed, ParentID: parentID, FormerSuccessors: successors}, nil
}

// MoveTask reparents task id under newParent (0 for top level) and returns
// the previous parent. Moving a task under itself or one of its
// descendants is rejected.
func (s *Store) MoveTask(id, newParent int) (int, error) {
	t, ok := s.tasks[id]
	if !ok {
		return 0, taskNotFound(id)
	}
	oldParent := t.ParentID
	if newParent == oldParent {
		return oldParent, nil
	}
	var parent *Task
	if newParent != 0 {
		p, ok := s.tasks[newParent]
		if !ok {
			return oldParent, taskNotFound(newParent)
		}
		if newParent == id || s.IsDescendant(id, newParent) {
			return oldParent, errors.NewGraphError("task cannot become its own ancestor", errors.ErrParentCycle).
				WithTaskID(id).
				WithRelatedIDs(newParent)
		}
		parent = p
	}

	s.children[oldParent] = removeID(s.children[oldParent], id)
	s.children[newParent] = insertSorted(s.children[newParent], id)
	t.ParentID = newParent
	if parent != nil {
		promote(parent)
	}
	s.demoteIfEmpty(oldParent)
	s.renumberWBS()
	return oldParent, nil
}

// Indent makes each task, in id order, a child of its preceding sibling.
// Tasks without a preceding sibling are left in place.
func (s *Store) Indent(ids []int) ([]Move, error) {
	var moves []Move
	for _, id := range sortedExisting(s, ids) {
		t := s.tasks[id]
		siblings := s.children[t.ParentID]
		idx := slices.Index(siblings, id)
		if idx <= 0 {
			continue
		}
		target := siblings[idx-1]
		old, err := s.MoveTask(id, target)
		if err != nil {
			return moves, err
		}
		moves = append(moves, Move{TaskID: id, OldParent: old, NewParent: target})
	}
	return moves, nil
}

// Outdent moves each task up one level, to its grandparent. Top-level tasks
// are left in place.
func (s *Store) Outdent(ids []int) ([]Move, error) {
	var moves []Move
	for _, id := range sortedExisting(s, ids) {
		t := s.tasks[id]
		if t.ParentID == 0 {
			continue
		}
		target := s.tasks[t.ParentID].ParentID
		old, err := s.MoveTask(id, target)
		if err != nil {
			return moves, err
		}
		moves = append(moves, Move{TaskID: id, OldParent: old, NewParent: target})
	}
	return moves, nil
}

func sortedExisting(s *Store, ids []int) []int {
	var out []int
	for _, id := range ids {
		if _, ok := s.tasks[id]; ok && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// normalize applies the milestone invariant.
func normalize(t *Task) {
	if t.IsMilestone {
		t.End = t.Start
	}
}

func validateFields(t *Task) error {
	if t.PercentComplete < 0 || t.PercentComplete > 100 {
		return errors.NewValidationError("percent complete must be between 0 and 100").
			WithField("percent_complete").
			WithValue(t.PercentComplete)
	}
	if t.End.Before(t.Start) {
		return errors.NewValidationError("end is before start").
			WithField("end").
			WithValue(t.End)
	}
	if !t.ScheduleType.Valid() {
		return errors.NewValidationError("invalid schedule type").WithField("schedule").WithValue(int(t.ScheduleType))
	}
	for _, p := range t.Predecessors {
		if !p.Type.Valid() {
			return errors.NewValidationError("invalid dependency type").WithField("predecessors").WithValue(int(p.Type))
		}
	}
	for _, a := range t.Resources {
		if a.Allocation < 0 {
			return errors.NewValidationError("allocation cannot be negative").WithField("resources").WithValue(a.Allocation)
		}
	}
	return nil
}

// checkPredecessors rejects self edges and edges whose predecessor already
// depends, directly or transitively, on id.
func (s *Store) checkPredecessors(id int, preds []Predecessor) error {
	for _, p := range preds {
		if p.TaskID == id {
			return errors.NewGraphError("predecessor rejected", errors.ErrSelfDependency).WithTaskID(id)
		}
		if s.dependsOn(p.TaskID, id) {
			return errors.NewGraphError("predecessor rejected", errors.ErrDependencyCycle).
				WithTaskID(id).
				WithRelatedIDs(p.TaskID)
		}
	}
	return nil
}

// promote turns a task into an auto-scheduled summary.
func promote(t *Task) {
	t.IsSummary = true
	t.IsMilestone = false
	t.ScheduleType = AutoScheduled
}

func (s *Store) demoteIfEmpty(parentID int) {
	if parentID == 0 {
		return
	}
	if p, ok := s.tasks[parentID]; ok && len(s.children[parentID]) == 0 {
		p.IsSummary = false
	}
}

func insertSorted(ids []int, id int) []int {
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids
	}
	return slices.Insert(ids, i, id)
}

func removeID(ids []int, id int) []int {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
