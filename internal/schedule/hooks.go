package schedule

import (
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/graph"
)

// OnTaskAdded places a new task and everything downstream of it.
func (s *Scheduler) OnTaskAdded(id int) (Result, error) {
	return s.Propagate(id)
}

// OnTaskUpdated re-places an edited task and everything downstream of it.
func (s *Scheduler) OnTaskUpdated(id int) (Result, error) {
	return s.Propagate(id)
}

// OnTaskDeleted propagates from every task that lost a predecessor to the
// deletion and rolls up the former parent.
func (s *Scheduler) OnTaskDeleted(rm graph.Removal) (Result, error) {
	res := Result{Converged: true}
	var errs []error
	for _, id := range rm.FormerSuccessors {
		r, err := s.Propagate(id)
		res.merge(r)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if rm.ParentID != 0 {
		if _, ok := s.store.Task(rm.ParentID); ok {
			changed, err := s.RollupSummary(rm.ParentID)
			res.add(changed...)
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return res, errors.Join(errs...)
}

// OnTaskMoved re-places a reparented task and rolls up both its old and
// new parent chains.
func (s *Scheduler) OnTaskMoved(id, oldParent int) (Result, error) {
	res, err := s.Propagate(id)
	if err != nil && !errors.Is(err, errors.ErrNotConverged) {
		return res, err
	}
	if oldParent != 0 {
		if _, ok := s.store.Task(oldParent); ok {
			changed, rerr := s.RollupSummary(oldParent)
			res.add(changed...)
			if rerr != nil {
				return res, rerr
			}
		}
	}
	changed, rerr := s.RollupSummary(id)
	res.add(changed...)
	if rerr != nil {
		return res, rerr
	}
	return res, err
}

// OnCalendarChanged re-places every task against the current calendar.
func (s *Scheduler) OnCalendarChanged() (Result, error) {
	return s.RescheduleAll()
}
