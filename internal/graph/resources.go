package graph

import (
	"slices"
	"strings"

	"github.com/Iron-Ham/plancast/internal/errors"
)

func resourceNotFound(name string) error {
	return errors.NewNotFoundError("resource", name).WithCause(errors.ErrResourceNotFound)
}

// AddResource registers a resource. Names are unique; a non-positive
// MaxHoursPerDay becomes DefaultMaxHoursPerDay.
func (s *Store) AddResource(r Resource) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return errors.NewValidationError("resource name is required").WithField("name")
	}
	if _, exists := s.resources[r.Name]; exists {
		return errors.NewAlreadyExistsError("resource", r.Name)
	}
	if r.MaxHoursPerDay <= 0 {
		r.MaxHoursPerDay = DefaultMaxHoursPerDay
	}
	r.Exceptions = slices.Clone(r.Exceptions)
	s.resources[r.Name] = &r
	s.resOrder = append(s.resOrder, r.Name)
	return nil
}

// UpdateResource replaces resource name with r. A rename is carried into
// every task assignment. It returns the ids of tasks whose assignments
// changed.
func (s *Store) UpdateResource(name string, r Resource) ([]int, error) {
	cur, ok := s.resources[name]
	if !ok {
		return nil, resourceNotFound(name)
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return nil, errors.NewValidationError("resource name is required").WithField("name")
	}
	if r.Name != name {
		if _, exists := s.resources[r.Name]; exists {
			return nil, errors.NewAlreadyExistsError("resource", r.Name)
		}
	}
	if r.MaxHoursPerDay <= 0 {
		r.MaxHoursPerDay = DefaultMaxHoursPerDay
	}

	*cur = Resource{Name: r.Name, MaxHoursPerDay: r.MaxHoursPerDay, Exceptions: slices.Clone(r.Exceptions)}
	if r.Name == name {
		return nil, nil
	}

	delete(s.resources, name)
	s.resources[r.Name] = cur
	s.resOrder[slices.Index(s.resOrder, name)] = r.Name

	var touched []int
	for _, t := range s.Tasks() {
		changed := false
		for i := range t.Resources {
			if t.Resources[i].ResourceName == name {
				t.Resources[i].ResourceName = r.Name
				changed = true
			}
		}
		if changed {
			touched = append(touched, t.ID)
		}
	}
	return touched, nil
}

// DeleteResource removes a resource and strips it from every task. It
// returns the ids of tasks that lost an assignment.
func (s *Store) DeleteResource(name string) ([]int, error) {
	if _, ok := s.resources[name]; !ok {
		return nil, resourceNotFound(name)
	}
	delete(s.resources, name)
	s.resOrder = removeName(s.resOrder, name)

	var touched []int
	for _, t := range s.Tasks() {
		n := len(t.Resources)
		t.Resources = slices.DeleteFunc(t.Resources, func(a Assignment) bool { return a.ResourceName == name })
		if len(t.Resources) != n {
			touched = append(touched, t.ID)
		}
	}
	return touched, nil
}

// Resource returns the live resource with the given name.
func (s *Store) Resource(name string) (*Resource, bool) {
	r, ok := s.resources[name]
	return r, ok
}

// Resources returns resources in insertion order.
func (s *Store) Resources() []*Resource {
	out := make([]*Resource, 0, len(s.resOrder))
	for _, name := range s.resOrder {
		out = append(out, s.resources[name])
	}
	return out
}

func removeName(names []string, name string) []string {
	if i := slices.Index(names, name); i >= 0 {
		return slices.Delete(names, i, i+1)
	}
	return names
}
