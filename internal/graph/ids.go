package graph

// IDAllocator hands out task ids. Ids increase monotonically and are never
// reused, even after the task holding one is deleted.
type IDAllocator struct {
	next int
}

// NewIDAllocator returns an allocator whose first id is 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

// Next returns a fresh id.
func (a *IDAllocator) Next() int {
	id := a.next
	a.next++
	return id
}

// Peek returns the id Next would return without consuming it.
func (a *IDAllocator) Peek() int {
	return a.next
}

// Observe records an externally chosen id so later allocations skip past it.
func (a *IDAllocator) Observe(id int) {
	if id >= a.next {
		a.next = id + 1
	}
}
