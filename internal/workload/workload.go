// Package workload reports how much work is assigned to each resource and
// on which days a resource is booked beyond its daily limit.
//
// Hours are measured on the project calendar with the resource's own
// exception dates removed. Summary tasks are skipped since their children
// carry the assignments that matter; milestones have no duration.
package workload

import (
	"cmp"
	"slices"
	"time"

	"github.com/Iron-Ham/plancast/internal/calendar"
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/graph"
)

// tolerance absorbs float noise when comparing hours against a limit.
const tolerance = 1e-9

// Allocation is the total assigned work of one resource.
type Allocation struct {
	Resource       string  `json:"resource"`
	MaxHoursPerDay float64 `json:"max_hours_per_day"`
	Hours          float64 `json:"hours"`
	Tasks          int     `json:"tasks"`
	TaskIDs        []int   `json:"task_ids"`
}

// Overallocation is a working day on which a resource's booked hours exceed
// its limit.
type Overallocation struct {
	Resource string    `json:"resource"`
	Date     time.Time `json:"date"`
	Hours    float64   `json:"hours"`
	Limit    float64   `json:"limit"`
	TaskIDs  []int     `json:"task_ids"`
}

// Report bundles both views.
type Report struct {
	Allocations     []Allocation     `json:"allocations"`
	Overallocations []Overallocation `json:"overallocations"`
}

type assignment struct {
	task    *graph.Task
	percent float64
}

// booking groups a resource with its calendar view and assignments.
type booking struct {
	res   *graph.Resource
	cal   *calendar.Calendar
	tasks []assignment
}

// collect resolves every resource's calendar and assignments in resource
// insertion order. Malformed exception entries are skipped and returned as
// a joined warning alongside the bookings.
func collect(store *graph.Store, cal *calendar.Calendar) ([]booking, error) {
	var (
		out  []booking
		errs []error
	)
	byName := make(map[string]int)
	for _, r := range store.Resources() {
		ex, err := calendar.ParseExceptions(r.Exceptions)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "resource %s", r.Name))
		}
		byName[r.Name] = len(out)
		out = append(out, booking{res: r, cal: cal.WithExceptions(ex)})
	}

	for _, t := range store.Tasks() {
		if t.IsSummary || t.IsMilestone {
			continue
		}
		for _, a := range t.Resources {
			i, ok := byName[a.ResourceName]
			if !ok || a.Allocation <= 0 {
				continue
			}
			out[i].tasks = append(out[i].tasks, assignment{task: t, percent: float64(a.Allocation) / 100})
		}
	}
	return out, errors.Join(errs...)
}

// Allocations returns the assigned hours of every resource: for each task,
// the working hours between its start and end on the resource's calendar,
// scaled by the allocation percentage.
func Allocations(store *graph.Store, cal *calendar.Calendar) ([]Allocation, error) {
	bookings, err := collect(store, cal)
	return allocations(bookings), err
}

func allocations(bookings []booking) []Allocation {
	out := make([]Allocation, 0, len(bookings))
	for _, b := range bookings {
		a := Allocation{Resource: b.res.Name, MaxHoursPerDay: b.res.MaxHoursPerDay}
		for _, as := range b.tasks {
			a.Hours += b.cal.WorkingHoursBetween(as.task.Start, as.task.End) * as.percent
			a.TaskIDs = append(a.TaskIDs, as.task.ID)
		}
		a.Tasks = len(a.TaskIDs)
		out = append(out, a)
	}
	return out
}

// Overallocations returns the days on which a resource is booked for more
// than its MaxHoursPerDay, sorted by resource name and then date. Each
// assigned task contributes a full working day times its allocation on
// every working date it spans.
func Overallocations(store *graph.Store, cal *calendar.Calendar) ([]Overallocation, error) {
	bookings, err := collect(store, cal)
	return overallocations(bookings, cal.HoursPerDay()), err
}

func overallocations(bookings []booking, hoursPerDay float64) []Overallocation {
	var out []Overallocation
	for _, b := range bookings {
		type day struct {
			date  time.Time
			hours float64
			tasks []int
		}
		days := make(map[string]*day)
		for _, as := range b.tasks {
			last := calendar.DateOf(as.task.End)
			for d := calendar.DateOf(as.task.Start); !d.After(last); d = d.AddDate(0, 0, 1) {
				if !b.cal.IsWorkingDay(d) {
					continue
				}
				key := d.Format(time.DateOnly)
				cur, ok := days[key]
				if !ok {
					cur = &day{date: d}
					days[key] = cur
				}
				cur.hours += hoursPerDay * as.percent
				cur.tasks = append(cur.tasks, as.task.ID)
			}
		}
		for _, d := range days {
			if d.hours > b.res.MaxHoursPerDay+tolerance {
				out = append(out, Overallocation{
					Resource: b.res.Name,
					Date:     d.date,
					Hours:    d.hours,
					Limit:    b.res.MaxHoursPerDay,
					TaskIDs:  d.tasks,
				})
			}
		}
	}
	slices.SortFunc(out, func(a, b Overallocation) int {
		return cmp.Or(cmp.Compare(a.Resource, b.Resource), a.Date.Compare(b.Date))
	})
	return out
}

// Analyze returns both allocations and over-allocations.
func Analyze(store *graph.Store, cal *calendar.Calendar) (*Report, error) {
	bookings, err := collect(store, cal)
	return &Report{
		Allocations:     allocations(bookings),
		Overallocations: overallocations(bookings, cal.HoursPerDay()),
	}, err
}
