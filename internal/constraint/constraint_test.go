package constraint

import (
	"fmt"
	"testing"
	"time"

	"github.com/Iron-Ham/plancast/internal/calendar"
	"github.com/Iron-Ham/plancast/internal/graph"
)

// Week of Monday 2025-03-03.
func at(day, hour int) time.Time {
	return time.Date(2025, time.March, day, hour, 0, 0, 0, time.UTC)
}

func TestRules_Constraint(t *testing.T) {
	r := New(calendar.Default())
	task := Endpoint{Start: at(3, 8), End: at(5, 16)}
	early := Endpoint{Start: at(3, 8), End: at(5, 10)}
	milestone := Endpoint{Start: at(5, 10), End: at(5, 10), Milestone: true}
	lateMilestone := Endpoint{Start: at(5, 16), End: at(5, 16), Milestone: true}

	tests := []struct {
		name          string
		pred          Endpoint
		dep           graph.Predecessor
		succMilestone bool
		want          time.Time
		wantEndsAt    bool
	}{
		{"FS rolls to next morning", task, graph.Predecessor{Type: graph.FinishToStart}, false, at(6, 8), false},
		{"FS rolls even when finishing early", early, graph.Predecessor{Type: graph.FinishToStart}, false, at(6, 8), false},
		{"FS with lag", task, graph.Predecessor{Type: graph.FinishToStart, LagDays: 2}, false, at(10, 8), false},
		{"FS with negative lag", task, graph.Predecessor{Type: graph.FinishToStart, LagDays: -1}, false, at(5, 8), false},
		{"FS from milestone stays on its day", milestone, graph.Predecessor{Type: graph.FinishToStart}, false, at(5, 10), false},
		{"FS from late milestone rolls", lateMilestone, graph.Predecessor{Type: graph.FinishToStart}, false, at(6, 8), false},
		{"FS into milestone lands on the finish", task, graph.Predecessor{Type: graph.FinishToStart}, true, at(5, 16), false},
		{"FS into milestone with lag", task, graph.Predecessor{Type: graph.FinishToStart, LagDays: 2}, true, at(7, 16), false},
		{"FS into milestone with negative lag", task, graph.Predecessor{Type: graph.FinishToStart, LagDays: -1}, true, at(4, 16), false},
		{"FS late milestone into milestone", lateMilestone, graph.Predecessor{Type: graph.FinishToStart}, true, at(5, 16), false},
		{"SS", task, graph.Predecessor{Type: graph.StartToStart, LagDays: 1}, false, at(4, 8), false},
		{"FF", task, graph.Predecessor{Type: graph.FinishToFinish, LagDays: 1}, false, at(6, 16), true},
		{"SF", task, graph.Predecessor{Type: graph.StartToFinish, LagDays: 5}, false, at(10, 8), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, endsAt, err := r.Constraint(tt.pred, tt.dep, tt.succMilestone)
			if err != nil {
				t.Fatalf("Constraint() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Constraint() = %v, want %v", got, tt.want)
			}
			if endsAt != tt.wantEndsAt {
				t.Errorf("Constraint() constrainsEnd = %v, want %v", endsAt, tt.wantEndsAt)
			}
		})
	}
}

func TestRules_Duration(t *testing.T) {
	r := New(calendar.Default())
	tests := []struct {
		name string
		task *graph.Task
		want int
	}{
		{"three days", &graph.Task{Start: at(3, 8), End: at(5, 16)}, 3},
		{"across weekend", &graph.Task{Start: at(7, 8), End: at(10, 16)}, 2},
		{"weekend only", &graph.Task{Start: at(8, 8), End: at(9, 16)}, 1},
		{"milestone", &graph.Task{Start: at(3, 8), End: at(3, 8), IsMilestone: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Duration(tt.task); got != tt.want {
				t.Errorf("Duration() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRules_EndAndStartFromDuration(t *testing.T) {
	r := New(calendar.Default())

	end, err := r.EndFromDuration(at(6, 8), 3)
	if err != nil {
		t.Fatalf("EndFromDuration() error = %v", err)
	}
	if want := at(10, 16); !end.Equal(want) {
		t.Errorf("EndFromDuration() = %v, want %v", end, want)
	}

	start, err := r.StartFromDuration(end, 3)
	if err != nil {
		t.Fatalf("StartFromDuration() error = %v", err)
	}
	if want := at(6, 8); !start.Equal(want) {
		t.Errorf("StartFromDuration() = %v, want %v", start, want)
	}

	if got, _ := r.EndFromDuration(at(6, 10), 0); !got.Equal(at(6, 10)) {
		t.Errorf("EndFromDuration(0) = %v, want start", got)
	}
}

func TestRules_LatestFinishInvertsConstraint(t *testing.T) {
	r := New(calendar.Default())
	pred := Endpoint{Start: at(3, 8), End: at(5, 16)}
	const dur = 3

	tests := []struct {
		dep           graph.Predecessor
		succMilestone bool
	}{
		{graph.Predecessor{Type: graph.FinishToStart}, false},
		{graph.Predecessor{Type: graph.FinishToStart, LagDays: 2}, false},
		{graph.Predecessor{Type: graph.FinishToStart, LagDays: -1}, false},
		{graph.Predecessor{Type: graph.FinishToStart}, true},
		{graph.Predecessor{Type: graph.FinishToStart, LagDays: -1}, true},
		{graph.Predecessor{Type: graph.StartToStart, LagDays: 1}, false},
		{graph.Predecessor{Type: graph.FinishToFinish, LagDays: 1}, false},
		{graph.Predecessor{Type: graph.StartToFinish, LagDays: 4}, false},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("%s lag %d milestone %v", tt.dep.Type, tt.dep.LagDays, tt.succMilestone)
		t.Run(name, func(t *testing.T) {
			c, endsAt, err := r.Constraint(pred, tt.dep, tt.succMilestone)
			if err != nil {
				t.Fatalf("Constraint() error = %v", err)
			}
			// A successor sitting exactly on the constraint leaves the
			// predecessor no room to slip.
			succ := Endpoint{Start: c, End: c, Milestone: tt.succMilestone}
			if endsAt {
				succ.Start = at(3, 8)
			}
			lf, err := r.LatestFinish(pred, dur, succ, tt.dep)
			if err != nil {
				t.Fatalf("LatestFinish() error = %v", err)
			}
			if !calendar.SameDate(lf, pred.End) {
				t.Errorf("LatestFinish() = %v, want date of %v", lf, pred.End)
			}
		})
	}
}

func TestRules_Offset(t *testing.T) {
	r := New(calendar.Default())
	tests := []struct {
		a, b time.Time
		want int
	}{
		{at(3, 8), at(3, 16), 0},
		{at(3, 8), at(5, 8), 2},
		{at(5, 8), at(3, 8), -2},
		{at(7, 8), at(10, 8), 1},
		{at(8, 8), at(10, 8), 1},
	}
	for _, tt := range tests {
		if got := r.Offset(tt.a, tt.b); got != tt.want {
			t.Errorf("Offset(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestBounds_Fold(t *testing.T) {
	var b Bounds
	b.Fold(at(4, 8), false)
	b.Fold(at(6, 8), false)
	b.Fold(at(5, 8), false)
	b.Fold(at(7, 16), true)

	if !b.HasStart || !b.Start.Equal(at(6, 8)) {
		t.Errorf("Start = %v, want %v", b.Start, at(6, 8))
	}
	if !b.HasEnd || !b.End.Equal(at(7, 16)) {
		t.Errorf("End = %v, want %v", b.End, at(7, 16))
	}
}
