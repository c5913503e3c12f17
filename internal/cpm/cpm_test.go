package cpm

import (
	"slices"
	"testing"
	"time"

	"github.com/Iron-Ham/plancast/internal/calendar"
	"github.com/Iron-Ham/plancast/internal/graph"
	"github.com/Iron-Ham/plancast/internal/schedule"
)

func at(day, hour int) time.Time {
	return time.Date(2025, time.March, day, hour, 0, 0, 0, time.UTC)
}

type fixture struct {
	store *graph.Store
	cal   *calendar.Calendar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{store: graph.NewStore(), cal: calendar.Default()}
}

func (f *fixture) add(t *testing.T, name string, start, end time.Time, preds ...graph.Predecessor) int {
	t.Helper()
	id, err := f.store.AddTask(&graph.Task{Name: name, Start: start, End: end, Predecessors: preds}, 0)
	if err != nil {
		t.Fatalf("AddTask(%q) error = %v", name, err)
	}
	return id
}

// settle places every task the way the scheduler would before analysis.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	if _, err := schedule.New(f.store, f.cal, schedule.Options{}).RescheduleAll(); err != nil {
		t.Fatalf("RescheduleAll() error = %v", err)
	}
}

func (f *fixture) analyze(t *testing.T) *Result {
	t.Helper()
	res, err := Analyze(f.store, f.cal)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	return res
}

func fs(id int) graph.Predecessor {
	return graph.Predecessor{TaskID: id, Type: graph.FinishToStart}
}

func TestAnalyze_LinearChain(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, "A", at(3, 8), at(5, 16))
	b := f.add(t, "B", at(3, 8), at(3, 16), fs(a))
	f.settle(t)

	res := f.analyze(t)
	sa, _ := res.Schedule(a)
	sb, _ := res.Schedule(b)

	if !sb.EarlyStart.Equal(at(6, 8)) || !sb.EarlyFinish.Equal(at(6, 16)) {
		t.Errorf("B early = %v .. %v, want Thu 08:00 .. 16:00", sb.EarlyStart, sb.EarlyFinish)
	}
	if !sa.LateFinish.Equal(at(5, 16)) || !sa.LateStart.Equal(at(3, 8)) {
		t.Errorf("A late = %v .. %v, want Mon 08:00 .. Wed 16:00", sa.LateStart, sa.LateFinish)
	}
	if !res.ProjectFinish.Equal(at(6, 16)) {
		t.Errorf("ProjectFinish = %v, want %v", res.ProjectFinish, at(6, 16))
	}
	if !slices.Equal(res.Critical, []int{a, b}) {
		t.Errorf("Critical = %v, want [%d %d]", res.Critical, a, b)
	}
	if !slices.Equal(res.CriticalPath, []int{a, b}) {
		t.Errorf("CriticalPath = %v, want [%d %d]", res.CriticalPath, a, b)
	}

	task, _ := f.store.Task(b)
	if !task.CPM.IsCritical || !task.CPM.EarlyStart.Equal(sb.EarlyStart) {
		t.Errorf("task CPM fields not annotated: %+v", task.CPM)
	}
}

// A feeds a three-day B and a one-day C, both feeding D. C has two days of
// slack.
func diamond(t *testing.T) (*fixture, [4]int) {
	t.Helper()
	f := newFixture(t)
	a := f.add(t, "A", at(3, 8), at(3, 16))
	b := f.add(t, "B", at(3, 8), at(5, 16), fs(a))
	c := f.add(t, "C", at(3, 8), at(3, 16), fs(a))
	d := f.add(t, "D", at(3, 8), at(3, 16), fs(b), fs(c))
	f.settle(t)
	return f, [4]int{a, b, c, d}
}

func TestAnalyze_Slack(t *testing.T) {
	f, ids := diamond(t)
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]
	res := f.analyze(t)

	sc, _ := res.Schedule(c)
	if sc.SlackDays != 2 {
		t.Errorf("C SlackDays = %d, want 2", sc.SlackDays)
	}
	if sc.Slack != 48*time.Hour {
		t.Errorf("C Slack = %v, want 48h", sc.Slack)
	}
	if sc.Critical {
		t.Error("C should not be critical")
	}
	if !sc.LateStart.Equal(at(6, 8)) || !sc.LateFinish.Equal(at(6, 16)) {
		t.Errorf("C late = %v .. %v, want Thu 08:00 .. 16:00", sc.LateStart, sc.LateFinish)
	}

	if !slices.Equal(res.Critical, []int{a, b, d}) {
		t.Errorf("Critical = %v, want [%d %d %d]", res.Critical, a, b, d)
	}
	if !slices.Equal(res.CriticalPath, []int{a, b, d}) {
		t.Errorf("CriticalPath = %v, want [%d %d %d]", res.CriticalPath, a, b, d)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	f, _ := diamond(t)
	first := f.analyze(t)
	second := f.analyze(t)

	if len(first.Tasks) != len(second.Tasks) {
		t.Fatalf("task count changed: %d vs %d", len(first.Tasks), len(second.Tasks))
	}
	for i := range first.Tasks {
		if first.Tasks[i] != second.Tasks[i] {
			t.Errorf("task %d: %+v != %+v", first.Tasks[i].TaskID, first.Tasks[i], second.Tasks[i])
		}
	}
}

func TestAnalyze_ZeroSlackTasksLieOnSourceToSinkPaths(t *testing.T) {
	f, _ := diamond(t)
	res := f.analyze(t)

	hasPreds := func(id int) bool {
		task, _ := f.store.Task(id)
		return len(task.Predecessors) > 0
	}
	// Walk back along zero-slack predecessors to a source and forward along
	// zero-slack successors to a sink.
	for _, s := range res.Tasks {
		if s.Slack != 0 {
			continue
		}
		cur := s.TaskID
		for hasPreds(cur) {
			task, _ := f.store.Task(cur)
			next := 0
			for _, p := range task.Predecessors {
				if ps, _ := res.Schedule(p.TaskID); ps.Slack == 0 {
					next = p.TaskID
				}
			}
			if next == 0 {
				t.Fatalf("task %d: no zero-slack predecessor from %d", s.TaskID, cur)
			}
			cur = next
		}
		cur = s.TaskID
		for succ := f.store.Successors(cur); len(succ) > 0; succ = f.store.Successors(cur) {
			next := 0
			for _, n := range succ {
				if ns, _ := res.Schedule(n.ID); ns.Slack == 0 {
					next = n.ID
				}
			}
			if next == 0 {
				t.Fatalf("task %d: no zero-slack successor from %d", s.TaskID, cur)
			}
			cur = next
		}
	}
}

func TestAnalyze_NegativeLag(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, "A", at(3, 8), at(5, 16))
	b := f.add(t, "B", at(3, 8), at(3, 16), graph.Predecessor{TaskID: a, Type: graph.FinishToStart, LagDays: -1})
	f.settle(t)
	res := f.analyze(t)

	sb, _ := res.Schedule(b)
	if !sb.EarlyStart.Equal(at(5, 8)) {
		t.Errorf("B EarlyStart = %v, want %v", sb.EarlyStart, at(5, 8))
	}
	for _, id := range []int{a, b} {
		if s, _ := res.Schedule(id); s.Slack > 0 || !s.Critical {
			t.Errorf("task %d slack = %v critical = %v, want <= 0 and critical", id, s.Slack, s.Critical)
		}
	}
}

func TestAnalyze_MilestoneAtFinish(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, "A", at(3, 8), at(4, 16))
	id, err := f.store.AddTask(&graph.Task{Name: "done", Start: at(3, 8), IsMilestone: true, Predecessors: []graph.Predecessor{fs(a)}}, 0)
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	f.settle(t)
	res := f.analyze(t)

	sm, _ := res.Schedule(id)
	if !sm.EarlyStart.Equal(at(4, 16)) || !sm.EarlyFinish.Equal(sm.EarlyStart) {
		t.Errorf("milestone early = %v .. %v, want Tue 16:00 both", sm.EarlyStart, sm.EarlyFinish)
	}
	if !sm.Critical || !sm.LateStart.Equal(sm.LateFinish) {
		t.Errorf("milestone late = %v .. %v critical = %v", sm.LateStart, sm.LateFinish, sm.Critical)
	}
	if !res.ProjectFinish.Equal(at(4, 16)) {
		t.Errorf("ProjectFinish = %v, want the predecessor's finish %v", res.ProjectFinish, at(4, 16))
	}
	sa, _ := res.Schedule(a)
	if !sa.Critical || !sa.LateFinish.Equal(at(4, 16)) {
		t.Errorf("A late finish = %v critical = %v, want Tue 16:00 and critical", sa.LateFinish, sa.Critical)
	}
	if !slices.Equal(res.CriticalPath, []int{a, id}) {
		t.Errorf("CriticalPath = %v, want [%d %d]", res.CriticalPath, a, id)
	}
}

func TestAnalyze_OtherDependencyTypes(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, "A", at(3, 8), at(5, 16))
	ss := f.add(t, "SS", at(3, 8), at(4, 16), graph.Predecessor{TaskID: a, Type: graph.StartToStart, LagDays: 1})
	ff := f.add(t, "FF", at(3, 8), at(4, 16), graph.Predecessor{TaskID: a, Type: graph.FinishToFinish, LagDays: 2})
	f.settle(t)
	res := f.analyze(t)

	sss, _ := res.Schedule(ss)
	if !sss.EarlyStart.Equal(at(4, 8)) || !sss.EarlyFinish.Equal(at(5, 16)) {
		t.Errorf("SS early = %v .. %v, want Tue 08:00 .. Wed 16:00", sss.EarlyStart, sss.EarlyFinish)
	}
	sff, _ := res.Schedule(ff)
	if !sff.EarlyFinish.Equal(at(7, 16)) || !sff.Critical {
		t.Errorf("FF early finish = %v critical = %v, want Fri 16:00 and critical", sff.EarlyFinish, sff.Critical)
	}
	// FF drives the finish, so A is critical through it.
	if sa, _ := res.Schedule(a); !sa.Critical {
		t.Errorf("A slack = %v, want critical", sa.Slack)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	res, err := Analyze(graph.NewStore(), calendar.Default())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Tasks) != 0 || res.CriticalPath != nil {
		t.Errorf("Analyze(empty) = %+v, want empty result", res)
	}
}
