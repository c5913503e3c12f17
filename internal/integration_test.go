// Package internal contains integration tests that verify the packages work
// together: a project file is built into an engine, edited, analyzed and
// forecast while the event bus reports every step.
package internal

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/plancast/internal/config"
	"github.com/Iron-Ham/plancast/internal/engine"
	"github.com/Iron-Ham/plancast/internal/event"
	"github.com/Iron-Ham/plancast/internal/forecast"
	"github.com/Iron-Ham/plancast/internal/logging"
	"github.com/Iron-Ham/plancast/internal/projectfile"
	"github.com/Iron-Ham/plancast/internal/testutil"
)

// recorder collects every event published on a bus.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) record(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) take() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func types(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventType()
	}
	return out
}

func TestProjectLifecycle(t *testing.T) {
	f, err := projectfile.Decode(strings.NewReader(testutil.LaunchProject))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	logger := logging.NopLogger()
	bus := event.NewBus(logger)
	rec := &recorder{}
	bus.SubscribeAll(rec.record)

	e, err := projectfile.Build(f, config.Default(), engine.Options{Bus: bus, Logger: logger})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := types(rec.take()); !slices.Equal(got, []string{event.TypeSchedulePropagated}) {
		t.Fatalf("load events = %v, want one %s", got, event.TypeSchedulePropagated)
	}

	// Lengthen Design by a day; Implement and Ship follow.
	design, _ := e.Store().Task(2)
	edit := design.Clone()
	edit.End = testutil.At(5, 16)
	if err := e.UpdateTask(2, edit); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	implement, _ := e.Store().Task(3)
	if !implement.Start.Equal(testutil.At(6, 8)) || !implement.End.Equal(testutil.At(11, 16)) {
		t.Errorf("Implement = %v to %v, want Thu 6 08:00 to Tue 11 16:00", implement.Start, implement.End)
	}
	ship, _ := e.Store().Task(4)
	if !ship.Start.Equal(testutil.At(11, 16)) {
		t.Errorf("Ship = %v, want Tue 11 16:00", ship.Start)
	}

	events := rec.take()
	if got := types(events); !slices.Equal(got, []string{event.TypeTaskUpdated, event.TypeSchedulePropagated}) {
		t.Fatalf("edit events = %v", got)
	}
	prop := events[1].(event.SchedulePropagatedEvent)
	if prop.SeedID != 2 || !slices.Contains(prop.ChangedIDs, 3) || !slices.Contains(prop.ChangedIDs, 4) {
		t.Errorf("propagation = %+v, want seed 2 moving 3 and 4", prop)
	}

	res, err := e.CriticalPath()
	if err != nil {
		t.Fatalf("CriticalPath() error = %v", err)
	}
	if !slices.Equal(res.CriticalPath, []int{2, 3, 4}) {
		t.Errorf("critical path = %v, want [2 3 4]", res.CriticalPath)
	}
	cp := rec.take()
	if len(cp) != 1 || cp[0].EventType() != event.TypeCriticalPathUpdated {
		t.Fatalf("analysis events = %v", types(cp))
	}
	if !cp[0].(event.CriticalPathEvent).ProjectFinish.Equal(res.ProjectFinish) {
		t.Error("critical path event should carry the project finish")
	}

	fc, err := e.Forecast(context.Background(), forecast.Options{Iterations: 200, Workers: 2, Seed: 3})
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if fc.P50.After(fc.P90) || fc.Min.After(fc.Max) {
		t.Errorf("inconsistent forecast: %+v", fc)
	}
	fe := rec.take()
	if len(fe) != 1 || fe[0].EventType() != event.TypeForecastCompleted {
		t.Fatalf("forecast events = %v", types(fe))
	}
	if ev := fe[0].(event.ForecastEvent); ev.RunID != fc.RunID || ev.Error != "" {
		t.Errorf("forecast event = %+v", ev)
	}

	rep, err := e.Workload()
	if err != nil {
		t.Fatalf("Workload() error = %v", err)
	}
	if len(rep.Allocations) != 2 || rep.Allocations[0].Resource != "Alice" {
		t.Errorf("allocations = %+v", rep.Allocations)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	f, err := projectfile.Decode(strings.NewReader(testutil.LaunchProject))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	e, err := projectfile.Build(f, nil, engine.Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var sb strings.Builder
	if err := projectfile.Encode(&sb, projectfile.FromEngine(f.Name, e)); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	again, err := projectfile.Decode(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("re-Decode() error = %v\n%s", err, sb.String())
	}
	e2, err := projectfile.Build(again, nil, engine.Options{})
	if err != nil {
		t.Fatalf("re-Build() error = %v", err)
	}

	for _, task := range e.Store().Tasks() {
		other, ok := e2.Store().Task(task.ID)
		if !ok {
			t.Errorf("task %d lost in round trip", task.ID)
			continue
		}
		if !other.Start.Equal(task.Start) || !other.End.Equal(task.End) {
			t.Errorf("task %d: %v-%v after round trip, want %v-%v",
				task.ID, other.Start, other.End, task.Start, task.End)
		}
	}
}
