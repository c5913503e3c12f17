package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/plancast/internal/config"
	"github.com/Iron-Ham/plancast/internal/forecast"
	"github.com/Iron-Ham/plancast/internal/logging"
	"github.com/Iron-Ham/plancast/internal/projectfile"
	"github.com/Iron-Ham/plancast/internal/testutil"
	"github.com/Iron-Ham/plancast/internal/workload"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	testutil.IsolateConfig(t)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScheduleCmd(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	out, err := execute(t, newScheduleCmd(), path)
	if err != nil {
		t.Fatalf("schedule error = %v\n%s", err, out)
	}

	for _, want := range []string{
		"Launch",
		"WBS",
		"2025-03-03 08:00", // Design start
		"2025-03-10 16:00", // Implement end, after the holiday, and Ship
		"◆",
		"4 of 4 tasks shown",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "  Design") {
		t.Errorf("expected child tasks to be indented:\n%s", out)
	}
}

func TestScheduleCmd_Filter(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	out, err := execute(t, newScheduleCmd(), path, "--filter", "Des*")
	if err != nil {
		t.Fatalf("schedule error = %v", err)
	}
	if !strings.Contains(out, "Design") {
		t.Errorf("filtered output missing Design:\n%s", out)
	}
	if strings.Contains(out, "Implement") {
		t.Errorf("filtered output should not contain Implement:\n%s", out)
	}
	if !strings.Contains(out, "1 of 4 tasks shown") {
		t.Errorf("expected footer count:\n%s", out)
	}
}

func TestScheduleCmd_FilterByWBS(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	out, err := execute(t, newScheduleCmd(), path, "--filter", "1.*", "--json")
	if err != nil {
		t.Fatalf("schedule error = %v", err)
	}
	var views []taskView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("got %d tasks, want 2 (1.1 and 1.2)", len(views))
	}
	if views[0].Name != "Design" || views[1].Name != "Implement" {
		t.Errorf("got %q, %q; want Design, Implement", views[0].Name, views[1].Name)
	}
	if views[1].WorkingDays != 3 {
		t.Errorf("Implement working days = %d, want 3", views[1].WorkingDays)
	}
	if !views[1].Critical {
		t.Error("Implement should be critical")
	}
}

func TestScheduleCmd_InvalidFilter(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	_, err := execute(t, newScheduleCmd(), path, "--filter", "[")
	if err == nil || !strings.Contains(err.Error(), "--filter") {
		t.Errorf("expected --filter error, got %v", err)
	}
}

func TestScheduleCmd_Write(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	dest := filepath.Join(t.TempDir(), "scheduled.yaml")
	out, err := execute(t, newScheduleCmd(), path, "--write", dest)
	if err != nil {
		t.Fatalf("schedule error = %v", err)
	}
	if !strings.Contains(out, "written to "+dest) {
		t.Errorf("expected write confirmation:\n%s", out)
	}

	f, err := projectfile.Load(dest)
	if err != nil {
		t.Fatalf("Load(written) error = %v", err)
	}
	if len(f.Tasks) != 4 {
		t.Fatalf("written file has %d tasks, want 4", len(f.Tasks))
	}
	for _, task := range f.Tasks {
		if task.ID == 3 && task.End != "2025-03-10T16:00" {
			t.Errorf("Implement end = %q, want 2025-03-10T16:00", task.End)
		}
	}
}

func TestScheduleCmd_ValidationErrors(t *testing.T) {
	path := testutil.WriteProject(t, testutil.BrokenProject)
	out, err := execute(t, newScheduleCmd(), path)
	if !IsReported(err) {
		t.Fatalf("expected a reported error, got %v", err)
	}
	if !strings.Contains(out, "predecessors") {
		t.Errorf("expected the validation message to be printed:\n%s", out)
	}
}

func TestScheduleCmd_MissingFile(t *testing.T) {
	_, err := execute(t, newScheduleCmd(), filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if IsReported(err) {
		t.Error("a missing file has not been reported yet")
	}
}

func TestCriticalCmd(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	out, err := execute(t, newCriticalCmd(), path)
	if err != nil {
		t.Fatalf("critical error = %v", err)
	}
	if !strings.Contains(out, "Design → Implement → Ship") {
		t.Errorf("expected the critical chain:\n%s", out)
	}
	if !strings.Contains(out, "Finish: 2025-03-10 16:00") {
		t.Errorf("expected the project finish:\n%s", out)
	}
	if strings.Contains(out, "Build") {
		t.Errorf("summary tasks should not be listed:\n%s", out)
	}
}

func TestCriticalCmd_JSON(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	out, err := execute(t, newCriticalCmd(), path, "--json")
	if err != nil {
		t.Fatalf("critical error = %v", err)
	}
	var res struct {
		CriticalPath []int `json:"critical_path"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	want := []int{2, 3, 4}
	if len(res.CriticalPath) != len(want) {
		t.Fatalf("critical_path = %v, want %v", res.CriticalPath, want)
	}
	for i := range want {
		if res.CriticalPath[i] != want[i] {
			t.Fatalf("critical_path = %v, want %v", res.CriticalPath, want)
		}
	}
}

func TestForecastCmd_JSON(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	out, err := execute(t, newForecastCmd(), path, "--json", "-n", "200", "--seed", "7", "--workers", "2", "--top", "2")
	if err != nil {
		t.Fatalf("forecast error = %v", err)
	}
	var res forecast.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if res.Iterations != 200 {
		t.Errorf("iterations = %d, want 200", res.Iterations)
	}
	if res.Seed != 7 {
		t.Errorf("seed = %d, want 7", res.Seed)
	}
	if res.P50.After(res.P90) {
		t.Errorf("P50 %v after P90 %v", res.P50, res.P90)
	}
	if len(res.Drivers) > 2 {
		t.Errorf("got %d drivers, want at most 2", len(res.Drivers))
	}
}

func TestForecastCmd_UsesConfig(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	testutil.IsolateConfig(t)
	cmd := newForecastCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path, "--json"})
	viper.Set("forecast.iterations", 30)
	viper.Set("forecast.seed", 99)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("forecast error = %v", err)
	}
	var res forecast.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if res.Iterations != 30 || res.Seed != 99 {
		t.Errorf("got %d iterations seed %d, want 30 and 99", res.Iterations, res.Seed)
	}
}

func TestForecastCmd_Text(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	out, err := execute(t, newForecastCmd(), path, "-n", "50", "--seed", "1")
	if err != nil {
		t.Fatalf("forecast error = %v", err)
	}
	for _, want := range []string{"Planned  2025-03-10 16:00", "P50", "P80", "P90", "50 iterations, seed 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestForecastCmd_RejectsZeroIterations(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	_, err := execute(t, newForecastCmd(), path, "-n", "0")
	if err == nil || !strings.Contains(err.Error(), "--iterations") {
		t.Errorf("expected --iterations error, got %v", err)
	}
}

func TestWorkloadCmd(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	out, err := execute(t, newWorkloadCmd(), path)
	if err != nil {
		t.Fatalf("workload error = %v", err)
	}
	for _, want := range []string{"Allocation", "Alice", "Bob"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWorkloadCmd_JSON(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	out, err := execute(t, newWorkloadCmd(), path, "--json")
	if err != nil {
		t.Fatalf("workload error = %v", err)
	}
	var rep workload.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(rep.Allocations) != 2 {
		t.Fatalf("got %d allocations, want 2", len(rep.Allocations))
	}
	if rep.Allocations[0].Resource != "Alice" || rep.Allocations[0].Tasks != 1 {
		t.Errorf("allocations[0] = %+v, want Alice with 1 task", rep.Allocations[0])
	}
}

func TestValidateCmd(t *testing.T) {
	path := testutil.WriteProject(t, testutil.LaunchProject)
	out, err := execute(t, newValidateCmd(), path)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "Status: VALID") {
		t.Errorf("expected VALID:\n%s", out)
	}
	if !strings.Contains(out, "Tasks: 4, Resources: 2") {
		t.Errorf("expected counts:\n%s", out)
	}
}

func TestValidateCmd_Invalid(t *testing.T) {
	path := testutil.WriteProject(t, testutil.BrokenProject)
	out, err := execute(t, newValidateCmd(), path)
	if !IsReported(err) {
		t.Fatalf("expected a reported error, got %v", err)
	}
	if !strings.Contains(out, "Status: INVALID") {
		t.Errorf("expected INVALID:\n%s", out)
	}
	if !strings.Contains(out, "Errors: 1") {
		t.Errorf("expected one error:\n%s", out)
	}
}

func TestValidateCmd_JSON(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantValid bool
		wantParse bool
	}{
		{name: "valid", doc: testutil.LaunchProject, wantValid: true},
		{name: "invalid", doc: testutil.BrokenProject},
		{name: "unparsable", doc: "tasks: [\n", wantParse: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteProject(t, tt.doc)
			out, err := execute(t, newValidateCmd(), "--json", path)
			if tt.wantValid && err != nil {
				t.Fatalf("validate error = %v", err)
			}
			if !tt.wantValid && !IsReported(err) {
				t.Fatalf("expected a reported error, got %v", err)
			}

			var got ValidationOutput
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("invalid JSON: %v\n%s", err, out)
			}
			if got.Valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", got.Valid, tt.wantValid)
			}
			if (got.ParseError != "") != tt.wantParse {
				t.Errorf("parse_error = %q", got.ParseError)
			}
			if !tt.wantValid && !tt.wantParse {
				if got.ErrorCount != 1 || len(got.Messages) == 0 || got.Messages[0].Severity != "error" {
					t.Errorf("unexpected messages: %+v", got)
				}
			}
		})
	}
}

func TestWatchLoop_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "project.yaml")
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(target, []byte(testutil.LaunchProject), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	changed := make(chan struct{}, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchLoop(ctx, w, target, 100*time.Millisecond, logging.NopLogger(), func() {
			calls.Add(1)
			changed <- struct{}{}
		})
	}()

	if err := os.WriteFile(other, []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if err := os.WriteFile(target, []byte(testutil.LaunchProject), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("onChange was not called")
	}
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("onChange called %d times, want 1", n)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchLoop did not stop on cancel")
	}
}

func TestWatchLoop_StopsWhenWatcherCloses(t *testing.T) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchLoop(context.Background(), w, "/nonexistent", time.Millisecond, logging.NopLogger(), func() {})
	}()
	_ = w.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchLoop did not return after Close")
	}
}

func TestRendererTable_FitsWidth(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out, config.OutputConfig{DateFormat: time.DateOnly})
	r.width = 30
	r.table([]string{"ID", "Task"}, [][]string{{"1", strings.Repeat("x", 60)}}, 1, nil)
	for line := range strings.SplitSeq(strings.TrimRight(out.String(), "\n"), "\n") {
		if n := len([]rune(line)); n > 30 {
			t.Errorf("line %q is %d wide, want <= 30", line, n)
		}
	}
}
