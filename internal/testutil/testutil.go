// Package testutil provides shared fixtures for plancast tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/plancast/internal/config"
	"github.com/spf13/viper"
)

// LaunchProject runs Monday 3 March 2025 to Tuesday 11 March on the
// default calendar with Friday 7 March off. Design (2 days) and Implement
// (3 days, after Design) sit under the Build summary; Ship is a milestone
// after Implement.
const LaunchProject = `name: Launch
calendar:
  holidays:
    - name: Founders day
      start: 2025-03-07
resources:
  - name: Alice
  - name: Bob
    max_hours_per_day: 4
tasks:
  - id: 1
    name: Build
  - id: 2
    name: Design
    parent: 1
    start: 2025-03-03
    end: 2025-03-04
    resources:
      - name: Alice
  - id: 3
    name: Implement
    parent: 1
    start: 2025-03-03
    end: 2025-03-05
    predecessors:
      - task: 2
    resources:
      - name: Bob
        allocation: 50
  - id: 4
    name: Ship
    milestone: true
    start: 2025-03-03
    predecessors:
      - task: 3
`

// BrokenProject has one validation error: a predecessor that does not
// exist.
const BrokenProject = `name: Broken
tasks:
  - id: 1
    name: Design
    start: 2025-03-03
    end: 2025-03-04
    predecessors:
      - task: 9
`

// At returns the given hour of a day in March 2025, in UTC.
func At(day, hour int) time.Time {
	return time.Date(2025, time.March, day, hour, 0, 0, 0, time.UTC)
}

// WriteProject writes doc to project.yaml in a fresh temp directory and
// returns its path.
func WriteProject(t *testing.T, doc string) string {
	t.Helper()
	return WriteFile(t, t.TempDir(), "project.yaml", doc)
}

// WriteFile writes content to dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// IsolateConfig points the config directory at a temp dir and resets viper
// to the defaults with colored output off. It returns the config directory.
// Viper is reset again when the test ends.
func IsolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("NO_COLOR", "1")
	viper.Reset()
	config.SetDefaults()
	viper.Set("output.color", false)
	t.Cleanup(viper.Reset)
	return filepath.Join(dir, "plancast")
}
