package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Iron-Ham/plancast/internal/cmd/analysis"
	"github.com/Iron-Ham/plancast/internal/testutil"
	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// setupTestEnvironment isolates the config directory and viper state.
func setupTestEnvironment(t *testing.T) string {
	t.Helper()
	dir := testutil.IsolateConfig(t)
	t.Cleanup(func() {
		cfgFile = ""
		_ = rootCmd.PersistentFlags().Set("config", "")
	})
	return dir
}

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	expected := []string{"schedule", "critical", "forecast", "workload", "validate", "watch", "config"}
	commands := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		commands[c.Name()] = true
	}
	for _, name := range expected {
		if !commands[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}

	for _, flag := range []string{"config", "log-level", "log"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag --%s", flag)
		}
	}
}

func TestRoot(t *testing.T) {
	if Root() != rootCmd {
		t.Error("Root() should return the root command")
	}
}

func TestConfigFlag(t *testing.T) {
	dir := setupTestEnvironment(t)
	cfgPath := testutil.WriteFile(t, dir, "custom.yaml", "forecast:\n  iterations: 321\n")

	out, err := executeCommand(rootCmd, "--config", cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "Config file: "+cfgPath) {
		t.Errorf("expected the custom config to be used:\n%s", out)
	}
	if !strings.Contains(out, "iterations: 321") {
		t.Errorf("expected the custom value:\n%s", out)
	}
}

func TestValidateThroughRoot(t *testing.T) {
	setupTestEnvironment(t)
	project := testutil.WriteProject(t, testutil.LaunchProject)

	out, err := executeCommand(rootCmd, "validate", project)
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Status: VALID") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestScheduleThroughRoot_ReportedError(t *testing.T) {
	setupTestEnvironment(t)
	project := testutil.WriteProject(t, testutil.BrokenProject)

	_, err := executeCommand(rootCmd, "schedule", project)
	if !analysis.IsReported(err) {
		t.Errorf("expected a reported error, got %v", err)
	}
}
