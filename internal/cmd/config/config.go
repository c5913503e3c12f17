// Package config provides CLI commands for managing plancast configuration.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	appconfig "github.com/Iron-Ham/plancast/internal/config"
	"github.com/Iron-Ham/plancast/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

// keyKinds maps every settable key to how its value is parsed.
var keyKinds = map[string]string{
	"calendar.working_days": "days",
	"calendar.work_start":   "string",
	"calendar.work_end":     "string",
	"schedule.propagation":  "propagation",
	"schedule.max_passes":   "int",
	"forecast.iterations":   "int",
	"forecast.workers":      "int",
	"forecast.seed":         "uint",
	"forecast.top_drivers":  "int",
	"logging.enabled":       "bool",
	"logging.level":         "level",
	"logging.dir":           "string",
	"output.date_format":    "string",
	"output.color":          "bool",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or modify plancast configuration",
		Long: `View or modify plancast configuration.

Without arguments, shows the effective configuration.
Use subcommands to modify settings or create a config file.`,
		RunE: runConfigShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE:  runConfigShow,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  plancast config set forecast.iterations 5000
  plancast config set calendar.working_days 0,1,2,3
  plancast config set schedule.propagation fixed-point

Valid keys:
  calendar.working_days  - Working weekdays, 0 = Monday .. 6 = Sunday, comma separated
  calendar.work_start    - Daily work window start (HH:MM)
  calendar.work_end      - Daily work window end (HH:MM)
  schedule.propagation   - Dependency propagation: single-pass, fixed-point
  schedule.max_passes    - Pass limit for fixed-point propagation
  forecast.iterations    - Monte Carlo iterations per forecast
  forecast.workers       - Forecast goroutines, 0 = one per CPU
  forecast.seed          - Random seed, 0 = time based
  forecast.top_drivers   - Number of risk drivers reported
  logging.enabled        - Write a JSON debug log (true/false)
  logging.level          - Log level: debug, info, warn, error
  logging.dir            - Log directory
  output.date_format     - Go time layout for printed dates
  output.color           - Colored terminal output (true/false)`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default config file",
		Long:  `Create a default config file at ~/.config/plancast/config.yaml with all available options.`,
		RunE:  runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		RunE:  runConfigPath,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open config file in your editor",
		Long: `Open the config file in your preferred editor.

Uses $EDITOR environment variable, or falls back to common editors (vim, nano, vi).
If no config file exists, creates one with default values first.`,
		RunE: runConfigEdit,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset [key]",
		Short: "Reset configuration to defaults",
		Long: `Reset configuration values to their defaults.

Without arguments, resets all configuration to defaults.
With a key argument, resets only that specific key.

Examples:
  plancast config reset                      # Reset all to defaults
  plancast config reset forecast.iterations  # Reset only forecast.iterations`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConfigReset,
	})

	return cmd
}

// Register adds all config-related commands to the given parent command.
// This is the main entry point for integrating the config subpackage with
// the root command.
func Register(parent *cobra.Command) {
	parent.AddCommand(newConfigCmd())
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if _, err := appconfig.Load(); err != nil {
		fmt.Fprintf(out, "Warning: configuration is invalid, commands will fail: %v\n\n", err)
	}

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "Config file: (none - using defaults)")
	}
	fmt.Fprintln(out)

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	kind, ok := keyKinds[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'plancast config set --help' to see valid keys", key)
	}

	typed, err := parseValue(key, kind, value)
	if err != nil {
		return err
	}

	// Reject values the rest of the configuration cannot work with, and put
	// the old value back so the written file stays valid.
	previous := viper.Get(key)
	viper.Set(key, typed)
	if _, err := appconfig.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typed)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

// parseValue converts a command-line value to the type stored under key.
func parseValue(key, kind, value string) (any, error) {
	switch kind {
	case "propagation":
		if !slices.Contains(appconfig.ValidPropagationModes(), value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidPropagationModes(), ", "))
		}
		return value, nil
	case "level":
		if !slices.Contains(logging.ValidLevels(), strings.ToLower(value)) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(logging.ValidLevels(), ", "))
		}
		return strings.ToLower(value), nil
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	case "uint":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected a non-negative integer", key)
		}
		return n, nil
	case "days":
		var days []int
		for part := range strings.SplitSeq(value, ",") {
			d, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("invalid value for %s: %q is not a weekday number", key, part)
			}
			days = append(days, d)
		}
		return days, nil
	}
	return value, nil
}

// writeConfig saves viper's settings to the active config file, or to the
// default path when none was read.
func writeConfig() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = appconfig.ConfigFile()
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

// configTemplate is the commented file written by config init.
const configTemplate = `# Plancast Configuration
# See: https://github.com/Iron-Ham/plancast

# Default project calendar. A project file's calendar section overrides
# these values field by field.
calendar:
  # Working weekdays, 0 = Monday .. 6 = Sunday
  working_days: [0, 1, 2, 3, 4]
  # Daily work window as HH:MM. An end earlier than the start wraps midnight.
  work_start: "08:00"
  work_end: "16:00"

# Dependency propagation
schedule:
  # single-pass: successors are moved once per change
  # fixed-point: passes repeat until no task moves
  propagation: single-pass
  # Upper bound on fixed-point passes
  max_passes: 16

# Monte Carlo completion forecast
forecast:
  # Simulated schedules per run
  iterations: 1000
  # Worker goroutines, 0 = one per CPU
  workers: 0
  # Random seed for reproducible runs, 0 = time based
  seed: 0
  # Number of risk drivers to report
  top_drivers: 5

# Debug logging
logging:
  # Write a JSON log file
  enabled: false
  # debug, info, warn or error
  level: info
  # Log directory, empty = ~/.config/plancast/logs
  dir: ""

# Terminal output
output:
  # Go time layout for printed dates
  date_format: "2006-01-02 15:04"
  # Colored output when writing to a terminal (NO_COLOR also disables it)
  color: true
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()
	force, _ := cmd.Flags().GetBool("force")

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil && !force {
		return fmt.Errorf("config file already exists at %s\nUse 'plancast config set' to modify values, or --force to overwrite", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize plancast's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else if _, err := os.Stat(configFile); err == nil {
		fmt.Fprintf(out, "Default path: %s\n", configFile)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", configFile)
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_FORECAST_ITERATIONS)\n", appconfig.EnvPrefix, appconfig.EnvPrefix)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()
	out := cmd.OutOrStdout()

	// Check if config file exists, if not create it
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintln(out, "Config file doesn't exist, creating with defaults...")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
	}

	editor := findEditor()
	if editor == "" {
		return fmt.Errorf("no editor found. Set $EDITOR environment variable")
	}

	// Open the editor
	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = out
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	fmt.Fprintf(out, "Config file saved: %s\n", configFile)
	return nil
}

func findEditor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	if editor := os.Getenv("VISUAL"); editor != "" {
		return editor
	}
	// Try common editors
	for _, e := range []string{"vim", "nano", "vi"} {
		if _, err := execLookPath(e); err == nil {
			return e
		}
	}
	return ""
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	defaults := appconfig.Default()
	out := cmd.OutOrStdout()

	// Map of keys to their default values
	defaultValues := map[string]any{
		"calendar.working_days": defaults.Calendar.WorkingDays,
		"calendar.work_start":   defaults.Calendar.WorkStart,
		"calendar.work_end":     defaults.Calendar.WorkEnd,
		"schedule.propagation":  defaults.Schedule.Propagation,
		"schedule.max_passes":   defaults.Schedule.MaxPasses,
		"forecast.iterations":   defaults.Forecast.Iterations,
		"forecast.workers":      defaults.Forecast.Workers,
		"forecast.seed":         defaults.Forecast.Seed,
		"forecast.top_drivers":  defaults.Forecast.TopDrivers,
		"logging.enabled":       defaults.Logging.Enabled,
		"logging.level":         defaults.Logging.Level,
		"logging.dir":           defaults.Logging.Dir,
		"output.date_format":    defaults.Output.DateFormat,
		"output.color":          defaults.Output.Color,
	}

	if len(args) == 0 {
		// Reset all values
		for key, value := range defaultValues {
			viper.Set(key, value)
		}
		fmt.Fprintln(out, "Reset all configuration to defaults.")
	} else {
		// Reset specific key
		key := args[0]
		value, ok := defaultValues[key]
		if !ok {
			return fmt.Errorf("unknown configuration key: %s\nRun 'plancast config set --help' to see valid keys", key)
		}
		viper.Set(key, value)
		fmt.Fprintf(out, "Reset %s to default: %v\n", key, value)
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}
