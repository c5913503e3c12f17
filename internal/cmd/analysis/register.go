// Package analysis provides the CLI commands that load a project file and
// report on it: schedule, critical, forecast, workload, validate and watch.
package analysis

import "github.com/spf13/cobra"

// Register adds all project analysis commands to the given parent command.
// This is the main entry point for integrating the analysis subpackage with
// the root command.
func Register(parent *cobra.Command) {
	RegisterScheduleCmd(parent)
	RegisterCriticalCmd(parent)
	RegisterForecastCmd(parent)
	RegisterWorkloadCmd(parent)
	RegisterValidateCmd(parent)
	RegisterWatchCmd(parent)
}
