package analysis

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/Iron-Ham/plancast/internal/forecast"
	"github.com/spf13/cobra"
)

type forecastOptions struct {
	iterations int
	seed       uint64
	workers    int
	top        int
	json       bool
}

func newForecastCmd() *cobra.Command {
	opts := &forecastOptions{}
	cmd := &cobra.Command{
		Use:   "forecast <project-file>",
		Short: "Forecast the completion date with a Monte Carlo simulation",
		Long: `Simulate the project many times with varied task durations and report
the distribution of completion dates.

Each simulated duration is drawn from a triangular distribution between
75% and 125% of the planned duration. The report lists the P50, P80 and
P90 completion dates and the tasks that most often drove the finish.

Flags override the forecast section of the configuration. Interrupting a
run with Ctrl+C stops it cleanly.

Examples:
  plancast forecast launch.yaml
  plancast forecast launch.yaml -n 10000 --seed 42 --workers 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(cmd, args[0], opts)
		},
	}
	cmd.Flags().IntVarP(&opts.iterations, "iterations", "n", 0, "number of simulated schedules")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed for a reproducible run (0 = time based)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "worker goroutines (0 = one per CPU)")
	cmd.Flags().IntVar(&opts.top, "top", 0, "number of risk drivers to list")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output the forecast as JSON")
	return cmd
}

// RegisterForecastCmd registers the forecast command with the given parent command.
func RegisterForecastCmd(parent *cobra.Command) {
	parent.AddCommand(newForecastCmd())
}

func runForecast(cmd *cobra.Command, path string, opts *forecastOptions) error {
	s, err := openProject(cmd, path)
	if err != nil {
		return err
	}
	defer s.Close()

	fo := forecast.Options{
		Iterations: s.cfg.Forecast.Iterations,
		Workers:    s.cfg.Forecast.Workers,
		Seed:       s.cfg.Forecast.Seed,
		TopDrivers: s.cfg.Forecast.TopDrivers,
	}
	flags := cmd.Flags()
	if flags.Changed("iterations") {
		fo.Iterations = opts.iterations
	}
	if flags.Changed("seed") {
		fo.Seed = opts.seed
	}
	if flags.Changed("workers") {
		fo.Workers = opts.workers
	}
	if flags.Changed("top") {
		fo.TopDrivers = opts.top
	}
	if fo.Iterations < 1 {
		return fmt.Errorf("--iterations must be at least 1, got %d", fo.Iterations)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := s.engine.Forecast(ctx, fo)
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(s.out.w, res)
	}

	r := s.out
	r.titlef("Completion forecast")
	r.linef("%s", r.paint(r.muted, fmt.Sprintf("%d iterations, seed %d, run %s", res.Iterations, res.Seed, res.RunID)))
	r.blank()
	r.linef("Planned  %s", r.date(res.Baseline))
	r.linef("P50      %s", r.date(res.P50))
	r.linef("P80      %s", r.paint(r.warning, r.date(res.P80)))
	r.linef("P90      %s", r.paint(r.critical, r.date(res.P90)))
	r.blank()
	r.linef("Mean     %s  (σ %.1f days)", r.date(res.Mean), res.StdDevDays)
	r.linef("Range    %s to %s", r.date(res.Min), r.date(res.Max))

	if len(res.Drivers) == 0 {
		return nil
	}
	r.blank()
	r.titlef("Risk drivers")
	rows := make([][]string, len(res.Drivers))
	for i, d := range res.Drivers {
		rows[i] = []string{
			strconv.Itoa(d.TaskID),
			d.Name,
			strconv.Itoa(d.Count),
			fmt.Sprintf("%.0f%%", d.Frequency*100),
		}
	}
	r.table([]string{"ID", "Task", "Runs", "Frequency"}, rows, 1, nil)
	return nil
}
