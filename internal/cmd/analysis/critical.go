package analysis

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

type criticalOptions struct {
	json bool
	all  bool
}

func newCriticalCmd() *cobra.Command {
	opts := &criticalOptions{}
	cmd := &cobra.Command{
		Use:   "critical <project-file>",
		Short: "Show the critical path and task slack",
		Long: `Run critical path analysis on a project file.

Lists early and late dates with the slack of each task, then the chain of
critical tasks that determines the project finish. By default only
critical tasks are listed; --all includes tasks with slack.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCritical(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "output the analysis as JSON")
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "list every task, not only critical ones")
	return cmd
}

// RegisterCriticalCmd registers the critical command with the given parent command.
func RegisterCriticalCmd(parent *cobra.Command) {
	parent.AddCommand(newCriticalCmd())
}

func runCritical(cmd *cobra.Command, path string, opts *criticalOptions) error {
	s, err := openProject(cmd, path)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.engine.CriticalPath()
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(s.out.w, res)
	}

	r := s.out
	store := s.engine.Store()
	var rows [][]string
	var critical []bool
	for _, sc := range res.Tasks {
		if t, ok := store.Task(sc.TaskID); ok && t.IsSummary {
			continue
		}
		if !opts.all && !sc.Critical {
			continue
		}
		rows = append(rows, []string{
			strconv.Itoa(sc.TaskID),
			sc.Name,
			r.date(sc.EarlyStart),
			r.date(sc.EarlyFinish),
			r.date(sc.LateStart),
			r.date(sc.LateFinish),
			strconv.Itoa(sc.SlackDays),
		})
		critical = append(critical, sc.Critical)
	}

	r.titlef("Critical path")
	r.blank()
	if len(rows) == 0 {
		r.linef("No tasks scheduled.")
		return nil
	}
	r.table([]string{"ID", "Task", "Early start", "Early finish", "Late start", "Late finish", "Slack"}, rows, 1,
		func(i int) (lipgloss.Style, bool) {
			if critical[i] {
				return r.critical, true
			}
			return lipgloss.Style{}, false
		})

	r.blank()
	names := make([]string, 0, len(res.CriticalPath))
	for _, id := range res.CriticalPath {
		if t, ok := store.Task(id); ok {
			names = append(names, t.Name)
		}
	}
	if len(names) > 0 {
		r.linef("Path:   %s", r.paint(r.critical, strings.Join(names, " → ")))
	}
	r.linef("Finish: %s", r.date(res.ProjectFinish))
	return nil
}
