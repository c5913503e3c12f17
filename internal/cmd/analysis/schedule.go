package analysis

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/plancast/internal/graph"
	"github.com/Iron-Ham/plancast/internal/projectfile"
	"github.com/charmbracelet/lipgloss"
	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
)

type scheduleOptions struct {
	filter string
	json   bool
	write  string
}

func newScheduleCmd() *cobra.Command {
	opts := &scheduleOptions{}
	cmd := &cobra.Command{
		Use:   "schedule <project-file>",
		Short: "Schedule a project and list its tasks",
		Long: `Schedule a project file and list every task with its computed dates.

Tasks on the critical path are highlighted. --filter keeps only tasks
whose name or WBS number matches a glob pattern; --write saves the
rescheduled project back as YAML.

Examples:
  plancast schedule launch.yaml
  plancast schedule launch.yaml --filter 'Design*'
  plancast schedule launch.yaml --filter '2.*' --json
  plancast schedule launch.yaml --write launch.scheduled.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "only show tasks whose name or WBS matches this glob")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output tasks as JSON")
	cmd.Flags().StringVarP(&opts.write, "write", "w", "", "write the rescheduled project to this file")
	return cmd
}

// RegisterScheduleCmd registers the schedule command with the given parent command.
func RegisterScheduleCmd(parent *cobra.Command) {
	parent.AddCommand(newScheduleCmd())
}

// taskView is the JSON shape of one scheduled task.
type taskView struct {
	ID              int       `json:"id"`
	WBS             string    `json:"wbs"`
	Name            string    `json:"name"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	WorkingDays     int       `json:"working_days"`
	PercentComplete int       `json:"percent_complete"`
	Milestone       bool      `json:"milestone,omitempty"`
	Summary         bool      `json:"summary,omitempty"`
	Critical        bool      `json:"critical"`
	ParentID        int       `json:"parent_id,omitempty"`
	level           int
}

func runSchedule(cmd *cobra.Command, path string, opts *scheduleOptions) error {
	var match glob.Glob
	if opts.filter != "" {
		g, err := glob.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid --filter pattern %q: %w", opts.filter, err)
		}
		match = g
	}

	s, err := openProject(cmd, path)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.engine.CriticalPath(); err != nil {
		return err
	}
	views := scheduleViews(s, match)

	if opts.write != "" {
		if err := writeProject(s, opts.write); err != nil {
			return err
		}
	}

	if opts.json {
		return writeJSON(s.out.w, views)
	}

	r := s.out
	name := s.file.Name
	if name == "" {
		name = path
	}
	r.titlef("%s", name)
	r.blank()

	rows := make([][]string, len(views))
	for i, v := range views {
		days := strconv.Itoa(v.WorkingDays)
		if v.Milestone {
			days = "◆"
		}
		crit := ""
		if v.Critical {
			crit = "*"
		}
		rows[i] = []string{
			v.WBS,
			strconv.Itoa(v.ID),
			strings.Repeat("  ", v.level) + v.Name,
			r.date(v.Start),
			r.date(v.End),
			days,
			strconv.Itoa(v.PercentComplete) + "%",
			crit,
		}
	}
	r.table([]string{"WBS", "ID", "Task", "Start", "End", "Days", "Done", "Crit"}, rows, 2,
		func(i int) (lipgloss.Style, bool) {
			switch {
			case views[i].Critical:
				return r.critical, true
			case views[i].Summary:
				return lipgloss.NewStyle().Bold(true), true
			}
			return lipgloss.Style{}, false
		})

	r.blank()
	store := s.engine.Store()
	start, _ := store.ProjectStart()
	end, _ := store.ProjectEnd()
	r.linef("%d of %d tasks shown. Project runs %s to %s, %.0f%% complete.",
		len(views), store.Len(), r.date(start), r.date(end), store.OverallCompletion())
	if opts.write != "" {
		r.linef("Rescheduled project written to %s", opts.write)
	}
	return nil
}

// scheduleViews lists tasks in WBS order, keeping those that match.
func scheduleViews(s *session, match glob.Glob) []taskView {
	store := s.engine.Store()
	cal := s.engine.Calendar()

	var views []taskView
	var walk func(tasks []*graph.Task)
	walk = func(tasks []*graph.Task) {
		for _, t := range tasks {
			if match == nil || match.Match(t.Name) || match.Match(t.WBS) {
				days := 0
				if !t.IsMilestone {
					days = cal.WorkingDaysBetween(t.Start, t.End)
				}
				views = append(views, taskView{
					ID:              t.ID,
					WBS:             t.WBS,
					Name:            t.Name,
					Start:           t.Start,
					End:             t.End,
					WorkingDays:     days,
					PercentComplete: t.PercentComplete,
					Milestone:       t.IsMilestone,
					Summary:         t.IsSummary,
					Critical:        t.CPM.IsCritical,
					ParentID:        t.ParentID,
					level:           store.Level(t.ID),
				})
			}
			walk(store.Children(t.ID))
		}
	}
	walk(store.TopLevel())
	return views
}

func writeProject(s *session, path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing project: %w", err)
	}
	if err := projectfile.Encode(fh, projectfile.FromEngine(s.file.Name, s.engine)); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
