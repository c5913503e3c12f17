package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/workload"
	"github.com/spf13/cobra"
)

type workloadOptions struct {
	json bool
}

func newWorkloadCmd() *cobra.Command {
	opts := &workloadOptions{}
	cmd := &cobra.Command{
		Use:   "workload <project-file>",
		Short: "Report resource allocation and over-allocation",
		Long: `Total the hours assigned to each resource and list every working day on
which a resource is booked beyond its daily limit.

Days listed as exceptions for a resource are not counted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "output the report as JSON")
	return cmd
}

// RegisterWorkloadCmd registers the workload command with the given parent command.
func RegisterWorkloadCmd(parent *cobra.Command) {
	parent.AddCommand(newWorkloadCmd())
}

func runWorkload(cmd *cobra.Command, path string, opts *workloadOptions) error {
	s, err := openProject(cmd, path)
	if err != nil {
		return err
	}
	defer s.Close()

	rep, err := s.engine.Workload()
	if rep == nil {
		return err
	}
	if err != nil {
		if errors.GetSeverity(err) > errors.SeverityWarning {
			return err
		}
		s.out.warn(err.Error())
	}
	if opts.json {
		return writeJSON(s.out.w, rep)
	}
	renderWorkload(s.out, rep)
	return nil
}

func renderWorkload(r *renderer, rep *workload.Report) {
	r.titlef("Allocation")
	r.blank()
	if len(rep.Allocations) == 0 {
		r.linef("No resources assigned.")
		return
	}
	rows := make([][]string, len(rep.Allocations))
	for i, a := range rep.Allocations {
		rows[i] = []string{
			a.Resource,
			fmt.Sprintf("%.1f", a.Hours),
			strconv.Itoa(a.Tasks),
			fmt.Sprintf("%g", a.MaxHoursPerDay),
		}
	}
	r.table([]string{"Resource", "Hours", "Tasks", "Max h/day"}, rows, 0, nil)

	r.blank()
	if len(rep.Overallocations) == 0 {
		r.linef("%s", r.paint(r.ok, "No over-allocations."))
		return
	}
	r.titlef("Over-allocated days")
	r.blank()
	rows = make([][]string, len(rep.Overallocations))
	for i, o := range rep.Overallocations {
		ids := make([]string, len(o.TaskIDs))
		for j, id := range o.TaskIDs {
			ids[j] = strconv.Itoa(id)
		}
		rows[i] = []string{
			o.Resource,
			o.Date.Format("2006-01-02"),
			fmt.Sprintf("%.1f", o.Hours),
			fmt.Sprintf("%g", o.Limit),
			strings.Join(ids, ", "),
		}
	}
	r.table([]string{"Resource", "Date", "Hours", "Limit", "Tasks"}, rows, 4, nil)
}
