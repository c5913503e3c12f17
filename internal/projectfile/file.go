// Package projectfile reads plancast project files.
//
// A project file is YAML with four sections: the project name, an optional
// calendar that overrides the configured defaults, the resource list and
// the task list. Decode only checks the shape of the document; Validate
// reports semantic problems such as dangling references and cycles; Build
// turns a valid File into a scheduled engine.Engine.
//
// Dates are written as "2006-01-02" or "2006-01-02T15:04" and are read in
// UTC. A date-only start falls on the work window start of that day and a
// date-only end on its work window end.
package projectfile

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DateTimeLayout is the layout for a task date with a time of day.
const DateTimeLayout = "2006-01-02T15:04"

// DefaultAllocation applies to task resources listed without an allocation.
const DefaultAllocation = 100

// File is a decoded project file.
type File struct {
	Name      string     `yaml:"name"`
	Calendar  *Calendar  `yaml:"calendar,omitempty"`
	Resources []Resource `yaml:"resources,omitempty"`
	Tasks     []Task     `yaml:"tasks"`
}

// Calendar overrides the configured calendar. Empty fields keep the
// configured value.
type Calendar struct {
	WorkingDays  []int     `yaml:"working_days,omitempty"`
	WorkStart    string    `yaml:"work_start,omitempty"`
	WorkEnd      string    `yaml:"work_end,omitempty"`
	ProjectStart string    `yaml:"project_start,omitempty"`
	ProjectEnd   string    `yaml:"project_end,omitempty"`
	Holidays     []Holiday `yaml:"holidays,omitempty"`
}

// Holiday is a non-working date range. End may be omitted for a single day.
type Holiday struct {
	Name      string `yaml:"name"`
	Start     string `yaml:"start"`
	End       string `yaml:"end,omitempty"`
	Comment   string `yaml:"comment,omitempty"`
	Recurring bool   `yaml:"recurring,omitempty"`
}

// Resource is a person or asset tasks can be assigned to.
type Resource struct {
	Name           string   `yaml:"name"`
	MaxHoursPerDay float64  `yaml:"max_hours_per_day,omitempty"`
	Exceptions     []string `yaml:"exceptions,omitempty"`
}

// Task is one entry of the task list. Parent 0 means top level.
type Task struct {
	ID              int          `yaml:"id"`
	Name            string       `yaml:"name"`
	Start           string       `yaml:"start"`
	End             string       `yaml:"end,omitempty"`
	PercentComplete int          `yaml:"percent_complete,omitempty"`
	Milestone       bool         `yaml:"milestone,omitempty"`
	Schedule        string       `yaml:"schedule,omitempty"`
	Parent          int          `yaml:"parent,omitempty"`
	Notes           string       `yaml:"notes,omitempty"`
	Predecessors    []Dependency `yaml:"predecessors,omitempty"`
	Resources       []Assignment `yaml:"resources,omitempty"`
}

// Dependency is an incoming edge. Type defaults to FS and Lag is in working
// days; a negative lag is a lead.
type Dependency struct {
	Task int    `yaml:"task"`
	Type string `yaml:"type,omitempty"`
	Lag  int    `yaml:"lag,omitempty"`
}

// Assignment links a resource to a task. A nil Allocation means
// DefaultAllocation.
type Assignment struct {
	Name       string `yaml:"name"`
	Allocation *int   `yaml:"allocation,omitempty"`
}

// Percent returns the allocation percentage.
func (a Assignment) Percent() int {
	if a.Allocation == nil {
		return DefaultAllocation
	}
	return *a.Allocation
}

// Decode reads a project file from r. Unknown keys are rejected so that a
// misspelled field is not silently ignored.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("parsing project file: document is empty")
		}
		return nil, fmt.Errorf("parsing project file: %w", err)
	}
	return &f, nil
}

// Load reads and decodes the project file at path.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}
	defer fh.Close()

	return Decode(fh)
}

// Encode writes f as YAML.
func Encode(w io.Writer, f *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding project file: %w", err)
	}
	return enc.Close()
}

// parseDate parses a task or calendar date. dateOnly reports whether the
// value carried no time of day.
func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, time.UTC); err == nil {
		return t, true, nil
	}
	if t, err := time.ParseInLocation(DateTimeLayout, s, time.UTC); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q (want YYYY-MM-DD or YYYY-MM-DDTHH:MM)", s)
}
