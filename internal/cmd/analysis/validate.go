package analysis

import (
	"fmt"

	"github.com/Iron-Ham/plancast/internal/config"
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/projectfile"
	"github.com/spf13/cobra"
)

type validateOptions struct {
	json bool
}

func newValidateCmd() *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate <project-file>",
		Short: "Validate a project file without scheduling it",
		Long: `Check a project file for structural problems.

This command checks:
  - YAML syntax and unknown fields
  - Calendar settings, holidays and resource exceptions
  - Required task fields, dates and completion percentages
  - References to missing parents, predecessors and resources
  - Dependency cycles and parent cycles

The exit code indicates the result:
  0 - File is valid (may have warnings)
  1 - File has validation errors or could not be parsed

Examples:
  plancast validate launch.yaml
  plancast validate --json launch.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "output validation result as JSON")
	return cmd
}

// RegisterValidateCmd registers the validate command with the given parent command.
func RegisterValidateCmd(parent *cobra.Command) {
	parent.AddCommand(newValidateCmd())
}

// ValidationOutput represents the JSON output format for validation results.
type ValidationOutput struct {
	Valid        bool            `json:"valid"`
	FilePath     string          `json:"file_path"`
	Tasks        int             `json:"tasks"`
	ErrorCount   int             `json:"error_count"`
	WarningCount int             `json:"warning_count"`
	InfoCount    int             `json:"info_count"`
	Messages     []messageOutput `json:"messages,omitempty"`
	ParseError   string          `json:"parse_error,omitempty"`
}

type messageOutput struct {
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	TaskID     int    `json:"task_id,omitempty"`
	Field      string `json:"field,omitempty"`
	RelatedIDs []int  `json:"related_ids,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func runValidate(cmd *cobra.Command, path string, opts *validateOptions) error {
	// Validation does not need a usable configuration, only its output settings.
	out := newRenderer(cmd.OutOrStdout(), config.Get().Output)

	f, err := projectfile.Load(path)
	if err != nil {
		if opts.json {
			return emitValidation(out, ValidationOutput{FilePath: path, ParseError: err.Error()})
		}
		return err
	}

	msgs := projectfile.Validate(f)
	result := ValidationOutput{
		Valid:    !projectfile.HasErrors(msgs),
		FilePath: path,
		Tasks:    len(f.Tasks),
	}
	for _, m := range msgs {
		switch {
		case m.Severity >= errors.SeverityError:
			result.ErrorCount++
		case m.Severity == errors.SeverityWarning:
			result.WarningCount++
		default:
			result.InfoCount++
		}
		result.Messages = append(result.Messages, messageOutput{
			Severity:   m.Severity.String(),
			Message:    m.Message,
			TaskID:     m.TaskID,
			Field:      m.Field,
			RelatedIDs: m.RelatedIDs,
			Suggestion: m.Suggestion,
		})
	}

	if opts.json {
		return emitValidation(out, result)
	}

	out.linef("Validating: %s", path)
	out.linef("  Tasks: %d, Resources: %d", len(f.Tasks), len(f.Resources))
	out.blank()
	if result.Valid {
		out.linef("Status: %s", out.paint(out.ok, "VALID"))
	} else {
		out.linef("Status: %s", out.paint(out.fail, "INVALID"))
	}
	if len(msgs) > 0 {
		out.linef("  Errors: %d, Warnings: %d, Info: %d",
			result.ErrorCount, result.WarningCount, result.InfoCount)
		out.blank()
		out.messages(msgs)
	}

	if !result.Valid {
		return &reportedError{msg: fmt.Sprintf("validation failed with %d error(s)", result.ErrorCount)}
	}
	return nil
}

// emitValidation prints the result as JSON. An invalid result returns a
// reportedError so the exit code is 1.
func emitValidation(out *renderer, result ValidationOutput) error {
	if err := writeJSON(out.w, result); err != nil {
		return err
	}
	if !result.Valid {
		return &reportedError{msg: "validation failed"}
	}
	return nil
}
