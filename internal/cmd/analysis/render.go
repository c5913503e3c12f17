package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/plancast/internal/config"
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/projectfile"
	"github.com/Iron-Ham/plancast/internal/util"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	okColor      = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
)

// defaultWidth is used when the output is not a terminal.
const defaultWidth = 120

// minFlexWidth is the narrowest a shrinkable column gets.
const minFlexWidth = 12

const columnGap = "  "

// renderer writes command output, styled when it goes to a color terminal.
type renderer struct {
	w          io.Writer
	color      bool
	width      int
	dateFormat string

	title    lipgloss.Style
	header   lipgloss.Style
	critical lipgloss.Style
	ok       lipgloss.Style
	warning  lipgloss.Style
	fail     lipgloss.Style
	muted    lipgloss.Style
}

func newRenderer(w io.Writer, oc config.OutputConfig) *renderer {
	r := &renderer{
		w:          w,
		width:      defaultWidth,
		dateFormat: oc.DateFormat,
	}
	if r.dateFormat == "" {
		r.dateFormat = config.Default().Output.DateFormat
	}

	tty := false
	if f, ok := w.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			tty = true
			if width, _, err := term.GetSize(fd); err == nil && width > 0 {
				r.width = width
			}
		}
	}
	r.color = oc.Color && tty && os.Getenv("NO_COLOR") == ""

	r.title = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	r.header = lipgloss.NewStyle().Bold(true).Underline(true)
	r.critical = lipgloss.NewStyle().Foreground(errorColor)
	r.ok = lipgloss.NewStyle().Foreground(okColor)
	r.warning = lipgloss.NewStyle().Foreground(warningColor)
	r.fail = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	r.muted = lipgloss.NewStyle().Foreground(mutedColor)
	return r
}

// paint applies style only when color output is enabled.
func (r *renderer) paint(style lipgloss.Style, s string) string {
	if !r.color {
		return s
	}
	return style.Render(s)
}

func (r *renderer) date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(r.dateFormat)
}

func (r *renderer) titlef(format string, args ...any) {
	fmt.Fprintln(r.w, r.paint(r.title, fmt.Sprintf(format, args...)))
}

func (r *renderer) linef(format string, args ...any) {
	fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *renderer) blank() {
	fmt.Fprintln(r.w)
}

func (r *renderer) warn(msg string) {
	fmt.Fprintln(r.w, r.paint(r.warning, "warning: "+msg))
}

// messages prints validation messages, errors first.
func (r *renderer) messages(msgs []projectfile.ValidationMessage) {
	for _, sev := range []errors.Severity{errors.SeverityError, errors.SeverityWarning, errors.SeverityInfo} {
		for _, m := range msgs {
			if m.Severity != sev {
				continue
			}
			style := r.muted
			switch sev {
			case errors.SeverityError:
				style = r.fail
			case errors.SeverityWarning:
				style = r.warning
			}
			fmt.Fprintln(r.w, "  "+r.paint(style, m.String()))
		}
	}
}

// table prints rows under headers with aligned columns. Column flex, if
// non-negative, is truncated so the table fits the output width. style
// may return a style for a whole row.
func (r *renderer) table(headers []string, rows [][]string, flex int, style func(row int) (lipgloss.Style, bool)) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	if flex >= 0 && flex < len(widths) {
		total := len(columnGap) * (len(widths) - 1)
		for _, w := range widths {
			total += w
		}
		if over := total - r.width; over > 0 {
			widths[flex] = max(minFlexWidth, widths[flex]-over)
		}
	}

	r.row(headers, widths, r.header, true)
	for i, row := range rows {
		st, ok := lipgloss.Style{}, false
		if style != nil {
			st, ok = style(i)
		}
		r.row(row, widths, st, ok)
	}
}

func (r *renderer) row(cells []string, widths []int, style lipgloss.Style, styled bool) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = util.PadRight(util.Truncate(cell, widths[i]), widths[i])
	}
	line := strings.TrimRight(strings.Join(parts, columnGap), " ")
	if styled {
		line = r.paint(style, line)
	}
	fmt.Fprintln(r.w, line)
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
