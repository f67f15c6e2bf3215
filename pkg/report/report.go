// Package report provides uniform subprocess execution with pass/fail
// reporting. Commands run with their combined output captured; on success a
// single indicator line is printed, on failure the indicator line is followed
// by the captured output, indented, as diagnostics.
//
// A non-zero exit is a normal, reportable outcome, not an error of the
// reporter itself. Only a command that cannot be spawned at all returns an
// error.
package report

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	"github.com/dotup-sh/dotup/pkg/errors"
	"github.com/dotup-sh/dotup/pkg/logging"
)

// Result is the outcome of one subprocess run. It is created at invocation,
// consumed for display, then discarded; nothing is persisted.
type Result struct {
	Label    string
	ExitCode int
	Output   []string
}

// Ok reports whether the command exited zero.
func (r *Result) Ok() bool {
	return r.ExitCode == 0
}

// Reporter runs commands and prints pass/fail indicator lines.
type Reporter struct {
	out   io.Writer
	color bool
}

// New creates a Reporter writing to stdout, with color when stdout is a
// terminal.
func New() *Reporter {
	return &Reporter{
		out:   os.Stdout,
		color: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}
}

// NewWithWriter creates a Reporter writing to w. Used by tests.
func NewWithWriter(w io.Writer, color bool) *Reporter {
	return &Reporter{out: w, color: color}
}

var (
	okStyle   = pterm.NewStyle(pterm.FgGreen)
	failStyle = pterm.NewStyle(pterm.FgRed)
	diagStyle = pterm.NewStyle(pterm.FgGray)
)

// Run executes the given command, capturing combined stdout/stderr, and
// prints one indicator line for label. Failing commands additionally get
// their captured output printed indented beneath the indicator.
func (r *Reporter) Run(name string, args []string, label string) (*Result, error) {
	logger := logging.GetLogger("report")
	logger.Debug().
		Str("command", name).
		Strs("args", args).
		Str("label", label).
		Msg("Executing command")

	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()

	result := &Result{
		Label:  label,
		Output: splitLines(output),
	}

	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			// The process never started; this is the reporter's own failure.
			return nil, errors.Wrapf(err, errors.ErrSpawn, "cannot spawn %s", name)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	r.print(result)
	return result, nil
}

// RunShell executes command through `sh -c`, reporting under label.
func (r *Reporter) RunShell(command, label string) (*Result, error) {
	return r.Run("sh", []string{"-c", command}, label)
}

func (r *Reporter) print(result *Result) {
	if result.Ok() {
		fmt.Fprintf(r.out, "%s %s\n", r.styled(okStyle, "✓"), result.Label)
		return
	}

	fmt.Fprintf(r.out, "%s %s\n", r.styled(failStyle, "✗"), result.Label)
	for _, line := range result.Output {
		fmt.Fprintf(r.out, "    %s\n", r.styled(diagStyle, line))
	}
}

// Step reports a non-subprocess action under the same pass/fail format.
// The error, if any, is printed as the indented diagnostic and returned
// unchanged.
func (r *Reporter) Step(label string, fn func() error) error {
	err := fn()
	if err == nil {
		fmt.Fprintf(r.out, "%s %s\n", r.styled(okStyle, "✓"), label)
		return nil
	}

	fmt.Fprintf(r.out, "%s %s\n", r.styled(failStyle, "✗"), label)
	for _, line := range splitLines([]byte(err.Error())) {
		fmt.Fprintf(r.out, "    %s\n", r.styled(diagStyle, line))
	}
	return err
}

// Info prints an informational line outside the pass/fail format, for
// user-facing hints such as recovery instructions.
func (r *Reporter) Info(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Reporter) styled(style *pterm.Style, s string) string {
	if !r.color {
		return s
	}
	return style.Sprint(s)
}

func splitLines(output []byte) []string {
	trimmed := strings.TrimRight(string(output), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
