package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/chattriggers/ctjs/internal/loader"
	"github.com/chattriggers/ctjs/internal/state"
	"github.com/chattriggers/ctjs/pkg/config"
	"github.com/chattriggers/ctjs/pkg/types"
	"github.com/chattriggers/ctjs/pkg/utils"
	"github.com/chattriggers/ctjs/pkg/validation"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeImportRow(w io.Writer, name string, lines, size int) {
	fmt.Fprintf(w, "%s\t%d\t%s\n", name, lines, utils.FormatBytes(int64(size)))
}

func colorEntryState(s types.EntryState) string {
	switch s {
	case types.EntryStateEnabled:
		return color.GreenString(string(s))
	case types.EntryStateDisabled:
		return color.RedString(string(s))
	default:
		return color.WhiteString(string(s))
	}
}

func (c *CLI) writeEntryPoints(states map[string]types.EntryState) {
	w := newTable(c.output)
	fmt.Fprintln(w, "ENTRY POINT\tSTATE")
	fmt.Fprintln(w, "-----------\t-----")
	for _, ep := range types.AllEntryPoints() {
		s, ok := states[ep.String()]
		if !ok {
			s = types.EntryStateEnabled
		}
		fmt.Fprintf(w, "%s\t%s\n", ep, colorEntryState(s))
	}
	w.Flush()
}

func (c *CLI) writeFailures(failures []types.Failure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(c.output, "\n%s\n", color.RedString("Failures:"))
	for _, f := range failures {
		fmt.Fprintf(c.output, "  [%s] %s: %s\n", f.Stage, f.Subject, f.Message)
	}
}

func (c *CLI) printReport(report *loader.Report, states map[string]types.EntryState) {
	status := color.GreenString("ok")
	if !report.OK() {
		status = color.YellowString("%d failure(s)", len(report.Failures))
	}
	fmt.Fprintf(c.output, "Load %s finished in %s: %s\n\n",
		report.LoadID, report.Duration.Round(time.Millisecond), status)

	if len(report.Imports) > 0 {
		w := newTable(c.output)
		fmt.Fprintln(w, "IMPORT\tLINES\tSIZE")
		fmt.Fprintln(w, "------\t-----\t----")
		for _, imp := range report.Imports {
			writeImportRow(w, imp.Name, imp.Lines(), imp.Size())
		}
		w.Flush()
		fmt.Fprintln(c.output)
	}

	if len(report.Assets) > 0 {
		fmt.Fprintf(c.output, "Copied %d asset(s)\n\n", len(report.Assets))
	}

	c.writeEntryPoints(states)
	c.writeFailures(report.Failures)
}

func (c *CLI) printState(s *state.LoaderState, alive bool) {
	running := color.WhiteString("no")
	if alive {
		running = color.GreenString("yes (pid %d)", s.ProcessID)
	}

	w := newTable(c.output)
	fmt.Fprintf(w, "Load ID:\t%s\n", s.LoadID)
	fmt.Fprintf(w, "Loaded at:\t%s\n", s.LoadedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration:\t%s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Loads:\t%d\n", s.LoadCount)
	fmt.Fprintf(w, "Running:\t%s\n", running)
	w.Flush()
	fmt.Fprintln(c.output)

	if len(s.Imports) > 0 {
		w = newTable(c.output)
		fmt.Fprintln(w, "IMPORT\tLINES\tSIZE")
		fmt.Fprintln(w, "------\t-----\t----")
		for _, imp := range s.Imports {
			writeImportRow(w, imp.Name, imp.Lines, imp.Bytes)
		}
		w.Flush()
		fmt.Fprintln(c.output)
	}

	c.writeEntryPoints(s.EntryPoints)
	c.writeFailures(s.Failures)
}

func (c *CLI) printPaths(paths config.Paths) {
	w := newTable(c.output)
	fmt.Fprintf(w, "Mod root:\t%s\n", paths.ModRoot)
	fmt.Fprintf(w, "Imports:\t%s\n", paths.Imports)
	fmt.Fprintf(w, "Libs:\t%s\n", paths.Libs)
	fmt.Fprintf(w, "Assets:\t%s\n", paths.Assets)
	w.Flush()
}

func (c *CLI) printValidation(result *validation.ValidationResult) {
	if len(result.Errors) == 0 {
		fmt.Fprintf(c.output, "\n%s layout looks good\n", color.GreenString("✓"))
		return
	}

	fmt.Fprintln(c.output)
	for _, e := range result.Errors {
		var level string
		switch e.Level {
		case validation.ValidationLevelError:
			level = color.RedString("error")
		case validation.ValidationLevelWarning:
			level = color.YellowString("warning")
		default:
			level = color.CyanString("info")
		}
		fmt.Fprintf(c.output, "  %s %s.%s: %s\n", level, e.Subject, e.Field, e.Message)
	}
}
