package harness

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Counts summarizes a run.
type Counts struct {
	Passed    int
	Failed    int
	NotRun    int
	Scenarios int
	// ScenarioErrors counts setup or cleanup failures.
	ScenarioErrors int
}

// Reporter accumulates scenario reports and renders the final summary.
type Reporter struct {
	reports []ScenarioReport
	color   bool
}

// NewReporter creates a reporter. With color set, headers are styled for
// a terminal.
func NewReporter(color bool) *Reporter {
	return &Reporter{color: color}
}

// Add records one scenario's outcome.
func (r *Reporter) Add(report ScenarioReport) {
	r.reports = append(r.reports, report)
}

// Reports returns the recorded scenario reports in run order.
func (r *Reporter) Reports() []ScenarioReport {
	return append([]ScenarioReport(nil), r.reports...)
}

// Counts tallies commands across every scenario.
func (r *Reporter) Counts() Counts {
	c := Counts{Scenarios: len(r.reports)}
	for _, rep := range r.reports {
		for _, res := range rep.Results {
			if res.Passed() {
				c.Passed++
			} else {
				c.Failed++
			}
		}
		c.NotRun += len(rep.NotRun)
		if rep.Err != nil {
			c.ScenarioErrors++
		}
	}
	return c
}

// ExitCode is 0 when every command ran and passed, 1 otherwise.
func (r *Reporter) ExitCode() int {
	for _, rep := range r.reports {
		if !rep.Passed() {
			return 1
		}
	}
	return 0
}

// Print writes every failure with its expected and actual text, then the
// summary line.
func (r *Reporter) Print(w io.Writer) error {
	st := newStyles(w, r.color)
	var b strings.Builder

	for _, rep := range r.reports {
		if rep.Passed() {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", st.fail.Render("FAIL"), rep.Name)

		if rep.Err != nil {
			fmt.Fprintf(&b, "  error: %v\n", rep.Err)
		}
		for _, res := range rep.Results {
			if res.Passed() {
				continue
			}
			writeFailure(&b, st, res)
		}
		for _, cmd := range rep.NotRun {
			fmt.Fprintf(&b, "  %s %s\n", st.skip.Render("not run:"), cmd)
		}
		b.WriteString("\n")
	}

	c := r.Counts()
	summary := fmt.Sprintf("%d passed, %d failed, %d not run (%d scenarios)", c.Passed, c.Failed, c.NotRun, c.Scenarios)
	if r.ExitCode() == 0 {
		summary = st.pass.Render(summary)
	} else {
		summary = st.fail.Render(summary)
	}
	b.WriteString(summary + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeFailure(b *strings.Builder, st styles, res Result) {
	fmt.Fprintf(b, "  %s %s (%s)\n", st.label.Render("command:"), res.Command, res.Status)
	if res.Status == StatusMismatch {
		writeBlock(b, st.label.Render("expected:"), res.Expected)
		writeBlock(b, st.label.Render("actual:"), res.Actual)
		if res.Diff != "" {
			writeBlock(b, st.label.Render("diff:"), strings.TrimRight(res.Diff, "\n"))
		}
	} else if res.Status == StatusExecError && res.Actual != "" {
		writeBlock(b, st.label.Render("output:"), res.Actual)
	}
	if res.Reason != "" {
		writeBlock(b, st.label.Render("reason:"), res.Reason)
	}
}

func writeBlock(b *strings.Builder, label, text string) {
	fmt.Fprintf(b, "  %s\n", label)
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}

type styles struct {
	pass  renderer
	fail  renderer
	skip  renderer
	label renderer
}

type renderer interface {
	Render(strs ...string) string
}

// plain renders text unchanged.
type plain struct{}

func (plain) Render(strs ...string) string { return strings.Join(strs, " ") }

func newStyles(w io.Writer, color bool) styles {
	if !color {
		return styles{pass: plain{}, fail: plain{}, skip: plain{}, label: plain{}}
	}
	lr := lipgloss.NewRenderer(w)
	return styles{
		pass:  lr.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		fail:  lr.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		skip:  lr.NewStyle().Foreground(lipgloss.Color("3")),
		label: lr.NewStyle().Faint(true),
	}
}
