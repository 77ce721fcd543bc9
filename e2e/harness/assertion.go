package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pmezard/go-difflib/difflib"
)

// Status is the verdict for one command.
type Status int

const (
	StatusPass Status = iota
	StatusMismatch
	StatusHookFailed
	StatusExecError
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusMismatch:
		return "mismatch"
	case StatusHookFailed:
		return "hook failed"
	case StatusExecError:
		return "exec error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of evaluating one CommandAssertion.
type Result struct {
	Command  string
	Expected string
	Actual   string
	Status   Status
	// Reason explains a hook failure or an execution error.
	Reason string
	// Diff is a unified diff of expected against actual on mismatch.
	Diff string
}

// Passed reports whether the command matched and every verifier held.
func (r Result) Passed() bool {
	return r.Status == StatusPass
}

// CommandAssertion is one tool invocation with its expected output and
// optional side-effect checks.
type CommandAssertion struct {
	Command   string
	Expected  string
	Verifiers []Verifier

	expected *template.Template
}

// NewCommandAssertion parses expected as a template. Expected output may
// refer to run values such as {{.Version}} or {{.Root}}.
func NewCommandAssertion(command, expected string, verifiers ...Verifier) (CommandAssertion, error) {
	tmpl, err := parseExpectation(command, expected)
	if err != nil {
		return CommandAssertion{}, err
	}
	return CommandAssertion{
		Command:   command,
		Expected:  expected,
		Verifiers: verifiers,
		expected:  tmpl,
	}, nil
}

// ExpectData is what expectation templates are rendered with.
type ExpectData struct {
	Version  string
	TmpDir   string
	Env      string
	Tool     string
	Root     string
	GitDir   string
	MediaDir string
}

// NewExpectData collects the template values for f.
func NewExpectData(f *Fixture) ExpectData {
	cfg := f.Config()
	return ExpectData{
		Version:  cfg.Version,
		TmpDir:   cfg.TmpDir,
		Env:      cfg.EnvString,
		Tool:     cfg.ToolPath,
		Root:     f.Root,
		GitDir:   f.GitDir(),
		MediaDir: f.MediaDir(),
	}
}

var expectFuncs = template.FuncMap{
	"join": filepath.Join,
}

func parseExpectation(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(expectFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, WrapError(err, CodeScenario, fmt.Sprintf("invalid expected output for %q", name))
	}
	return tmpl, nil
}

// Render produces the expected text for f.
func (c CommandAssertion) Render(f *Fixture) (string, error) {
	tmpl := c.expected
	if tmpl == nil {
		var err error
		if tmpl, err = parseExpectation(c.Command, c.Expected); err != nil {
			return "", err
		}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, NewExpectData(f)); err != nil {
		return "", WrapError(err, CodeScenario, fmt.Sprintf("failed to render expected output for %q", c.Command))
	}
	return b.String(), nil
}

// Evaluate runs the command in f, compares its output, and on a match runs
// the verifiers in order. The first verifier failure is the hook verdict.
func (c CommandAssertion) Evaluate(ctx context.Context, f *Fixture, store GlobalStore) Result {
	res := Result{Command: c.Command, Expected: c.Expected}

	actual, err := f.Exec(ctx, c.Command)
	res.Actual = actual
	if err != nil {
		res.Status = StatusExecError
		res.Reason = err.Error()
		return res
	}

	expected, err := c.Render(f)
	if err != nil {
		res.Status = StatusExecError
		res.Reason = err.Error()
		return res
	}
	res.Expected = expected

	want, got := Normalize(expected), Normalize(actual)
	if want != got {
		res.Status = StatusMismatch
		res.Diff = Diff(want, got)
		return res
	}

	for _, v := range c.Verifiers {
		if err := v.Verify(ctx, f, store); err != nil {
			res.Status = StatusHookFailed
			res.Reason = err.Error()
			return res
		}
	}

	res.Status = StatusPass
	return res
}

// Normalize folds line endings to "\n" and drops trailing blank lines.
// Everything else, including blank lines inside the text and trailing
// spaces on the last content line, is kept.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// Diff renders a unified diff of want against got.
func Diff(want, got string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}
