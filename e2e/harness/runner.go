package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/timvw/mediaharness/internal/log"
)

// ScenarioReport is the outcome of one scenario
type ScenarioReport struct {
	Name  string
	State State
	// One entry per evaluated command, in order
	Results []Result
	// Commands skipped after an execution error or a setup failure
	NotRun []string
	// Setup or cleanup failure outside any single command
	Err error
	FixtureRoot string
}

// Passed reports whether every command ran and passed
func (r ScenarioReport) Passed() bool {
	if r.Err != nil || len(r.NotRun) > 0 {
		return false
	}
	for _, res := range r.Results {
		if !res.Passed() {
			return false
		}
	}
	return true
}

// Runner executes scenarios against fresh fixtures
type Runner struct {
	cfg      Config
	store    GlobalStore
	repos    RepoInitializer
	executor Executor
	logger   *slog.Logger
	keep     bool
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithStore replaces the global git config store
func WithStore(store GlobalStore) RunnerOption {
	return func(r *Runner) { r.store = store }
}

// WithRepositories replaces the git repository initializer
func WithRepositories(repos RepoInitializer) RunnerOption {
	return func(r *Runner) { r.repos = repos }
}

// WithExecutor replaces the pipe executor
func WithExecutor(executor Executor) RunnerOption {
	return func(r *Runner) { r.executor = executor }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithKeepFixtures leaves fixture directories on disk for inspection
func WithKeepFixtures(keep bool) RunnerOption {
	return func(r *Runner) { r.keep = keep }
}

// NewRunner creates a new scenario runner for cfg
func NewRunner(cfg Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:      cfg,
		store:    NewGitConfigStore(cfg),
		repos:    NewGitRepo(cfg.Env),
		executor: NewPipeExecutor(),
		logger:   log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes scenarios in order and hands each report to reporter.
// Scenarios not yet started when ctx is done are reported as not run.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario, reporter *Reporter) {
	for _, s := range scenarios {
		if ctx.Err() != nil {
			r.logger.Warn("run cancelled", "remaining", s.Name, "error", ctx.Err())
			reporter.Add(skipped(s, WrapError(ctx.Err(), CodeScenario, "run cancelled")))
			continue
		}
		reporter.Add(r.RunScenario(ctx, s))
	}
}

// RunScenario executes one scenario and reports results. The fixture is
// destroyed whatever the outcome.
func (r *Runner) RunScenario(ctx context.Context, s Scenario) (report ScenarioReport) {
	logger := r.logger.With("scenario", s.Name)
	report = ScenarioReport{Name: s.Name, State: StatePending}

	logger.Info("Running scenario", "description", s.Description, "commands", len(s.Commands))

	// Reset global store before the fixture exists
	if err := r.store.Reset(ctx); err != nil {
		return failSetup(report, s, WrapError(err, CodeStore, "failed to reset global store"))
	}

	// Create fixture
	fixture, err := NewFixture(ctx, r.cfg, r.repos, r.executor)
	if err != nil {
		return failSetup(report, s, err)
	}
	report.State = StateRunning
	report.FixtureRoot = fixture.Root

	defer func() {
		if r.keep {
			logger.Info("Keeping fixture", "root", fixture.Root)
		} else if err := fixture.Destroy(); err != nil {
			logger.Error("Fixture cleanup failed", "root", fixture.Root, "error", err)
			report.Err = errors.Join(report.Err, err)
		}
		report.State = StateCompleted
	}()

	// Execute setup
	if err := r.seed(ctx, fixture, s); err != nil {
		report.Err = err
		report.NotRun = commandLines(s.Commands)
		return report
	}

	// Execute steps
	for i, cmd := range s.Commands {
		logger.Debug(fmt.Sprintf("Step %d: %s", i+1, cmd.Command), "dir", fixture.Dir(), "executor", r.executor.Name())

		res := cmd.Evaluate(ctx, fixture, r.store)
		report.Results = append(report.Results, res)

		logger.Debug("Step finished", "step", i+1, "status", res.Status.String())
		if res.Status == StatusExecError {
			logger.Error("Execution error, skipping remaining commands",
				"command", cmd.Command, "reason", res.Reason)
			report.NotRun = commandLines(s.Commands[i+1:])
			break
		}
	}

	if report.Passed() {
		logger.Info("Scenario passed")
	} else {
		logger.Info("Scenario failed")
	}
	return report
}

// seed prepares the fixture before the first command
func (r *Runner) seed(ctx context.Context, f *Fixture, s Scenario) error {
	// Write files
	for _, path := range sortedKeys(s.Files) {
		if err := f.WriteFile(path, s.Files[path]); err != nil {
			return WrapError(err, CodeFixture, fmt.Sprintf("failed to write %s", path))
		}
	}
	// Apply repository config
	for _, key := range sortedKeys(s.GitConfig) {
		if err := r.repos.SetConfig(ctx, f.Root, key, s.GitConfig[key]); err != nil {
			return WrapError(err, CodeFixture, fmt.Sprintf("failed to set %s", key))
		}
	}
	// Register nested repositories
	for _, repo := range s.Repositories {
		if err := f.RegisterRepository(repo); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup removes the scoped home directory and the global config in it
func (r *Runner) Cleanup() error {
	if r.cfg.HomeDir == "" || r.keep {
		return nil
	}
	if err := os.RemoveAll(r.cfg.HomeDir); err != nil {
		return WrapError(err, CodeStore, "failed to remove scoped home")
	}
	return nil
}

func failSetup(report ScenarioReport, s Scenario, err error) ScenarioReport {
	report.Err = err
	report.NotRun = commandLines(s.Commands)
	report.State = StateCompleted
	return report
}

func skipped(s Scenario, err error) ScenarioReport {
	return failSetup(ScenarioReport{Name: s.Name}, s, err)
}

func commandLines(cmds []CommandAssertion) []string {
	if len(cmds) == 0 {
		return nil
	}
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.Command
	}
	return lines
}
