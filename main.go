package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/timvw/mediaharness/e2e/harness"
	"github.com/timvw/mediaharness/e2e/scenarios"
	"github.com/timvw/mediaharness/internal/log"
)

var (
	version = "dev"

	toolPath     string
	timeout      time.Duration
	files        []string
	runPattern   string
	usePty       bool
	interactive  bool
	keepFixtures bool
	logLevel     string
	logJSON      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mediaharness",
	Short: "Integration test harness for git-media",
	Long: `Runs declarative scenarios against the git-media binary.

Each scenario gets a fresh git repository under the temp root and a
clean global git config. Commands run in order; their output must match
the expected text exactly.

Set ` + harness.EnvTool + ` or pass --tool to choose the binary.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	runCmd.Flags().StringVar(&toolPath, "tool", "", "path to the git-media binary (default: $"+harness.EnvTool+" or PATH)")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "per-command timeout (default: $"+harness.EnvTimeout+" or 30s)")
	runCmd.Flags().StringSliceVarP(&files, "file", "f", nil, "YAML scenario file; replaces the built-in scenarios (repeatable)")
	runCmd.Flags().StringVar(&runPattern, "run", "", "only run scenarios whose name matches this regular expression")
	runCmd.Flags().BoolVar(&usePty, "pty", false, "run the tool on a pseudo-terminal")
	runCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick scenarios interactively")
	runCmd.Flags().BoolVar(&keepFixtures, "keep", false, "keep fixture directories after the run")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")

	listCmd.Flags().StringSliceVarP(&files, "file", "f", nil, "YAML scenario file; replaces the built-in scenarios (repeatable)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadScenarios returns the scenarios from files, or the built-in ones.
func loadScenarios(paths []string) ([]harness.Scenario, error) {
	if len(paths) == 0 {
		return scenarios.All(), nil
	}
	var all []harness.Scenario
	for _, p := range paths {
		loaded, err := harness.LoadScenarios(p)
		if err != nil {
			return nil, err
		}
		all = append(all, loaded...)
	}
	return all, nil
}

// filterScenarios keeps scenarios whose name matches pattern.
func filterScenarios(all []harness.Scenario, pattern string) ([]harness.Scenario, error) {
	if pattern == "" {
		return all, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid --run pattern: %w", err)
	}
	var out []harness.Scenario
	for _, s := range all {
		if re.MatchString(s.Name) {
			out = append(out, s)
		}
	}
	return out, nil
}

// pickScenarios asks which scenarios to run. Scenario names may repeat,
// so options are keyed by position.
func pickScenarios(all []harness.Scenario) ([]harness.Scenario, error) {
	options := make([]huh.Option[int], len(all))
	for i, s := range all {
		label := fmt.Sprintf("%d. %s", i+1, s.Name)
		if s.Description != "" {
			label += " - " + s.Description
		}
		options[i] = huh.NewOption(label, i).Selected(true)
	}

	var chosen []int
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[int]().
			Title("Scenarios to run").
			Options(options...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return nil, err
	}

	picked := make([]harness.Scenario, 0, len(chosen))
	for i, s := range all {
		for _, c := range chosen {
			if c == i {
				picked = append(picked, s)
				break
			}
		}
	}
	return picked, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scenarios and report the results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.NewLogger(log.Config{Out: cmd.ErrOrStderr(), Level: logLevel, JSON: logJSON, Version: version})

		cfg, err := harness.Resolve(os.Getenv, harness.Overrides{ToolPath: toolPath, Timeout: timeout})
		if err != nil {
			return err
		}

		executor, err := scenarios.ExecutorFromEnv()
		if err != nil {
			return err
		}
		if usePty {
			executor = harness.NewPtyExecutor()
		}

		selected, err := loadScenarios(files)
		if err != nil {
			return err
		}
		if selected, err = filterScenarios(selected, runPattern); err != nil {
			return err
		}
		if interactive {
			if selected, err = pickScenarios(selected); err != nil {
				return err
			}
		}
		if len(selected) == 0 {
			return fmt.Errorf("no scenarios selected")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := harness.NewRunner(cfg,
			harness.WithExecutor(executor),
			harness.WithLogger(log.WithComponent(logger, "runner")),
			harness.WithKeepFixtures(keepFixtures),
		)
		defer func() {
			if err := runner.Cleanup(); err != nil {
				logger.Error("cleanup failed", "error", err)
			}
		}()

		logger.Info("starting run", "tool", cfg.ToolPath, "scenarios", len(selected), "executor", executor.Name())

		out := cmd.OutOrStdout()
		reporter := harness.NewReporter(isTerminal(out))
		runner.Run(ctx, selected, reporter)
		if err := reporter.Print(out); err != nil {
			return err
		}

		if code := reporter.ExitCode(); code != 0 {
			return errTestsFailed
		}
		return nil
	},
}

// errTestsFailed makes the process exit 1 after the report is printed.
var errTestsFailed = errors.New("scenarios failed")

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List scenarios and their commands",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := loadScenarios(files)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range all {
			fmt.Fprintf(out, "%s\n", s.Name)
			for _, c := range s.Commands {
				fmt.Fprintf(out, "    %s\n", c.Command)
			}
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mediaharness version %s\n", version)
	},
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
