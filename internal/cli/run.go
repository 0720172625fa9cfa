package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/seqguard/internal/container"
	"github.com/roach88/seqguard/internal/harness"
	"github.com/roach88/seqguard/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	Discipline string

	// StoreOptions are passed to store.Open (for testing).
	StoreOptions []store.Option
}

// RunSummary is one discipline's outcome.
type RunSummary struct {
	Discipline string   `json:"discipline"`
	Pass       bool     `json:"pass"`
	Errors     []string `json:"errors,omitempty"`
	Final      []int    `json:"final"`
	RunID      string   `json:"run_id,omitempty"`
}

// RunReport is the output of the run command.
type RunReport struct {
	Scenario string       `json:"scenario"`
	Runs     []RunSummary `json:"runs"`
}

// Pass reports whether every run passed.
func (r RunReport) Pass() bool {
	for _, run := range r.Runs {
		if !run.Pass {
			return false
		}
	}
	return true
}

// RenderText implements TextRenderer.
func (r RunReport) RenderText(w io.Writer) {
	for _, run := range r.Runs {
		mark := "✓"
		if !run.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s [%s] final=%v", mark, r.Scenario, run.Discipline, run.Final)
		if run.RunID != "" {
			fmt.Fprintf(w, " run=%s", run.RunID)
		}
		fmt.Fprintln(w)
		for _, e := range run.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario",
		Long: `Run a YAML or CUE scenario against a fresh container for each discipline.

With --db, every run and its trace is recorded in the SQLite run log
(created if it doesn't exist).

Exit codes:
  0 - Every run passed
  1 - A run failed an expectation or assertion
  2 - Command error (unreadable scenario, database error)

Examples:
  seqctl run scenarios/append.yaml
  seqctl run scenarios/drain.cue --discipline priority --db ./runs.db
  seqctl run scenarios/append.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite run log")
	cmd.Flags().StringVar(&opts.Discipline, "discipline", "", "run only this discipline (exclusive|priority)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	logger := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = out.Error(CodeLoadFailed, err.Error(), map[string]string{"path": path})
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	disciplines := scenario.DisciplineList()
	if opts.Discipline != "" {
		d, err := container.ParseDiscipline(opts.Discipline)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --discipline", err)
		}
		disciplines = []container.Discipline{d}
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database, opts.StoreOptions...)
		if err != nil {
			_ = out.Error(CodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	report := RunReport{Scenario: scenario.Name, Runs: make([]RunSummary, 0, len(disciplines))}
	for _, d := range disciplines {
		logger.Debug("running scenario", "scenario", scenario.Name, "discipline", d.String())

		result, err := harness.RunDiscipline(ctx, scenario, d, logger)
		if err != nil {
			_ = out.Error(CodeRunFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "scenario execution failed", err)
		}

		summary := RunSummary{
			Discipline: result.Discipline,
			Pass:       result.Pass,
			Errors:     result.Errors,
			Final:      result.Final,
		}
		if st != nil {
			run, err := st.WriteRun(ctx, result)
			if err != nil {
				_ = out.Error(CodeDatabase, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to record run", err)
			}
			summary.RunID = run.ID
			logger.Info("run recorded", "id", run.ID, "seq", run.Seq)
		}
		report.Runs = append(report.Runs, summary)
	}

	if !report.Pass() {
		return out.Failure(report, CodeScenarioFailed, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return out.Success(report)
}

// signalContext derives a context cancelled on SIGINT or SIGTERM.
// Uses parent when set (for testing), otherwise context.Background.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
