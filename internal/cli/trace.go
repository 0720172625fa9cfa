package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/seqguard/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Scenario string // optional - filter run listings to one scenario
}

// RunList is the output of trace without a run ID.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

// RenderText implements TextRenderer.
func (l RunList) RenderText(w io.Writer) {
	if len(l.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range l.Runs {
		status := "pass"
		if !r.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%4d  %s  %-10s %-4s %s\n", r.Seq, r.ID, r.Discipline, status, r.Scenario)
	}
}

// RunTrace is the output of trace with a run ID.
type RunTrace struct {
	Run    store.Run     `json:"run"`
	Events []store.Event `json:"events"`
}

// RenderText implements TextRenderer.
func (t RunTrace) RenderText(w io.Writer) {
	r := t.Run
	fmt.Fprintf(w, "Run %s (seq %d)\n", r.ID, r.Seq)
	fmt.Fprintf(w, "  scenario:   %s\n", r.Scenario)
	fmt.Fprintf(w, "  discipline: %s\n", r.Discipline)
	fmt.Fprintf(w, "  pass:       %v\n", r.Pass)
	fmt.Fprintf(w, "  admitted:   %d reads, %d writes (%d immediate, %d queued, %d withdrawn)\n",
		r.Stats.AdmittedReads, r.Stats.AdmittedWrites, r.Stats.Immediate, r.Stats.Queued, r.Stats.Withdrawn)
	fmt.Fprintln(w)

	for _, e := range t.Events {
		fmt.Fprintf(w, "  [%s] %s %s -> %s", e.Step, e.Op, e.Args, e.Outcome)
		if e.Result != nil {
			fmt.Fprintf(w, " = %s", e.Result)
		}
		fmt.Fprintln(w)
	}

	for _, msg := range r.Errors {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect recorded runs",
		Long: `Inspect the SQLite run log written by "seqctl run --db".

Without a run ID, lists recorded runs in seq order. With a run ID, prints
the run and its trace.

Examples:
  seqctl trace --db ./runs.db
  seqctl trace --db ./runs.db --scenario sentinel_append
  seqctl trace --db ./runs.db 01927d3c-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (required)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "list only runs of this scenario")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	ctx := cmd.Context()

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = out.Error(CodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if runID == "" {
		runs, err := st.ListRuns(ctx, opts.Scenario)
		if err != nil {
			_ = out.Error(CodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return out.Success(RunList{Runs: runs})
	}

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = out.Error(CodeNotFound, err.Error(), map[string]string{"run_id": runID})
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		_ = out.Error(CodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadEvents(ctx, runID)
	if err != nil {
		_ = out.Error(CodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	return out.Success(RunTrace{Run: run, Events: events})
}
