package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqguard/internal/store"
	"github.com/roach88/seqguard/internal/testutil"
)

const passingScenario = `
name: passing
description: "append then read back"
initial: [1]
steps:
  - op: append
    value: 2
  - op: element_at
    index: 1
    expect:
      value: 2
assertions:
  - type: final_items
    items: [1, 2]
`

const failingScenario = `
name: failing
description: "expects the wrong count"
steps:
  - op: count
    expect:
      count: 3
`

const cueScenario = `
name:        "cue_remove"
description: "remove from an empty container"
disciplines: ["exclusive"]
steps: [{op: "remove_at", index: 0, expect: error: "INDEX_OUT_OF_BOUNDS"}]
assertions: [{type: "error_count", count: 1}]
`

func quietOptions(format string) *RootOptions {
	return &RootOptions{
		Format: format,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(NewRootCommand(), "--format", "xml", "bench", "--ops", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "test", "trace", "bench"}, names)
}

func TestNewLogger_VerboseEnablesDebug(t *testing.T) {
	buf := &bytes.Buffer{}

	newLogger(buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	newLogger(buf, true).Debug("shown", "k", 1)
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "k=1")
	assert.NotContains(t, buf.String(), "\x1b[", "no colors on a non-terminal writer")
}

func TestRunCommand_Pass(t *testing.T) {
	path := writeFile(t, t.TempDir(), "passing.yaml", passingScenario)

	out, err := execute(NewRunCommand(quietOptions("text")), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ passing [exclusive] final=[1 2]")
	assert.Contains(t, out, "✓ passing [priority] final=[1 2]")
}

func TestRunCommand_FailExitCode(t *testing.T) {
	path := writeFile(t, t.TempDir(), "failing.yaml", failingScenario)

	out, err := execute(NewRunCommand(quietOptions("json")), path, "--discipline", "priority")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		Data   RunReport `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeScenarioFailed, resp.Error.Code)
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, "priority", resp.Data.Runs[0].Discipline)
	assert.Contains(t, resp.Data.Runs[0].Errors[0], "expected count 3, got 0")
}

func TestRunCommand_LoadError(t *testing.T) {
	out, err := execute(NewRunCommand(quietOptions("text")), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_LOAD]")
}

func TestRunCommand_InvalidDiscipline(t *testing.T) {
	path := writeFile(t, t.TempDir(), "passing.yaml", passingScenario)

	_, err := execute(NewRunCommand(quietOptions("text")), path, "--discipline", "fair")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunAndTrace_RecordsRuns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "passing.yaml", passingScenario)
	db := filepath.Join(dir, "runs.db")

	runCmd := NewRunCommand(quietOptions("text"))
	// Fixed IDs so the trace lookup below is predictable.
	runOpts := &RunOptions{RootOptions: quietOptions("text")}
	runOpts.StoreOptions = []store.Option{
		store.WithIDGenerator(testutil.NewFixedIDGenerator("run")),
		store.WithNow(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }),
	}
	runCmd.RunE = func(cmd *cobra.Command, args []string) error {
		runOpts.Database = db
		return runScenarioFile(runOpts, args[0], cmd)
	}

	out, err := execute(runCmd, path)
	require.NoError(t, err)
	assert.Contains(t, out, "run=run-1")
	assert.Contains(t, out, "run=run-2")

	out, err = execute(NewTraceCommand(quietOptions("text")), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "exclusive")
	assert.Contains(t, out, "run-2")

	out, err = execute(NewTraceCommand(quietOptions("json")), "--db", db, "run-2")
	require.NoError(t, err)

	var resp struct {
		Status string   `json:"status"`
		Data   RunTrace `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "priority", resp.Data.Run.Discipline)
	require.Len(t, resp.Data.Events, 2)
	assert.JSONEq(t, `{"value":2}`, string(resp.Data.Events[0].Args))
	assert.JSONEq(t, `2`, string(resp.Data.Events[1].Result))

	out, err = execute(NewTraceCommand(quietOptions("text")), "--db", db, "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "[2] element_at {\"index\":1} -> ok = 2")
}

func TestTraceCommand_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(NewTraceCommand(quietOptions("text")), "--db", db, "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_NOT_FOUND]")
}

func TestTraceCommand_RequiresDB(t *testing.T) {
	_, err := execute(NewTraceCommand(quietOptions("text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestTraceCommand_EmptyLog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(NewTraceCommand(quietOptions("text")), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestTestCommand_MixedResults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_passing.yaml", passingScenario)
	writeFile(t, dir, "nested/b_cue.cue", cueScenario)
	writeFile(t, dir, "c_failing.yml", failingScenario)
	writeFile(t, dir, "notes.txt", "ignored")

	out, err := execute(NewTestCommand(quietOptions("json")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	byName := map[string]ScenarioResult{}
	for _, s := range resp.Data.Scenarios {
		byName[s.Name] = s
	}
	assert.True(t, byName["passing"].Pass)
	assert.Equal(t, []string{"exclusive", "priority"}, byName["passing"].Disciplines)
	assert.True(t, byName["cue_remove"].Pass)
	assert.Equal(t, []string{"exclusive"}, byName["cue_remove"].Disciplines)
	assert.False(t, byName["failing"].Pass)
	assert.Len(t, byName["failing"].Errors, 2, "one per discipline")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_passing.yaml", passingScenario)
	writeFile(t, dir, "c_failing.yaml", failingScenario)

	out, err := execute(NewTestCommand(quietOptions("text")), dir, "--filter", "a_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_LoadErrorCountsAsFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nsteps: [\n")

	out, err := execute(NewTestCommand(quietOptions("text")), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(NewTestCommand(quietOptions("text")), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(NewTestCommand(quietOptions("text")), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_MissingArgs(t *testing.T) {
	_, err := execute(NewTestCommand(quietOptions("text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
