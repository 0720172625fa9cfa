package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/seqguard/internal/container"
	"github.com/roach88/seqguard/internal/seq"
	"github.com/roach88/seqguard/internal/testutil"
)

// Harness runs one scenario against one freshly built container.
// Arrival ranks come from a deterministic clock so Submitted is stable.
type Harness struct {
	container *container.Container[*int]
	clock     *testutil.DeterministicClock
	logger    *slog.Logger
}

// Run executes the scenario under each of its disciplines with logs
// discarded.
func Run(scenario *Scenario) ([]*Result, error) {
	return RunContext(context.Background(), scenario, nil)
}

// RunContext executes the scenario under each of its disciplines, in
// declaration order. A nil logger discards container logs.
func RunContext(ctx context.Context, scenario *Scenario, logger *slog.Logger) ([]*Result, error) {
	disciplines := scenario.DisciplineList()
	results := make([]*Result, 0, len(disciplines))
	clock := testutil.NewDeterministicClock()
	for _, d := range disciplines {
		clock.Reset()
		result, err := runDiscipline(ctx, scenario, d, clock, logger)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// RunDiscipline executes the scenario once under discipline d.
//
// Execution flow:
// 1. Build a container seeded with scenario.Initial
// 2. Execute steps, running concurrent blocks from separate goroutines
// 3. Check each step's expect clause
// 4. Snapshot the final content and evaluate assertions
//
// Failed expectations and assertions are recorded on the result. The
// returned error is reserved for scenarios that cannot be executed.
func RunDiscipline(ctx context.Context, scenario *Scenario, d container.Discipline, logger *slog.Logger) (*Result, error) {
	return runDiscipline(ctx, scenario, d, testutil.NewDeterministicClock(), logger)
}

func runDiscipline(ctx context.Context, scenario *Scenario, d container.Discipline, clock *testutil.DeterministicClock, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	initial := make([]*int, len(scenario.Initial))
	for i, v := range scenario.Initial {
		initial[i] = &v
	}

	h := &Harness{
		container: container.New(container.Config[*int]{
			Discipline: d,
			Initial:    initial,
			Reject:     seq.RejectZero[*int](),
			Logger:     logger.With("scenario", scenario.Name, "discipline", d.String()),
			Clock:      clock,
		}),
		clock:  clock,
		logger: logger,
	}

	result := NewResult(scenario.Name, d.String())
	for i, step := range scenario.Steps {
		label := fmt.Sprint(i + 1)
		if len(step.Concurrent) > 0 {
			events, err := h.executeConcurrent(ctx, label, step.Concurrent)
			if err != nil {
				return nil, err
			}
			for j, ev := range events {
				result.Trace = append(result.Trace, ev)
				checkExpect(result, step.Concurrent[j].Expect, ev)
			}
			continue
		}

		ev, err := h.execute(ctx, label, step)
		if err != nil {
			return nil, err
		}
		result.Trace = append(result.Trace, ev)
		checkExpect(result, step.Expect, ev)
	}

	final, err := h.container.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot final state: %w", err)
	}
	result.Final = derefAll(final)
	result.Submitted = h.clock.Current()
	result.Stats = h.container.Stats()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"discipline", result.Discipline,
		"pass", result.Pass,
		"steps", len(result.Trace))

	return result, nil
}

// executeConcurrent submits every child step from its own goroutine and
// returns their events labelled "<label>.<n>" in declaration order.
func (h *Harness) executeConcurrent(ctx context.Context, label string, steps []Step) ([]TraceEvent, error) {
	events := make([]TraceEvent, len(steps))
	errs := make([]error, len(steps))

	var wg sync.WaitGroup
	for j, step := range steps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events[j], errs[j] = h.execute(ctx, fmt.Sprintf("%s.%d", label, j+1), step)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return events, nil
}

// execute runs a single op and records its outcome. Container errors become
// the event's outcome; only a cancelled ctx is returned as an error.
func (h *Harness) execute(ctx context.Context, label string, step Step) (TraceEvent, error) {
	ev := TraceEvent{Step: label, Op: step.Op}
	c := h.container

	var opErr error
	switch step.Op {
	case OpAppend:
		if step.Value == nil {
			ev.Args = map[string]any{"sentinel": true}
			opErr = c.Append(ctx, nil)
		} else {
			v := *step.Value
			ev.Args = map[string]any{"value": v}
			opErr = c.Append(ctx, &v)
		}

	case OpElementAt:
		ev.Args = map[string]any{"index": *step.Index}
		var p *int
		p, opErr = c.ElementAt(ctx, *step.Index)
		if opErr == nil {
			ev.Result = *p
		}

	case OpRemoveAt:
		ev.Args = map[string]any{"index": *step.Index}
		opErr = c.RemoveAt(ctx, *step.Index)

	case OpCount:
		var n int
		n, opErr = c.Count(ctx)
		if opErr == nil {
			ev.Result = n
		}

	case OpFilter:
		ev.Args = map[string]any{"predicate": step.Predicate}
		pred, err := ParsePredicate(step.Predicate)
		if err != nil {
			return ev, fmt.Errorf("step %s: %w", label, err)
		}
		var items []*int
		items, opErr = c.Filter(ctx, func(p *int) bool { return pred(*p) })
		if opErr == nil {
			ev.Result = derefAll(items)
		}

	case OpSnapshot:
		var items []*int
		items, opErr = c.Snapshot(ctx)
		if opErr == nil {
			ev.Result = derefAll(items)
		}

	default:
		return ev, fmt.Errorf("step %s: unknown op %q", label, step.Op)
	}

	if opErr != nil {
		if ctx.Err() != nil {
			return ev, fmt.Errorf("step %s: %w", label, opErr)
		}
		ev.Outcome = outcomeOf(opErr)
		h.logger.Debug("step failed", "step", label, "op", step.Op, "error", opErr)
		return ev, nil
	}
	ev.Outcome = OutcomeOK
	return ev, nil
}

func outcomeOf(err error) string {
	if code := seq.CodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}

func checkExpect(result *Result, expect *Expect, ev TraceEvent) {
	if expect == nil {
		return
	}

	wantOutcome := OutcomeOK
	if expect.Error != "" {
		wantOutcome = expect.Error
	}
	if ev.Outcome != wantOutcome {
		result.AddError(fmt.Sprintf("step %s (%s): expected outcome %s, got %s",
			ev.Step, ev.Op, wantOutcome, ev.Outcome))
		return
	}

	if expect.Value != nil {
		if got, ok := ev.Result.(int); !ok || ev.Op != OpElementAt || got != *expect.Value {
			result.AddError(fmt.Sprintf("step %s (%s): expected value %d, got %v",
				ev.Step, ev.Op, *expect.Value, ev.Result))
		}
	}
	if expect.Count != nil {
		if got, ok := ev.Result.(int); !ok || ev.Op != OpCount || got != *expect.Count {
			result.AddError(fmt.Sprintf("step %s (%s): expected count %d, got %v",
				ev.Step, ev.Op, *expect.Count, ev.Result))
		}
	}
	if expect.Items != nil {
		if got, ok := ev.Result.([]int); !ok || !slices.Equal(got, *expect.Items) {
			result.AddError(fmt.Sprintf("step %s (%s): expected items %v, got %v",
				ev.Step, ev.Op, *expect.Items, ev.Result))
		}
	}
}

func derefAll(ps []*int) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = *p
	}
	return out
}
