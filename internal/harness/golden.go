package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// EventMap converts a trace event to the map form used by MarshalCanonical.
// Empty args and absent results are omitted.
func EventMap(ev TraceEvent) map[string]any {
	m := map[string]any{
		"step":    ev.Step,
		"op":      ev.Op,
		"outcome": ev.Outcome,
	}
	if len(ev.Args) > 0 {
		m["args"] = ev.Args
	}
	if ev.Result != nil {
		m["result"] = ev.Result
	}
	return m
}

// TraceSnapshot renders every run of a scenario as canonical JSON.
// Stats are left out because concurrent blocks make them timing dependent.
func TraceSnapshot(scenarioName string, results []*Result) ([]byte, error) {
	runs := make([]any, len(results))
	for i, r := range results {
		trace := make([]any, len(r.Trace))
		for j, ev := range r.Trace {
			trace[j] = EventMap(ev)
		}
		runs[i] = map[string]any{
			"discipline": r.Discipline,
			"pass":       r.Pass,
			"submitted":  r.Submitted,
			"trace":      trace,
		}
	}
	return MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"runs":          runs,
	})
}

// RunWithGolden executes a scenario under all its disciplines and compares
// the trace against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) ([]*Result, error) {
	t.Helper()

	results, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, results); err != nil {
		return nil, err
	}
	return results, nil
}

// AssertGolden compares already computed results against a golden file.
func AssertGolden(t *testing.T, scenarioName string, results []*Result) error {
	t.Helper()

	traceJSON, err := TraceSnapshot(scenarioName, results)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
