package harness

import "github.com/roach88/seqguard/internal/guard"

// OutcomeOK is the outcome of a step that returned no error.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	// Step is the step label: "3" for a plain step, "2.1" for the first
	// child of a concurrent block.
	Step string `json:"step"`

	// Op is the operation name.
	Op string `json:"op"`

	// Args holds the operation arguments. The sentinel append is recorded
	// as {"sentinel": true}.
	Args map[string]any `json:"args,omitempty"`

	// Outcome is OutcomeOK or the error code the step returned.
	Outcome string `json:"outcome"`

	// Result holds the returned value for reads: an int or a []any of ints.
	Result any `json:"result,omitempty"`
}

// Result is the outcome of running a scenario under one discipline.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Discipline is the discipline the container used.
	Discipline string `json:"discipline"`

	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step in label order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Final is the container content after all steps.
	Final []int `json:"final"`

	// Submitted is the number of requests the controller ranked.
	Submitted int64 `json:"submitted"`

	// Stats is the controller's counters after the run.
	Stats guard.Stats `json:"stats"`
}

// NewResult creates a passing result with an empty trace.
func NewResult(scenario, discipline string) *Result {
	return &Result{
		Scenario:   scenario,
		Discipline: discipline,
		Pass:       true,
		Trace:      []TraceEvent{},
		Errors:     []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// ErrorOutcomes counts trace events per non-ok outcome.
func (r *Result) ErrorOutcomes() map[string]int {
	counts := make(map[string]int)
	for _, ev := range r.Trace {
		if ev.Outcome != OutcomeOK {
			counts[ev.Outcome]++
		}
	}
	return counts
}
