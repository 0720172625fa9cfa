package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%s] %s %v -> %s\n", event.Step, event.Op, event.Args, event.Outcome)
		}
	}

	return buf.String()
}

func assertFinalCount(result *Result, assertion Assertion) error {
	if got := len(result.Final); got != *assertion.Count {
		return &AssertionError{
			Type:     AssertFinalCount,
			Expected: fmt.Sprintf("%d elements", *assertion.Count),
			Actual:   fmt.Sprintf("%d elements", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertFinalItems(result *Result, assertion Assertion) error {
	if !slices.Equal(result.Final, *assertion.Items) {
		return &AssertionError{
			Type:     AssertFinalItems,
			Expected: fmt.Sprintf("%v", *assertion.Items),
			Actual:   fmt.Sprintf("%v", result.Final),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertErrorCount counts failed steps, optionally restricted to one code.
func assertErrorCount(result *Result, assertion Assertion) error {
	outcomes := result.ErrorOutcomes()

	got := 0
	if assertion.Error != "" {
		got = outcomes[assertion.Error]
	} else {
		for _, n := range outcomes {
			got += n
		}
	}

	if got != *assertion.Count {
		what := "failed steps"
		if assertion.Error != "" {
			what = assertion.Error + " outcomes"
		}
		return &AssertionError{
			Type:     AssertErrorCount,
			Expected: fmt.Sprintf("%d %s", *assertion.Count, what),
			Actual:   fmt.Sprintf("%d %s", got, what),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertNoErrors(result *Result) error {
	outcomes := result.ErrorOutcomes()
	if len(outcomes) == 0 {
		return nil
	}

	codes := make([]string, 0, len(outcomes))
	for code, n := range outcomes {
		codes = append(codes, fmt.Sprintf("%s x%d", code, n))
	}
	slices.Sort(codes)
	return &AssertionError{
		Type:     AssertNoErrors,
		Expected: "no failed steps",
		Actual:   strings.Join(codes, ", "),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against a finished result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalCount:
			err = assertFinalCount(result, assertion)
		case AssertFinalItems:
			err = assertFinalItems(result, assertion)
		case AssertErrorCount:
			err = assertErrorCount(result, assertion)
		case AssertNoErrors:
			err = assertNoErrors(result)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
