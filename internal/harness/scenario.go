package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/seqguard/internal/container"
)

// Scenario defines a conformance scenario run against a container of
// integers. A null value stands for the sentinel element.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Disciplines lists the disciplines to run under. Empty means all.
	Disciplines []string `yaml:"disciplines,omitempty" json:"disciplines,omitempty"`

	// Initial seeds the container before the first step.
	Initial []int `yaml:"initial,omitempty" json:"initial,omitempty"`

	// Steps run in order. A step with Concurrent set runs its children
	// from separate goroutines and waits for all of them.
	Steps []Step `yaml:"steps" json:"steps"`

	// Assertions validate the final state and the error tally.
	Assertions []Assertion `yaml:"assertions,omitempty" json:"assertions,omitempty"`
}

// Step is one container operation, or a group of concurrent operations.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op,omitempty" json:"op,omitempty"`

	// Value is the element for append. Nil appends the sentinel.
	Value *int `yaml:"value,omitempty" json:"value,omitempty"`

	// Index is the position for element_at and remove_at.
	Index *int `yaml:"index,omitempty" json:"index,omitempty"`

	// Predicate names the filter predicate (see ParsePredicate).
	Predicate string `yaml:"predicate,omitempty" json:"predicate,omitempty"`

	// Expect optionally checks the step's outcome.
	Expect *Expect `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Concurrent holds child steps submitted together.
	Concurrent []Step `yaml:"concurrent,omitempty" json:"concurrent,omitempty"`
}

// Expect describes the expected outcome of a step.
type Expect struct {
	// Error is the expected error code. Empty expects success.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`

	// Value is the expected element_at result.
	Value *int `yaml:"value,omitempty" json:"value,omitempty"`

	// Count is the expected count result.
	Count *int `yaml:"count,omitempty" json:"count,omitempty"`

	// Items is the expected filter or snapshot result.
	Items *[]int `yaml:"items,omitempty" json:"items,omitempty"`
}

// Assertion validates the container after all steps ran.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type" json:"type"`

	// Count is used by final_count and error_count.
	Count *int `yaml:"count,omitempty" json:"count,omitempty"`

	// Items is used by final_items.
	Items *[]int `yaml:"items,omitempty" json:"items,omitempty"`

	// Error restricts error_count to one error code. Empty counts all.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Operation names.
const (
	OpAppend    = "append"
	OpElementAt = "element_at"
	OpRemoveAt  = "remove_at"
	OpCount     = "count"
	OpFilter    = "filter"
	OpSnapshot  = "snapshot"
)

// Assertion types.
const (
	AssertFinalCount = "final_count"
	AssertFinalItems = "final_items"
	AssertErrorCount = "error_count"
	AssertNoErrors   = "no_errors"
)

// scenarioFields are the top-level labels accepted in CUE scenarios.
var scenarioFields = map[string]bool{
	"name":        true,
	"description": true,
	"disciplines": true,
	"initial":     true,
	"steps":       true,
	"assertions":  true,
}

// LoadScenario reads a scenario from a .yaml, .yml or .cue file.
// Unknown fields are rejected in both formats.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		scenario, err = ParseCUE(path, data)
	default:
		scenario, err = ParseYAML(data)
	}
	if err != nil {
		return nil, err
	}
	return scenario, nil
}

// ParseYAML decodes and validates a YAML scenario.
func ParseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ParseCUE compiles a CUE scenario, requires it to be concrete, and decodes
// it. The filename is used only for error positions.
func ParseCUE(filename string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", formatCUEError(err))
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("failed to validate CUE: %w", formatCUEError(err))
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, fmt.Errorf("failed to read CUE fields: %w", formatCUEError(err))
	}
	for iter.Next() {
		if label := iter.Selector().String(); !scenarioFields[label] {
			return nil, fmt.Errorf("failed to decode CUE: unknown field %q", label)
		}
	}

	var scenario Scenario
	if err := v.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", formatCUEError(err))
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// formatCUEError keeps the first error of a CUE error list and prefixes its
// source position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return fmt.Errorf("%s: %w", positions[0], first)
	}
	return first
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, d := range s.Disciplines {
		if _, err := container.ParseDiscipline(d); err != nil {
			return fmt.Errorf("disciplines: %w", err)
		}
	}

	for i, step := range s.Steps {
		label := fmt.Sprintf("steps[%d]", i)
		if len(step.Concurrent) > 0 {
			if step.Op != "" {
				return fmt.Errorf("%s: op and concurrent are mutually exclusive", label)
			}
			for j, child := range step.Concurrent {
				if len(child.Concurrent) > 0 {
					return fmt.Errorf("%s.concurrent[%d]: concurrent blocks do not nest", label, j)
				}
				if err := validateStep(fmt.Sprintf("%s.concurrent[%d]", label, j), &child); err != nil {
					return err
				}
			}
			continue
		}
		if err := validateStep(label, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(label string, step *Step) error {
	switch step.Op {
	case "":
		return fmt.Errorf("%s: op is required", label)
	case OpAppend, OpCount, OpSnapshot:
	case OpElementAt, OpRemoveAt:
		if step.Index == nil {
			return fmt.Errorf("%s: index is required for %s", label, step.Op)
		}
	case OpFilter:
		if _, err := ParsePredicate(step.Predicate); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
	default:
		return fmt.Errorf("%s: unknown op %q", label, step.Op)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFinalCount, AssertErrorCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
	case AssertFinalItems:
		if a.Items == nil {
			return fmt.Errorf("assertions[%d]: items is required for final_items", index)
		}
	case AssertNoErrors:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// DisciplineList resolves the scenario's disciplines, defaulting to all.
func (s *Scenario) DisciplineList() []container.Discipline {
	if len(s.Disciplines) == 0 {
		return container.Disciplines
	}
	out := make([]container.Discipline, 0, len(s.Disciplines))
	for _, name := range s.Disciplines {
		d, err := container.ParseDiscipline(name)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
