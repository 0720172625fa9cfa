// Package harness runs conformance scenarios against containers of integers.
//
// A scenario is a list of container operations, executed once per
// discipline against a fresh container. Operations inside a concurrent block
// are submitted from separate goroutines at the same time; their trace
// events are still reported in declaration order so traces stay comparable.
//
// # Scenario Format
//
// Scenarios are YAML or CUE files with the following structure:
//
//	name: sentinel_append
//	description: "What this scenario validates"
//	disciplines: [exclusive, priority]
//	initial: [1, 2]
//	steps:
//	  - op: append
//	    value: 5
//	  - concurrent:
//	      - op: append
//	        value: 10
//	      - op: append
//	        value: null
//	        expect: {error: REJECTED_NIL_INSERT}
//	  - op: filter
//	    predicate: even
//	    expect: {items: [2, 10]}
//	assertions:
//	  - type: final_items
//	    items: [1, 2, 5, 10]
//
// A null append value is the sentinel and is always rejected.
//
// # Assertion Types
//
//   - final_count: the container holds exactly count elements
//   - final_items: the container holds exactly items, in order
//   - error_count: count steps failed, optionally with a given error code
//   - no_errors: every step succeeded
//
// # Golden Files
//
// RunWithGolden renders the traces of all runs as canonical JSON and
// compares them with testdata/golden/<name>.golden using goldie.
package harness
