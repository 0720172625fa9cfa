package harness

import (
	"fmt"
	"strconv"
	"strings"
)

// Predicate selects elements for the filter op.
type Predicate func(int) bool

var namedPredicates = map[string]Predicate{
	"even":     func(v int) bool { return v%2 == 0 },
	"odd":      func(v int) bool { return v%2 != 0 },
	"positive": func(v int) bool { return v > 0 },
	"negative": func(v int) bool { return v < 0 },
	"all":      func(int) bool { return true },
	"none":     func(int) bool { return false },
}

// ParsePredicate resolves a predicate name: even, odd, positive, negative,
// all, none, gt:N or lt:N.
func ParsePredicate(name string) (Predicate, error) {
	if p, ok := namedPredicates[name]; ok {
		return p, nil
	}

	op, arg, found := strings.Cut(name, ":")
	if found {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("predicate %q: bad operand: %w", name, err)
		}
		switch op {
		case "gt":
			return func(v int) bool { return v > n }, nil
		case "lt":
			return func(v int) bool { return v < n }, nil
		}
	}
	return nil, fmt.Errorf("unknown predicate %q", name)
}
