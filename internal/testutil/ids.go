package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns predictable run IDs: "<prefix>-1", "<prefix>-2", ...
//
// It satisfies store.IDGenerator so run log tests and golden output do not
// depend on UUIDv7 timestamps.
type FixedIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedIDGenerator creates a generator. An empty prefix defaults to "test-run".
func NewFixedIDGenerator(prefix string) *FixedIDGenerator {
	if prefix == "" {
		prefix = "test-run"
	}
	return &FixedIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
