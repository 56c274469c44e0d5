package uuid

import (
	"fmt"
	"sync/atomic"
)

// DeterministicGenerator issues sequential ids for tests that need
// stable, readable identifiers.
type DeterministicGenerator struct {
	prefix  string
	counter atomic.Uint64
}

// NewDeterministicGenerator creates a generator whose ids look like
// "<prefix>-1", "<prefix>-2", ...
func NewDeterministicGenerator(prefix string) *DeterministicGenerator {
	return &DeterministicGenerator{prefix: prefix}
}

// New returns the next sequential id.
func (g *DeterministicGenerator) New() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.counter.Add(1))
}
