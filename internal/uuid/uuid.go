// Package uuid hides id generation behind a tiny interface so games,
// monsters, and fights get stable ids in tests (see
// DeterministicGenerator) while production uses random UUIDs.
package uuid

import (
	"github.com/google/uuid"
)

// Generator issues unique ids.
type Generator interface {
	New() string
}

// GoogleUUIDGenerator is the production Generator, backed by random
// v4 UUIDs.
type GoogleUUIDGenerator struct{}

// New returns a fresh random UUID string.
func (g *GoogleUUIDGenerator) New() string {
	return uuid.New().String()
}

// NewGoogleUUIDGenerator creates a new GoogleUUIDGenerator.
func NewGoogleUUIDGenerator() *GoogleUUIDGenerator {
	return &GoogleUUIDGenerator{}
}
