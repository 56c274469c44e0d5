package ai

import (
	"github.com/undercroft/undercroft/internal/entities"
)

const (
	// memoryDecayPerTick is subtracted from an event's intensity for
	// every tick since it was recorded.
	memoryDecayPerTick = 0.02

	// memoryFloor is the intensity below which an event is forgotten.
	memoryFloor = 0.05

	// memoryLimit bounds how many events a single monster retains.
	memoryLimit = 16
)

// Remember appends a stimulus to a monster's memory, evicting the
// weakest event once the memory is full.
func Remember(events []entities.MemoryEvent, ev entities.MemoryEvent) []entities.MemoryEvent {
	if len(events) < memoryLimit {
		return append(events, ev)
	}

	weakest := 0
	for i, e := range events {
		if e.Intensity < events[weakest].Intensity {
			weakest = i
		}
	}
	events[weakest] = ev
	return events
}

// DecayMemory ages every event linearly to the given tick and drops
// those that fell below the floor. The surviving events keep their
// recorded tick; decay is recomputed from scratch each call so it is
// safe to call with the same tick twice.
func DecayMemory(events []entities.MemoryEvent, tick int64) []entities.MemoryEvent {
	out := events[:0]
	for _, e := range events {
		age := tick - e.Tick
		if age < 0 {
			age = 0
		}
		decayed := e.Intensity - memoryDecayPerTick*float64(age)
		if decayed < memoryFloor {
			continue
		}
		out = append(out, e)
	}
	return out
}

// StrongestThreat returns the position of the highest-intensity
// remembered event, or false when the memory is empty.
func StrongestThreat(events []entities.MemoryEvent) (entities.Position, bool) {
	if len(events) == 0 {
		return entities.Position{}, false
	}
	best := events[0]
	for _, e := range events[1:] {
		if e.Intensity > best.Intensity {
			best = e
		}
	}
	return entities.Position{X: best.X, Y: best.Y}, true
}
