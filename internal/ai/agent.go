package ai

import (
	"math"
	"math/rand"

	"github.com/undercroft/undercroft/internal/entities"
)

// untrainedThreshold: while every |Q| in a row stays below this, the
// row is considered untrained and selection falls back to personality
// alone.
const untrainedThreshold = 0.1

// biasFloor is the minimum bias any action keeps, so no action is ever
// completely unselectable.
const biasFloor = 0.1

// Hyperparameters are the Q-learning knobs. Use Clamped before
// handing them to an agent.
type Hyperparameters struct {
	Alpha        float64 // learning rate
	Gamma        float64 // discount factor
	Epsilon      float64 // exploration rate
	EpsilonMin   float64
	EpsilonDecay float64
}

// DefaultHyperparameters are the tuning the species store starts
// every table with.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		Alpha:        0.1,
		Gamma:        0.95,
		Epsilon:      0.3,
		EpsilonMin:   0.05,
		EpsilonDecay: 0.995,
	}
}

// Clamped forces every knob into its legal range.
func (h Hyperparameters) Clamped() Hyperparameters {
	h.Alpha = clampFloat(h.Alpha, 1e-4, 1)
	h.Gamma = clampFloat(h.Gamma, 0, 0.999)
	h.Epsilon = clampFloat(h.Epsilon, 0, 1)
	h.EpsilonMin = clampFloat(h.EpsilonMin, 0, h.Epsilon)
	h.EpsilonDecay = clampFloat(h.EpsilonDecay, 0.9, 0.9999)
	return h
}

// Agent is an epsilon-greedy tabular Q-learner whose greedy choice is
// weighted by species personality.
type Agent struct {
	hp  Hyperparameters
	rng *rand.Rand
}

// NewAgent creates an agent. A nil rng falls back to a time-seeded
// source, so tests inject their own for determinism.
func NewAgent(hp Hyperparameters, rng *rand.Rand) *Agent {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Agent{hp: hp.Clamped(), rng: rng}
}

// Epsilon is the current exploration rate.
func (a *Agent) Epsilon() float64 {
	return a.hp.Epsilon
}

// SelectAction chooses an action for the state. With probability
// epsilon it explores uniformly; otherwise it takes the argmax of the
// Q row weighted by personality bias. An effectively untrained row
// (all |Q| below the threshold) selects on bias alone, which is what
// gives a fresh species its innate disposition.
func (a *Agent) SelectAction(q *QTable, state int, p entities.Personality) Action {
	if a.rng.Float64() < a.hp.Epsilon {
		return ActionFromIndex(a.rng.Intn(ActionCount))
	}

	row := q.Row(state)

	maxAbs := 0.0
	for _, v := range row {
		if abs := math.Abs(float64(v)); abs > maxAbs {
			maxAbs = abs
		}
	}
	untrained := maxAbs < untrainedThreshold

	bestIdx := 0
	bestVal := math.Inf(-1)
	for i := range row {
		bias := ActionBias(ActionFromIndex(i), p)
		weighted := bias
		if !untrained {
			weighted = float64(row[i]) * bias
		}
		if weighted > bestVal {
			bestVal = weighted
			bestIdx = i
		}
	}
	return ActionFromIndex(bestIdx)
}

// Update applies one Bellman step for the (state, action, reward,
// nextState) transition, decays epsilon, and returns the applied
// delta for telemetry.
func (a *Agent) Update(q *QTable, state int, action Action, reward float64, nextState int) float64 {
	idx := action.Index()
	if idx < 0 {
		return 0
	}

	current := float64(q.At(state, idx))
	target := reward + a.hp.Gamma*float64(q.MaxAt(nextState))
	delta := a.hp.Alpha * (target - current)
	q.Set(state, idx, float32(current+delta))

	a.hp.Epsilon = math.Max(a.hp.EpsilonMin, a.hp.Epsilon*a.hp.EpsilonDecay)
	return delta
}

// ActionBias is the personality weighting for an action: a base
// constant plus linear terms in the relevant traits, floored so no
// action's bias drops below 0.1.
func ActionBias(action Action, p entities.Personality) float64 {
	p = p.Clamped()

	var bias float64
	switch action {
	case ActionAttackAggressive:
		bias = 1.15 + 0.3*(p.Aggression-0.5)
	case ActionAttackDefensive:
		bias = 1.05 + 0.2*(p.Caution-0.5) + 0.1*(p.Aggression-0.5)
	case ActionDefend:
		bias = 0.90 + 0.3*(p.Caution-0.5)
	case ActionFlee:
		bias = 0.70 + 0.4*(p.Caution-0.5) - 0.2*(p.Aggression-0.5)
	case ActionCallAllies:
		bias = 0.80 + 0.4*(p.PackMentality-0.5)
	case ActionAmbush:
		bias = 0.85 + 0.4*(p.Cunning-0.5)
	case ActionPatrol:
		bias = 0.85 + 0.3*(p.Exploration-0.5)
	case ActionMoveTowardThreat:
		bias = 1.00 + 0.3*(p.Aggression-0.5)
	case ActionMoveAwayThreat:
		bias = 0.75 + 0.3*(p.Caution-0.5)
	case ActionPatrolWaypoint:
		bias = 0.85 + 0.3*(p.Exploration-0.5)
	default:
		bias = biasFloor
	}

	if bias < biasFloor {
		return biasFloor
	}
	return bias
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
