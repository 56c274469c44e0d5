package ai

import (
	"math"

	"go.uber.org/zap"

	"github.com/undercroft/undercroft/internal/entities"
)

// DecisionContext is everything the engine needs to pick one action
// for one monster on one tick.
type DecisionContext struct {
	Monster     *entities.Monster
	Personality entities.Personality
	QTable      *QTable
	Tick        int64
	World       *entities.WorldState
}

// DecisionResult is the chosen action plus the encoded state it was
// chosen in, for callers that want to close the learning loop later.
type DecisionResult struct {
	Action     Action
	StateIndex int
	State      DiscreteState
	Confidence float64
}

// LearnResult reports one Bellman update for the species history.
type LearnResult struct {
	Delta   float64
	QBefore float64
	QAfter  float64
	Epsilon float64
}

// Engine ties the encoder and agent together into the per-tick
// decision pipeline and the reward-side learning path.
type Engine struct {
	agent *Agent
	log   *zap.Logger
}

// NewEngine creates an engine around an agent.
func NewEngine(agent *Agent, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{agent: agent, log: logger}
}

// Decide runs the full pipeline: decay memory, gate perception by
// intelligence, encode, select, and record the decision into the
// monster's intelligence state so a later reward can reference it.
func (e *Engine) Decide(ctx DecisionContext) DecisionResult {
	m := ctx.Monster

	m.Intelligence.MemoryEvents = DecayMemory(m.Intelligence.MemoryEvents, ctx.Tick)

	stateIndex, discrete := Encode(ctx.World, m.IsOblivious())
	action := e.agent.SelectAction(ctx.QTable, stateIndex, ctx.Personality)

	m.Intelligence.LastStateIndex = stateIndex
	m.Intelligence.LastAction = string(action)
	m.Intelligence.LastDecisionTick = ctx.Tick
	m.Intelligence.QTableVersion = SchemaVersion
	m.Intelligence.LastWorldState = ctx.World.Clone()

	result := DecisionResult{
		Action:     action,
		StateIndex: stateIndex,
		State:      discrete,
		Confidence: confidence(ctx.QTable, stateIndex),
	}

	e.log.Debug("ai decision",
		zap.String("monster", m.ID),
		zap.String("type", m.MonsterType),
		zap.String("action", string(action)),
		zap.Int("state", stateIndex),
		zap.Float64("confidence", result.Confidence))

	return result
}

// Learn applies one Bellman update for a completed (state, action)
// transition and reports the before/after values.
func (e *Engine) Learn(q *QTable, state, nextState int, action Action, reward float64) LearnResult {
	idx := action.Index()
	before := float64(q.At(state, idx))
	delta := e.agent.Update(q, state, action, reward, nextState)

	return LearnResult{
		Delta:   delta,
		QBefore: before,
		QAfter:  before + delta,
		Epsilon: e.agent.Epsilon(),
	}
}

// confidence squashes the best Q-value in the state through a sigmoid;
// an untouched row yields 0.5, the "no idea" midpoint.
func confidence(q *QTable, state int) float64 {
	return 1.0 / (1.0 + math.Exp(-float64(q.MaxAt(state))))
}
