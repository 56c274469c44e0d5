package ai

// QTable is a dense (states × actions) table of expected long-term
// reward, stored as one flat row-major float32 buffer. Every
// individual of a species shares one table.
type QTable struct {
	States  int
	Actions int
	Values  []float32
}

// NewQTable allocates a zeroed table.
func NewQTable(states, actions int) *QTable {
	return &QTable{
		States:  states,
		Actions: actions,
		Values:  make([]float32, states*actions),
	}
}

// QTableFromValues wraps a stored buffer, reshaping when the stored
// dimensions differ from the requested ones: the overlapping top-left
// block is copied and the rest zero-filled, so a table survives an
// encoder growing or shrinking a dimension.
func QTableFromValues(values []float32, storedStates, storedActions, states, actions int) *QTable {
	if storedStates == states && storedActions == actions && len(values) == states*actions {
		buf := make([]float32, len(values))
		copy(buf, values)
		return &QTable{States: states, Actions: actions, Values: buf}
	}

	q := NewQTable(states, actions)
	copyStates := min(storedStates, states)
	copyActions := min(storedActions, actions)
	for s := 0; s < copyStates; s++ {
		for a := 0; a < copyActions; a++ {
			src := s*storedActions + a
			if src >= len(values) {
				continue
			}
			q.Values[s*actions+a] = values[src]
		}
	}
	return q
}

// At returns Q[state,action]; out-of-range lookups are zero.
func (q *QTable) At(state, action int) float32 {
	if state < 0 || state >= q.States || action < 0 || action >= q.Actions {
		return 0
	}
	return q.Values[state*q.Actions+action]
}

// Set writes Q[state,action], ignoring out-of-range writes.
func (q *QTable) Set(state, action int, v float32) {
	if state < 0 || state >= q.States || action < 0 || action >= q.Actions {
		return
	}
	q.Values[state*q.Actions+action] = v
}

// Row returns the action-value slice for a state. The slice aliases
// the table; callers must not retain it across updates.
func (q *QTable) Row(state int) []float32 {
	if state < 0 || state >= q.States {
		return make([]float32, q.Actions)
	}
	return q.Values[state*q.Actions : (state+1)*q.Actions]
}

// MaxAt returns the best action value in a state.
func (q *QTable) MaxAt(state int) float32 {
	row := q.Row(state)
	best := row[0]
	for _, v := range row[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

// Scale multiplies every value by factor, used for generational
// inheritance when a species record rolls over.
func (q *QTable) Scale(factor float32) {
	for i := range q.Values {
		q.Values[i] *= factor
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
