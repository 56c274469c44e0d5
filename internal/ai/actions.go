package ai

// Action is one of the discrete choices a monster can learn over.
type Action string

const (
	ActionAttackAggressive Action = "attack_aggressive"
	ActionAttackDefensive  Action = "attack_defensive"
	ActionDefend           Action = "defend"
	ActionFlee             Action = "flee"
	ActionCallAllies       Action = "call_allies"
	ActionAmbush           Action = "ambush"
	ActionPatrol           Action = "patrol"
	ActionMoveTowardThreat Action = "move_toward_threat"
	ActionMoveAwayThreat   Action = "move_away_from_threat"
	ActionPatrolWaypoint   Action = "patrol_waypoint"
)

// actionOrder fixes the Q-table column for each action. Appending is
// safe; reordering invalidates every stored table.
var actionOrder = [...]Action{
	ActionAttackAggressive,
	ActionAttackDefensive,
	ActionDefend,
	ActionFlee,
	ActionCallAllies,
	ActionAmbush,
	ActionPatrol,
	ActionMoveTowardThreat,
	ActionMoveAwayThreat,
	ActionPatrolWaypoint,
}

// ActionCount is the number of Q-table columns.
const ActionCount = len(actionOrder)

// Index returns the action's Q-table column, or -1 for an unknown
// action name.
func (a Action) Index() int {
	for i, action := range actionOrder {
		if action == a {
			return i
		}
	}
	return -1
}

// ActionFromIndex is the inverse of Index; out-of-range indexes come
// back as patrol, the harmless default.
func ActionFromIndex(i int) Action {
	if i < 0 || i >= len(actionOrder) {
		return ActionPatrol
	}
	return actionOrder[i]
}

// Actions returns the actions in Q-table column order.
func Actions() []Action {
	out := make([]Action, len(actionOrder))
	copy(out, actionOrder[:])
	return out
}

// IsCombat reports whether choosing the action means engaging in
// melee rather than repositioning.
func (a Action) IsCombat() bool {
	switch a {
	case ActionAttackAggressive, ActionAttackDefensive, ActionAmbush:
		return true
	}
	return false
}

// IsMovement reports whether the action moves the monster on the map.
func (a Action) IsMovement() bool {
	switch a {
	case ActionPatrol, ActionMoveTowardThreat, ActionMoveAwayThreat, ActionPatrolWaypoint, ActionFlee:
		return true
	}
	return false
}
