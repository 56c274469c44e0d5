package ws

// Client message types.
const (
	msgReconnect    = "reconnect"
	msgMove         = "move"
	msgInteract     = "interact"
	msgRequestFight = "request_fight"
	msgJoinFight    = "join_fight"
	msgDeclineFight = "decline_fight"
	msgFleeFight    = "flee_fight"
	msgCombatAction = "combat_action"
	msgPing         = "ping"
)

// clientMessage is the union of every client-to-server message. Only
// the fields relevant to the given Type are read.
type clientMessage struct {
	Type      string `json:"type"`
	PlayerID  string `json:"player_id,omitempty"`
	DX        int    `json:"dx,omitempty"`
	DY        int    `json:"dy,omitempty"`
	MonsterID string `json:"monster_id,omitempty"`
	FightID   string `json:"fight_id,omitempty"`
	Action    string `json:"action,omitempty"`
}

type pongMessage struct {
	Type string `json:"type"`
}
