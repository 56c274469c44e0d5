package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/undercroft/undercroft/internal/ai"
	"github.com/undercroft/undercroft/internal/dice"
	"github.com/undercroft/undercroft/internal/domain/combat"
	"github.com/undercroft/undercroft/internal/entities"
	dserr "github.com/undercroft/undercroft/internal/errors"
	"github.com/undercroft/undercroft/internal/events"
	playerservice "github.com/undercroft/undercroft/internal/services/player"
)

// Combat actions a player may take on their turn.
const (
	ActionAttack = "attack"
	ActionDefend = "defend"
	ActionItem   = "item"
)

// rewardMonsterDied is the terminal penalty fed to the Q-table when a
// monster is killed.
const rewardMonsterDied = -100

// rewardMonsterEscaped is the signal for a successful flee: the
// monster lives to fight another day.
const rewardMonsterEscaped = 10

// RequestFight starts a fight between the player and an adjacent idle
// monster, with the player acting first.
func (g *Game) RequestFight(ctx context.Context, playerID, monsterID string) error {
	out := &outbox{}

	g.mu.Lock()
	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return dserr.NotFoundf("player '%s' not found", playerID)
	}
	if g.fightForPlayerLocked(playerID) != nil {
		g.mu.Unlock()
		return dserr.Validation("already in a fight")
	}
	m, ok := g.monsterByID[monsterID]
	if !ok || !m.IsAlive() {
		g.mu.Unlock()
		return dserr.NotFoundf("monster '%s' not found", monsterID)
	}
	if chebyshev(p.X, p.Y, m.X, m.Y) != 1 {
		g.mu.Unlock()
		return dserr.Validation("too far away")
	}
	if g.fightForMonsterLocked(monsterID) != nil {
		g.mu.Unlock()
		return dserr.Validation("monster is already fighting; join instead")
	}

	f := combat.New(g.idGen.New(), monsterID, playerID, g.settings.TurnDuration, g.now())
	f.Log("%s squares off against the %s!", p.Name, m.Name)
	g.fights[f.ID] = f
	g.touchLocked()

	g.announceFightLocked(out, f, false)
	g.mu.Unlock()

	g.flush(out, true)
	return nil
}

// JoinFight inserts the player into a fight against an adjacent
// monster, acting just before the monster each round.
func (g *Game) JoinFight(ctx context.Context, playerID, fightID string) error {
	out := &outbox{}

	g.mu.Lock()
	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return dserr.NotFoundf("player '%s' not found", playerID)
	}
	if g.fightForPlayerLocked(playerID) != nil {
		g.mu.Unlock()
		return dserr.Validation("already in a fight")
	}
	f, ok := g.fights[fightID]
	if !ok || f.Status != combat.StatusActive {
		g.mu.Unlock()
		return dserr.NotFoundf("fight '%s' not found", fightID)
	}
	m, ok := g.monsterByID[f.MonsterID]
	if !ok {
		g.mu.Unlock()
		return dserr.NotFoundf("monster '%s' not found", f.MonsterID)
	}
	if chebyshev(p.X, p.Y, m.X, m.Y) != 1 {
		g.mu.Unlock()
		return dserr.Validation("too far away")
	}

	f.AddPlayer(playerID)
	f.Log("%s joins the fight!", p.Name)
	g.touchLocked()

	view := g.fightViewLocked(f, g.now())
	for _, pid := range f.PlayerIDs {
		g.sendLocked(out, pid, fightUpdatedMessage{Type: MsgFightUpdated, Fight: view})
	}
	g.broadcastStateLocked(out)
	g.mu.Unlock()

	g.flush(out, true)
	return nil
}

// DeclineFight dismisses a pending fight prompt. Nothing changes
// server-side; the client just gets told to close the prompt.
func (g *Game) DeclineFight(ctx context.Context, playerID string) error {
	out := &outbox{}

	g.mu.Lock()
	if _, ok := g.players[playerID]; !ok {
		g.mu.Unlock()
		return dserr.NotFoundf("player '%s' not found", playerID)
	}
	g.sendLocked(out, playerID, fightDeclinedMessage{Type: MsgFightDeclined})
	g.mu.Unlock()

	g.flush(out, true)
	return nil
}

// FleeFight removes the player from a fight they are in. The fight
// stays active for any remaining players; fleeing alone releases the
// monster.
func (g *Game) FleeFight(ctx context.Context, playerID, fightID string) error {
	out := &outbox{}

	g.mu.Lock()
	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return dserr.NotFoundf("player '%s' not found", playerID)
	}
	f, ok := g.fights[fightID]
	if !ok || !f.HasPlayer(playerID) {
		g.mu.Unlock()
		return dserr.Validation("not in that fight")
	}

	g.leaveFightLocked(out, p, f)
	g.broadcastStateLocked(out)
	g.mu.Unlock()

	g.flush(out, true)
	return nil
}

// leaveFightLocked is the shared exit path for flee, disconnect, and
// permanent removal: the player leaves the turn order, gets the
// post-fight grace window, and the remaining party is told. Caller
// holds g.mu.
func (g *Game) leaveFightLocked(out *outbox, p *entities.Player, f *combat.Fight) {
	now := g.now()
	f.RemovePlayer(p.ID, now)
	f.Log("%s flees the fight!", p.Name)
	p.IsDefending = false
	p.GrantFightImmunity(now)
	g.touchLocked()

	g.sendLocked(out, p.ID, fightLeftMessage{Type: MsgFightLeft, FightID: f.ID})

	if f.Status == combat.StatusFled {
		// Last player out: the monster is released, fight dissolves.
		delete(g.fights, f.ID)
		return
	}

	view := g.fightViewLocked(f, now)
	for _, pid := range f.PlayerIDs {
		g.sendLocked(out, pid, playerFledMessage{Type: MsgPlayerFled, FightID: f.ID, PlayerID: p.ID})
		g.sendLocked(out, pid, fightUpdatedMessage{Type: MsgFightUpdated, Fight: view})
	}
}

// CombatAction resolves one player turn: attack, defend, or item.
func (g *Game) CombatAction(ctx context.Context, playerID, fightID, action string) error {
	out := &outbox{}

	g.mu.Lock()
	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return dserr.NotFoundf("player '%s' not found", playerID)
	}
	f, ok := g.fights[fightID]
	if !ok || f.Status != combat.StatusActive {
		g.mu.Unlock()
		return dserr.NotFoundf("fight '%s' not found", fightID)
	}
	if !f.HasPlayer(playerID) {
		g.mu.Unlock()
		return dserr.Validation("not in that fight")
	}
	if !f.IsPlayersTurn(playerID) {
		g.mu.Unlock()
		return dserr.Validation("not your turn")
	}
	m, ok := g.monsterByID[f.MonsterID]
	if !ok {
		// Monster vanished out from under the fight; dissolve it.
		delete(g.fights, f.ID)
		g.mu.Unlock()
		return dserr.NotFoundf("monster '%s' not found", f.MonsterID)
	}

	switch action {
	case ActionAttack:
		if err := g.playerAttackLocked(ctx, out, p, f, m); err != nil {
			g.mu.Unlock()
			return err
		}
	case ActionDefend:
		p.IsDefending = true
		f.Log("%s raises their guard.", p.Name)
		g.advanceFightLocked(f)
	case ActionItem:
		roll, err := g.roller.Roll(1, 20, 0)
		if err != nil {
			g.mu.Unlock()
			return dserr.Wrap(err, "healing roll failed")
		}
		healed := p.Heal(roll.Total)
		f.Log("%s quaffs a potion and recovers %d HP.", p.Name, healed)
		g.advanceFightLocked(f)
	default:
		g.mu.Unlock()
		return dserr.InvalidArgumentf("unknown combat action '%s'", action)
	}

	g.touchLocked()
	if f.Status == combat.StatusActive {
		view := g.fightViewLocked(f, g.now())
		for _, pid := range f.PlayerIDs {
			g.sendLocked(out, pid, fightUpdatedMessage{Type: MsgFightUpdated, Fight: view})
		}
	}
	g.broadcastStateLocked(out)
	g.mu.Unlock()

	g.flush(out, true)
	return nil
}

// playerAttackLocked rolls the player's attack and applies the
// outcome, ending the fight on a kill. Caller holds g.mu.
func (g *Game) playerAttackLocked(ctx context.Context, out *outbox, p *entities.Player, f *combat.Fight, m *entities.Monster) error {
	atk, err := dice.RollAttack(g.roller, p.StrModifier(), m.Stats.AC)
	if err != nil {
		return dserr.Wrap(err, "attack roll failed")
	}

	if !atk.Hit {
		f.Log("%s swings at the %s and misses (%d).", p.Name, m.Name, atk.Total)
		g.advanceFightLocked(f)
		return nil
	}

	dmg, err := dice.RollDamage(g.roller, p.DamageDice, atk.Critical)
	if err != nil {
		return dserr.Wrap(err, "damage roll failed")
	}
	dealt := m.Stats.TakeDamage(dmg)
	if atk.Critical {
		f.Log("%s crits the %s for %d damage!", p.Name, m.Name, dealt)
	} else {
		f.Log("%s hits the %s for %d damage.", p.Name, m.Name, dealt)
	}

	// Taking damage is the negative signal for whatever the monster
	// last chose to do.
	g.emitRewardLocked(events.EventTypeDamageDealt, m, -float64(dealt))

	if !m.IsAlive() {
		g.endFightVictoryLocked(ctx, out, f, m, false)
		return nil
	}

	g.advanceFightLocked(f)
	return nil
}

// advanceFightLocked rotates the turn and clears the defend stance of
// whichever player's turn is beginning. Caller holds g.mu.
func (g *Game) advanceFightLocked(f *combat.Fight) {
	f.AdvanceTurn(g.now())
	cur := f.CurrentTurnID()
	if cur != f.MonsterID {
		if p, ok := g.players[cur]; ok {
			p.IsDefending = false
		}
	}
}

// endFightVictoryLocked finishes a fight the players won, either by
// killing the monster or by it fleeing (half XP). Caller holds g.mu.
func (g *Game) endFightVictoryLocked(ctx context.Context, out *outbox, f *combat.Fight, m *entities.Monster, monsterFled bool) {
	now := g.now()
	f.End(combat.ResultVictory)

	if monsterFled {
		f.Log("The %s turns tail and vanishes into the dark!", m.Name)
		g.emitRewardLocked(events.EventTypeMonsterFled, m, rewardMonsterEscaped)
	} else {
		f.Log("The %s is slain!", m.Name)
		g.emitRewardLocked(events.EventTypeMonsterDied, m, rewardMonsterDied)
	}

	xpEach := playerservice.XPForCR(m.Stats.ChallengeRating)
	if monsterFled {
		xpEach /= 2
	}

	for _, pid := range f.PlayerIDs {
		p, ok := g.players[pid]
		if !ok {
			continue
		}
		p.IsDefending = false
		p.GrantFightImmunity(now)

		if g.stats != nil {
			token := g.tokenForPlayerLocked(pid)
			if token != "" {
				var err error
				if monsterFled {
					err = g.stats.AwardXP(ctx, token, xpEach)
				} else {
					_, err = g.stats.AwardKill(ctx, token, m.Stats.ChallengeRating)
				}
				if err != nil {
					g.log.Warn("failed to award xp",
						zap.String("player", pid),
						zap.Error(err))
				}
			}
		}

		g.sendLocked(out, pid, fightEndedMessage{
			Type:        MsgFightEnded,
			FightID:     f.ID,
			Result:      combat.ResultVictory,
			XPEarned:    xpEach,
			MonsterType: m.MonsterType,
		})
	}

	g.bus.EmitAsync(&events.FightEndedEvent{
		BaseEvent:   events.BaseEvent{Type: events.EventTypeFightEnded, GameID: g.id, Timestamp: now},
		FightID:     f.ID,
		MonsterType: m.MonsterType,
		Result:      combat.ResultVictory,
		XPEarned:    xpEach,
		PlayerIDs:   append([]string(nil), f.PlayerIDs...),
	})

	delete(g.monsterByID, m.ID)
	delete(g.fights, f.ID)
	g.touchLocked()

	g.checkCompletionLocked(ctx, out)
}

// endFightDefeatLocked finishes a fight the monster won. The fallen
// players have already been removed from the fight, so the caller
// passes the roster it snapshotted before reaping. Caller holds g.mu.
func (g *Game) endFightDefeatLocked(out *outbox, f *combat.Fight, m *entities.Monster, fallen []string) {
	f.End(combat.ResultDefeat)
	f.Log("The %s stands victorious.", m.Name)

	for _, pid := range fallen {
		g.sendLocked(out, pid, fightEndedMessage{
			Type:        MsgFightEnded,
			FightID:     f.ID,
			Result:      combat.ResultDefeat,
			MonsterType: m.MonsterType,
		})
	}

	g.bus.EmitAsync(&events.FightEndedEvent{
		BaseEvent:   events.BaseEvent{Type: events.EventTypeFightEnded, GameID: g.id, Timestamp: g.now()},
		FightID:     f.ID,
		MonsterType: m.MonsterType,
		Result:      combat.ResultDefeat,
		PlayerIDs:   append([]string(nil), fallen...),
	})

	delete(g.fights, f.ID)
	g.touchLocked()
}

// announceFightLocked broadcasts a fight_started and emits the event.
// Caller holds g.mu.
func (g *Game) announceFightLocked(out *outbox, f *combat.Fight, monsterInitiated bool) {
	now := g.now()
	view := g.fightViewLocked(f, now)
	g.broadcastLocked(out, fightStartedMessage{
		Type:             MsgFightStarted,
		Fight:            view,
		MonsterInitiated: monsterInitiated,
	})

	monsterType := ""
	if m, ok := g.monsterByID[f.MonsterID]; ok {
		monsterType = m.MonsterType
	}
	initiator := ""
	if len(f.PlayerIDs) > 0 {
		initiator = f.PlayerIDs[0]
	}
	g.bus.EmitAsync(&events.FightStartedEvent{
		BaseEvent:        events.BaseEvent{Type: events.EventTypeFightStarted, GameID: g.id, Timestamp: now},
		FightID:          f.ID,
		MonsterID:        f.MonsterID,
		MonsterType:      monsterType,
		InitiatorID:      initiator,
		MonsterInitiated: monsterInitiated,
	})
}

// processMonsterCombatTurnsLocked lets every monster whose turn it is
// take its combat action. Caller holds g.mu; reports whether anything
// happened.
func (g *Game) processMonsterCombatTurnsLocked(ctx context.Context, out *outbox) bool {
	var due []*combat.Fight
	for _, f := range g.fights {
		if f.Status == combat.StatusActive && f.IsMonsterTurn() {
			due = append(due, f)
		}
	}

	for _, f := range due {
		g.processMonsterTurnLocked(ctx, out, f)
	}
	return len(due) > 0
}

// processMonsterTurnLocked runs one monster combat turn against the
// front player in the fight. Caller holds g.mu.
func (g *Game) processMonsterTurnLocked(ctx context.Context, out *outbox, f *combat.Fight) {
	m, ok := g.monsterByID[f.MonsterID]
	if !ok {
		delete(g.fights, f.ID)
		return
	}
	if len(f.PlayerIDs) == 0 {
		delete(g.fights, f.ID)
		return
	}
	target, ok := g.players[f.PlayerIDs[0]]
	if !ok {
		f.RemovePlayer(f.PlayerIDs[0], g.now())
		return
	}

	world := g.buildWorldStateLocked(m)
	action := g.monsters.DecideCombatAction(m, g.tick, world)

	switch action {
	case ai.ActionDefend:
		f.Log("The %s braces itself.", m.Name)
	case ai.ActionFlee:
		g.endFightVictoryLocked(ctx, out, f, m, true)
		g.broadcastStateLocked(out)
		return
	case ai.ActionCallAllies:
		f.Log("The %s lets out a piercing shriek!", m.Name)
	default:
		g.monsterAttackLocked(out, f, m, target, action)
	}

	g.reapDeadPlayersLocked(ctx, out, f, m)
	if f.Status != combat.StatusActive {
		return
	}

	g.advanceFightLocked(f)
	view := g.fightViewLocked(f, g.now())
	for _, pid := range f.PlayerIDs {
		g.sendLocked(out, pid, fightUpdatedMessage{Type: MsgFightUpdated, Fight: view})
	}
}

// monsterAttackLocked resolves a monster attack action against the
// target, including the per-stance modifiers. Caller holds g.mu.
func (g *Game) monsterAttackLocked(out *outbox, f *combat.Fight, m *entities.Monster, target *entities.Player, action ai.Action) {
	attackBonus := m.StrModifier()
	damageBonus := 0
	targetAC := target.EffectiveAC()

	switch action {
	case ai.ActionAttackAggressive:
		attackBonus++
		damageBonus++
	case ai.ActionAttackDefensive:
		targetAC--
	case ai.ActionAmbush:
		damageBonus++
	}

	atk, err := dice.RollAttack(g.roller, attackBonus, targetAC)
	if err != nil {
		g.log.Error("monster attack roll failed", zap.Error(err))
		return
	}
	if action == ai.ActionAmbush && !atk.Hit {
		// An ambusher gets a second go when the first strike whiffs.
		if reroll, rerr := dice.RollAttack(g.roller, attackBonus, targetAC); rerr == nil {
			atk = reroll
		}
	}

	if !atk.Hit {
		f.Log("The %s lunges at %s and misses.", m.Name, target.Name)
		g.emitRewardLocked(events.EventTypeDamageDealt, m, -1)
		g.sendToFightLocked(out, f, monsterAttacksMessage{
			Type:     MsgMonsterAttacks,
			FightID:  f.ID,
			TargetID: target.ID,
			Action:   string(action),
			Hit:      false,
			TargetHP: target.HP,
		})
		return
	}

	dmg, err := dice.RollDamage(g.roller, m.DamageDice, atk.Critical)
	if err != nil {
		g.log.Error("monster damage roll failed", zap.Error(err))
		return
	}
	dealt := target.TakeDamage(dmg + damageBonus)

	if atk.Critical {
		f.Log("The %s crits %s for %d damage!", m.Name, target.Name, dealt)
	} else {
		f.Log("The %s hits %s for %d damage.", m.Name, target.Name, dealt)
	}

	reward := float64(dealt)
	if atk.Critical {
		reward *= 2
	}
	g.emitRewardLocked(events.EventTypeDamageDealt, m, reward)

	g.sendToFightLocked(out, f, monsterAttacksMessage{
		Type:     MsgMonsterAttacks,
		FightID:  f.ID,
		TargetID: target.ID,
		Action:   string(action),
		Hit:      true,
		Critical: atk.Critical,
		Damage:   dealt,
		TargetHP: target.HP,
	})
}

// reapDeadPlayersLocked respawns players the monster just killed and
// flips the fight to defeat when nobody is left. Caller holds g.mu.
func (g *Game) reapDeadPlayersLocked(ctx context.Context, out *outbox, f *combat.Fight, m *entities.Monster) {
	roster := append([]string(nil), f.PlayerIDs...)
	for _, pid := range roster {
		p, ok := g.players[pid]
		if !ok || p.IsAlive() {
			continue
		}
		g.handlePlayerDeathLocked(ctx, out, p, f)
	}
	if len(f.PlayerIDs) == 0 {
		g.endFightDefeatLocked(out, f, m, roster)
	}
}

// handlePlayerDeathLocked takes a dead player out of the fight and
// respawns them at the entrance with the grace window. Caller holds
// g.mu.
func (g *Game) handlePlayerDeathLocked(ctx context.Context, out *outbox, p *entities.Player, f *combat.Fight) {
	now := g.now()
	f.RemovePlayer(p.ID, now)
	f.Log("%s falls!", p.Name)

	if g.stats != nil {
		if token := g.tokenForPlayerLocked(p.ID); token != "" {
			if err := g.stats.RecordDeath(ctx, token); err != nil {
				g.log.Warn("failed to record death",
					zap.String("player", p.ID),
					zap.Error(err))
			}
		}
	}

	x, y, ok := g.findSpawnLocked()
	if !ok {
		x, y = g.spawnX, g.spawnY
	}
	p.Respawn(x, y)
	p.GrantFightImmunity(now)
	g.enterRoomLocked(ctx, out, p)
	g.touchLocked()

	g.sendLocked(out, p.ID, fightLeftMessage{Type: MsgFightLeft, FightID: f.ID})
	g.broadcastLocked(out, playerRespawnedMessage{
		Type:     MsgPlayerRespawned,
		PlayerID: p.ID,
		X:        x,
		Y:        y,
		HP:       p.HP,
	})
}

// processTurnTimeoutsLocked kills any player who sat on their combat
// turn past the timer. Caller holds g.mu; reports whether anything
// happened.
func (g *Game) processTurnTimeoutsLocked(ctx context.Context, out *outbox) bool {
	now := g.now()
	acted := false

	var active []*combat.Fight
	for _, f := range g.fights {
		if f.Status == combat.StatusActive {
			active = append(active, f)
		}
	}

	for _, f := range active {
		if f.IsMonsterTurn() || f.TimeRemaining(now) > 0 {
			continue
		}
		pid := f.CurrentTurnID()
		p, ok := g.players[pid]
		if !ok {
			f.RemovePlayer(pid, now)
			continue
		}
		acted = true
		roster := append([]string(nil), f.PlayerIDs...)
		// Freezing up in melee is lethal.
		p.HP = 0
		g.handlePlayerDeathLocked(ctx, out, p, f)

		m := g.monsterByID[f.MonsterID]
		if len(f.PlayerIDs) == 0 {
			if m != nil {
				g.endFightDefeatLocked(out, f, m, roster)
			} else {
				delete(g.fights, f.ID)
			}
			continue
		}

		view := g.fightViewLocked(f, now)
		for _, remaining := range f.PlayerIDs {
			g.sendLocked(out, remaining, fightUpdatedMessage{Type: MsgFightUpdated, Fight: view})
		}
	}
	return acted
}

// sendToFightLocked queues a message for every participant. Caller
// holds g.mu.
func (g *Game) sendToFightLocked(out *outbox, f *combat.Fight, payload interface{}) {
	for _, pid := range f.PlayerIDs {
		g.sendLocked(out, pid, payload)
	}
}

// emitRewardLocked publishes a learning signal built from the
// monster's last recorded decision. Monsters that have not decided yet
// have no snapshot, and no event is emitted. Caller holds g.mu.
func (g *Game) emitRewardLocked(eventType events.EventType, m *entities.Monster, reward float64) {
	snapshot := m.Intelligence.Snapshot(m.MonsterType, m.Stats.HPRatio())
	if snapshot == nil {
		return
	}
	m.Intelligence.LastReward = reward

	g.bus.EmitAsync(&events.RewardEvent{
		BaseEvent:   events.BaseEvent{Type: eventType, GameID: g.id, Timestamp: g.now()},
		MonsterID:   m.ID,
		MonsterType: m.MonsterType,
		Reward:      reward,
		Snapshot:    snapshot,
	})
}
