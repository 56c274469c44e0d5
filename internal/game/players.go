package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/undercroft/undercroft/internal/dungeon"
	"github.com/undercroft/undercroft/internal/entities"
	dserr "github.com/undercroft/undercroft/internal/errors"
	"github.com/undercroft/undercroft/internal/events"
)

// AddPlayer attaches a connection to the game, reusing an existing
// player when the token or the client-supplied id matches one, and
// creating a fresh player otherwise. Returns the player id and whether
// this was a reconnection.
func (g *Game) AddPlayer(ctx context.Context, conn Conn, token, existingPlayerID, name string) (string, bool, error) {
	out := &outbox{}
	var oldConn Conn

	g.mu.Lock()
	if !g.initialized {
		g.mu.Unlock()
		return "", false, dserr.Internal("game is not initialized")
	}

	var p *entities.Player
	isReconnection := false

	// Token first: the same browser session always lands on the same
	// player. Then the client-claimed id, which binds the token to it.
	if pid, ok := g.tokenToPlayer[token]; ok {
		if existing, live := g.players[pid]; live {
			p = existing
			isReconnection = true
		}
	}
	if p == nil && existingPlayerID != "" {
		if existing, live := g.players[existingPlayerID]; live {
			p = existing
			isReconnection = true
			g.tokenToPlayer[token] = existingPlayerID
		}
	}

	if p == nil {
		if g.settings.MaxPlayersPerGame > 0 && len(g.players) >= g.settings.MaxPlayersPerGame {
			g.mu.Unlock()
			return "", false, dserr.Validation("game is full")
		}

		x, y, ok := g.findSpawnLocked()
		if !ok {
			g.mu.Unlock()
			return "", false, dserr.Internal("no walkable spawn tile")
		}

		if name == "" {
			name = "Adventurer"
		}
		p = entities.NewPlayer(g.idGen.New(), name, x, y)
		p.Color = playerColors[len(g.players)%len(playerColors)]
		g.players[p.ID] = p
		g.tokenToPlayer[token] = p.ID

		g.bus.EmitAsync(&events.PlayerJoinedEvent{
			BaseEvent: events.BaseEvent{Type: events.EventTypePlayerJoined, GameID: g.id, Timestamp: g.now()},
			PlayerID:  p.ID,
			Name:      p.Name,
		})
	}

	oldConn = g.conns[p.ID]
	g.conns[p.ID] = conn
	g.touchLocked()

	// Resolve room membership before the welcome snapshot so a first
	// visit's spawns are already in the viewport, but deliver the
	// welcome ahead of the room announcement.
	roomOut := &outbox{}
	g.enterRoomLocked(ctx, roomOut, p)

	now := g.now()
	out.add(p.ID, conn, welcomeMessage{
		Type:           MsgWelcome,
		PlayerID:       p.ID,
		IsReconnection: isReconnection,
		GameID:         g.id,
		GameName:       g.name,
		MapWidth:       g.width,
		MapHeight:      g.height,
		State:          g.stateUpdateLocked(p.ID, now),
	})
	out.deliveries = append(out.deliveries, roomOut.deliveries...)

	if !isReconnection {
		for otherID, otherConn := range g.conns {
			if otherID == p.ID {
				continue
			}
			out.add(otherID, otherConn, playerJoinedMessage{
				Type:     MsgPlayerJoined,
				PlayerID: p.ID,
				Name:     p.Name,
			})
		}
	}
	g.broadcastStateLocked(out)
	g.mu.Unlock()

	if oldConn != nil {
		_ = oldConn.Close()
	}
	g.flush(out, true)

	g.log.Info("player attached",
		zap.String("player", p.ID),
		zap.Bool("reconnection", isReconnection))
	return p.ID, isReconnection, nil
}

// findSpawnLocked picks a walkable, unoccupied tile: the spawn point,
// then a 7x7 box around it, then the first floor tile in any room.
// Caller holds g.mu.
func (g *Game) findSpawnLocked() (int, int, bool) {
	usable := func(x, y int) bool {
		return g.tiles.At(x, y).IsWalkable() && !g.occupiedLocked(x, y, "")
	}

	if usable(g.spawnX, g.spawnY) {
		return g.spawnX, g.spawnY, true
	}
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			if usable(g.spawnX+dx, g.spawnY+dy) {
				return g.spawnX + dx, g.spawnY + dy, true
			}
		}
	}
	for _, room := range g.rooms {
		for y := room.Y; y < room.Y+room.Height; y++ {
			for x := room.X; x < room.X+room.Width; x++ {
				if usable(x, y) {
					return x, y, true
				}
			}
		}
	}
	return 0, 0, false
}

// RemovePlayer detaches a player's connection. When permanent, the
// player entity and its token binding are dropped and the game is
// saved immediately; any active fight is exited first.
func (g *Game) RemovePlayer(ctx context.Context, playerID string, permanent bool) {
	out := &outbox{}

	g.mu.Lock()
	conn := g.conns[playerID]
	delete(g.conns, playerID)

	if permanent {
		if p, ok := g.players[playerID]; ok {
			if f := g.fightForPlayerLocked(playerID); f != nil {
				g.leaveFightLocked(out, p, f)
			}
			delete(g.players, playerID)
			for token, id := range g.tokenToPlayer {
				if id == playerID {
					delete(g.tokenToPlayer, token)
				}
			}
			g.bus.EmitAsync(&events.PlayerLeftEvent{
				BaseEvent: events.BaseEvent{Type: events.EventTypePlayerLeft, GameID: g.id, Timestamp: g.now()},
				PlayerID:  playerID,
			})
		}
		g.touchLocked()
	}

	g.broadcastLocked(out, playerLeftMessage{Type: MsgPlayerLeft, PlayerID: playerID})
	g.broadcastStateLocked(out)
	g.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	g.flush(out, false)

	if permanent {
		if err := g.save(ctx, true); err != nil {
			g.log.Error("save after player removal failed", zap.Error(err))
		}
	}
}

// HandleDisconnect reacts to a dropped connection: the player flees
// any fight they were in, the departure is broadcast, and the entity
// stays for a later reconnect.
func (g *Game) HandleDisconnect(ctx context.Context, playerID string) {
	out := &outbox{}

	g.mu.Lock()
	conn := g.conns[playerID]
	delete(g.conns, playerID)

	if p, ok := g.players[playerID]; ok {
		if f := g.fightForPlayerLocked(playerID); f != nil {
			g.leaveFightLocked(out, p, f)
		}
		g.touchLocked()
	}

	g.broadcastLocked(out, playerLeftMessage{Type: MsgPlayerLeft, PlayerID: playerID})
	g.broadcastStateLocked(out)
	g.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	// Never recurse into disconnect handling from a disconnect flush.
	g.flush(out, false)
}

// MovePlayer moves a player one cardinal step. Diagonal movement is
// rejected, as is moving while in a fight.
func (g *Game) MovePlayer(ctx context.Context, playerID string, dx, dy int) error {
	if abs(dx)+abs(dy) != 1 {
		return dserr.InvalidArgument("movement must be one cardinal step")
	}

	out := &outbox{}

	g.mu.Lock()
	p, ok := g.players[playerID]
	if !ok {
		g.mu.Unlock()
		return dserr.NotFoundf("player '%s' not found", playerID)
	}
	if g.fightForPlayerLocked(playerID) != nil {
		g.mu.Unlock()
		return dserr.Validation("cannot move during a fight")
	}

	nx, ny := p.X+dx, p.Y+dy
	if !g.tiles.At(nx, ny).IsWalkable() {
		g.mu.Unlock()
		return dserr.Validation("blocked")
	}
	if g.occupiedLocked(nx, ny, playerID) {
		g.mu.Unlock()
		return dserr.Validation("occupied")
	}

	p.X, p.Y = nx, ny
	g.touchLocked()
	g.enterRoomLocked(ctx, out, p)
	g.broadcastStateLocked(out)
	g.mu.Unlock()

	g.flush(out, true)
	return nil
}

// Interact resolves what is next to the player, in priority order:
// a monster already in a fight offers a join, an idle monster offers a
// fight, and failing those the first adjacent door toggles. All checks
// are 8-adjacent.
func (g *Game) Interact(ctx context.Context, playerID string) error {
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

	if m := g.adjacentMonsterLocked(p); m != nil {
		if f := g.fightForMonsterLocked(m.ID); f != nil {
			g.sendLocked(out, playerID, canJoinFightMessage{
				Type:        MsgCanJoinFight,
				FightID:     f.ID,
				MonsterID:   m.ID,
				MonsterType: m.MonsterType,
			})
		} else {
			g.sendLocked(out, playerID, fightRequestMessage{
				Type:        MsgFightRequest,
				MonsterID:   m.ID,
				MonsterType: m.MonsterType,
				MonsterName: m.Name,
			})
		}
		g.mu.Unlock()
		g.flush(out, true)
		return nil
	}

	if dx, dy, found := g.adjacentDoorLocked(p); found {
		tile := g.tiles.At(p.X+dx, p.Y+dy)
		g.tiles.Set(p.X+dx, p.Y+dy, tile.ToggleDoor())
		g.touchLocked()
		g.broadcastStateLocked(out)
		g.mu.Unlock()
		g.flush(out, true)
		return nil
	}

	g.mu.Unlock()
	return dserr.Validation("nothing to interact with")
}

// adjacentMonsterLocked finds a living monster 8-adjacent to the
// player, or nil. Caller holds g.mu.
func (g *Game) adjacentMonsterLocked(p *entities.Player) *entities.Monster {
	for _, m := range g.monsterByID {
		if m.IsAlive() && chebyshev(p.X, p.Y, m.X, m.Y) == 1 {
			return m
		}
	}
	return nil
}

// adjacentDoorLocked finds the first door 8-adjacent to the player.
// Caller holds g.mu.
func (g *Game) adjacentDoorLocked(p *entities.Player) (int, int, bool) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if g.tiles.At(p.X+dx, p.Y+dy).IsDoor() {
				return dx, dy, true
			}
		}
	}
	return 0, 0, false
}

// enterRoomLocked updates the player's room membership after any
// position change. First entry into a room marks it visited, populates
// its monsters, and announces the discovery. Caller holds g.mu.
func (g *Game) enterRoomLocked(ctx context.Context, out *outbox, p *entities.Player) {
	room := dungeon.RoomAt(g.rooms, p.X, p.Y)
	if room == nil {
		p.CurrentRoomID = entities.NoRoom
		return
	}
	if room.ID == p.CurrentRoomID {
		return
	}
	p.CurrentRoomID = room.ID

	firstVisit := !room.Visited
	if firstVisit {
		room.Visited = true
		for _, m := range g.monsters.SpawnMonstersForRoom(room, g.tiles) {
			g.monsterByID[m.ID] = m
		}
		g.touchLocked()
	}

	g.bus.EmitAsync(&events.PlayerEnteredRoomEvent{
		BaseEvent:  events.BaseEvent{Type: events.EventTypePlayerEnteredRoom, GameID: g.id, Timestamp: g.now()},
		PlayerID:   p.ID,
		RoomID:     room.ID,
		RoomType:   room.RoomType,
		FirstVisit: firstVisit,
	})

	g.sendLocked(out, p.ID, roomEnteredMessage{
		Type: MsgRoomEntered,
		Room: RoomView{
			ID:          room.ID,
			Name:        room.Name,
			RoomType:    room.RoomType,
			Description: room.Description,
			FirstVisit:  firstVisit,
		},
	})
}

func chebyshev(x1, y1, x2, y2 int) int {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	if dx > dy {
		return dx
	}
	return dy
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
