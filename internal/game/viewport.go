package game

import (
	"github.com/undercroft/undercroft/internal/dungeon"
)

// viewportLocked crops the configured viewport window around a player.
// The window is clamped to the map; anything still out of bounds reads
// as wall so clients never render the void. Entity coordinates are
// viewport-local with the world position preserved. Caller holds g.mu.
func (g *Game) viewportLocked(playerID string) ViewportView {
	vw := g.settings.ViewportWidth
	vh := g.settings.ViewportHeight

	cx, cy := g.spawnX, g.spawnY
	if p, ok := g.players[playerID]; ok {
		cx, cy = p.X, p.Y
	}

	x0 := clampWindow(cx-vw/2, vw, g.width)
	y0 := clampWindow(cy-vh/2, vh, g.height)

	tiles := make([][]dungeon.Tile, vh)
	for vy := 0; vy < vh; vy++ {
		row := make([]dungeon.Tile, vw)
		for vx := 0; vx < vw; vx++ {
			wx, wy := x0+vx, y0+vy
			if g.tiles.InBounds(wx, wy) {
				row[vx] = g.tiles.At(wx, wy)
			} else {
				row[vx] = dungeon.TileWall
			}
		}
		tiles[vy] = row
	}

	view := ViewportView{X: x0, Y: y0, Width: vw, Height: vh, Tiles: tiles}

	for _, p := range g.players {
		if p.X < x0 || p.X >= x0+vw || p.Y < y0 || p.Y >= y0+vh {
			continue
		}
		pv := playerView(p)
		pv.X = p.X - x0
		pv.Y = p.Y - y0
		view.Players = append(view.Players, pv)
	}
	for _, m := range g.monsterByID {
		if m.X < x0 || m.X >= x0+vw || m.Y < y0 || m.Y >= y0+vh {
			continue
		}
		mv := monsterView(m, g.fightForMonsterLocked(m.ID) != nil)
		mv.X = m.X - x0
		mv.Y = m.Y - y0
		view.Monsters = append(view.Monsters, mv)
	}

	return view
}

// clampWindow keeps [start, start+size) inside [0, limit) where
// possible; maps narrower than the window pin to 0.
func clampWindow(start, size, limit int) int {
	if start+size > limit {
		start = limit - size
	}
	if start < 0 {
		start = 0
	}
	return start
}
