package dungeon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undercroft/undercroft/internal/dungeon"
	"github.com/undercroft/undercroft/internal/entities"
)

func TestGenerateDeterministicUnderSeed(t *testing.T) {
	cfg := dungeon.GenerateConfig{Width: 80, Height: 50, RoomCount: 8, Seed: 42}

	a := dungeon.Generate(cfg)
	b := dungeon.Generate(cfg)

	assert.Equal(t, a.Tiles, b.Tiles)
	assert.Equal(t, a.SpawnX, b.SpawnX)
	assert.Equal(t, a.SpawnY, b.SpawnY)
	require.Equal(t, len(a.Rooms), len(b.Rooms))
	for i := range a.Rooms {
		assert.Equal(t, *a.Rooms[i], *b.Rooms[i], "room %d", i)
	}
}

func TestGenerateDifferentSeedsDiffer(t *testing.T) {
	a := dungeon.Generate(dungeon.GenerateConfig{Width: 80, Height: 50, RoomCount: 8, Seed: 1})
	b := dungeon.Generate(dungeon.GenerateConfig{Width: 80, Height: 50, RoomCount: 8, Seed: 2})

	assert.NotEqual(t, a.Tiles, b.Tiles)
}

// connectivityPassable mirrors what the flood-fill repair treats as
// traversable.
func passable(t dungeon.Tile) bool {
	switch t {
	case dungeon.TileFloor, dungeon.TileDoorClosed, dungeon.TileDoorOpen, dungeon.TileChest, dungeon.TileTorch:
		return true
	}
	return false
}

func TestEveryRoomReachableFromEntrance(t *testing.T) {
	for _, seed := range []int64{1, 7, 99, 1234, 98765} {
		gen := dungeon.Generate(dungeon.GenerateConfig{Width: 80, Height: 50, RoomCount: 10, Seed: seed})
		require.NotEmpty(t, gen.Rooms, "seed %d", seed)

		// BFS over passable tiles from the entrance center.
		visited := make(map[[2]int]bool)
		sx, sy := gen.Rooms[0].Center()
		queue := [][2]int{{sx, sy}}
		visited[[2]int{sx, sy}] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, d := range [][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}} {
				nx, ny := cur[0]+d[0], cur[1]+d[1]
				if visited[[2]int{nx, ny}] || !passable(gen.Tiles.At(nx, ny)) {
					continue
				}
				visited[[2]int{nx, ny}] = true
				queue = append(queue, [2]int{nx, ny})
			}
		}

		for _, room := range gen.Rooms {
			cx, cy := room.Center()
			assert.True(t, visited[[2]int{cx, cy}],
				"seed %d: room %d center (%d,%d) unreachable", seed, room.ID, cx, cy)
		}
	}
}

func TestGenerateRoomsDoNotOverlap(t *testing.T) {
	gen := dungeon.Generate(dungeon.GenerateConfig{Width: 80, Height: 50, RoomCount: 10, Seed: 3})

	for i, a := range gen.Rooms {
		for _, b := range gen.Rooms[i+1:] {
			overlap := a.X < b.X+b.Width && b.X < a.X+a.Width &&
				a.Y < b.Y+b.Height && b.Y < a.Y+a.Height
			assert.False(t, overlap, "rooms %d and %d overlap", a.ID, b.ID)
		}
	}
}

func TestGenerateEntranceIsFirstRoom(t *testing.T) {
	gen := dungeon.Generate(dungeon.GenerateConfig{Width: 80, Height: 50, RoomCount: 8, Seed: 11})
	require.NotEmpty(t, gen.Rooms)

	assert.Equal(t, "entrance", gen.Rooms[0].RoomType)
	assert.True(t, gen.Rooms[0].Contains(gen.SpawnX, gen.SpawnY))
	assert.True(t, passable(gen.Tiles.At(gen.SpawnX, gen.SpawnY)))
}

func TestGenerateTinyMapNeverFails(t *testing.T) {
	gen := dungeon.Generate(dungeon.GenerateConfig{Width: 12, Height: 10, RoomCount: 8, Seed: 5})

	// Few (or zero) rooms is fine; a standable spawn is mandatory.
	assert.NotNil(t, gen.Tiles)
	assert.True(t, gen.Tiles.At(gen.SpawnX, gen.SpawnY).IsWalkable())
}

func TestToggleDoor(t *testing.T) {
	assert.Equal(t, dungeon.TileDoorOpen, dungeon.TileDoorClosed.ToggleDoor())
	assert.Equal(t, dungeon.TileDoorClosed, dungeon.TileDoorOpen.ToggleDoor())
	assert.Equal(t, dungeon.TileWall, dungeon.TileWall.ToggleDoor())
}

func TestGridOutOfBoundsReadsVoid(t *testing.T) {
	g := dungeon.NewGrid(4, 4)
	assert.Equal(t, dungeon.TileVoid, g.At(-1, 0))
	assert.Equal(t, dungeon.TileVoid, g.At(0, 99))
	// Out-of-bounds writes are dropped, not panics.
	g.Set(-5, -5, dungeon.TileFloor)
}

func openGrid(w, h int) dungeon.Grid {
	g := dungeon.NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, dungeon.TileFloor)
		}
	}
	return g
}

func TestFindPathStraightLine(t *testing.T) {
	g := openGrid(10, 10)

	path := dungeon.FindPath(g, entities.Position{X: 1, Y: 1}, entities.Position{X: 5, Y: 1})
	require.NotEmpty(t, path)
	assert.Equal(t, entities.Position{X: 1, Y: 1}, path[0])
	assert.Equal(t, entities.Position{X: 5, Y: 1}, path[len(path)-1])
	assert.Len(t, path, 5)
}

func TestFindPathAroundWall(t *testing.T) {
	g := openGrid(10, 10)
	for y := 0; y < 9; y++ {
		g.Set(5, y, dungeon.TileWall)
	}

	path := dungeon.FindPath(g, entities.Position{X: 2, Y: 2}, entities.Position{X: 8, Y: 2})
	require.NotEmpty(t, path)
	for _, p := range path {
		assert.True(t, g.At(p.X, p.Y).IsWalkable(), "path crosses wall at (%d,%d)", p.X, p.Y)
	}
}

func TestFindPathUnreachable(t *testing.T) {
	g := openGrid(10, 10)
	for y := 0; y < 10; y++ {
		g.Set(5, y, dungeon.TileWall)
	}

	assert.Nil(t, dungeon.FindPath(g, entities.Position{X: 2, Y: 2}, entities.Position{X: 8, Y: 2}))
}

func TestFindPathNeverCutsCorners(t *testing.T) {
	g := openGrid(5, 5)
	// A single wall corner between start and goal.
	g.Set(2, 2, dungeon.TileWall)
	g.Set(2, 1, dungeon.TileWall)

	path := dungeon.FindPath(g, entities.Position{X: 1, Y: 1}, entities.Position{X: 3, Y: 1})
	require.NotEmpty(t, path)
	for i := 1; i < len(path); i++ {
		dx, dy := path[i].X-path[i-1].X, path[i].Y-path[i-1].Y
		if dx != 0 && dy != 0 {
			assert.True(t, g.At(path[i-1].X+dx, path[i-1].Y).IsWalkable())
			assert.True(t, g.At(path[i-1].X, path[i-1].Y+dy).IsWalkable())
		}
	}
}

func TestFindPathIterationBudget(t *testing.T) {
	g := openGrid(50, 50)

	path := dungeon.FindPathWithLimit(g, entities.Position{X: 0, Y: 0}, entities.Position{X: 49, Y: 49}, 3)
	assert.Nil(t, path)
}

func TestFindFleePositionMovesAway(t *testing.T) {
	g := openGrid(20, 20)
	from := entities.Position{X: 10, Y: 10}
	threat := entities.Position{X: 8, Y: 10}

	pos, ok := dungeon.FindFleePosition(g, from, threat, 5)
	require.True(t, ok)

	before := abs(from.X-threat.X) + abs(from.Y-threat.Y)
	after := abs(pos.X-threat.X) + abs(pos.Y-threat.Y)
	assert.Greater(t, after, before)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
