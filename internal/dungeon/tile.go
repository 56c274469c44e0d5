package dungeon

// Tile is one cell of the map grid. The zero value is void, so a
// freshly allocated grid starts as solid nothing.
type Tile uint8

const (
	TileVoid Tile = iota
	TileFloor
	TileWall
	TileDoorClosed
	TileDoorOpen
	TileChest
	TileTable
	TileChair
	TileBed
	TileBookshelf
	TileBarrel
	TileTorch
)

var tileNames = map[Tile]string{
	TileVoid:       "void",
	TileFloor:      "floor",
	TileWall:       "wall",
	TileDoorClosed: "door_closed",
	TileDoorOpen:   "door_open",
	TileChest:      "chest",
	TileTable:      "table",
	TileChair:      "chair",
	TileBed:        "bed",
	TileBookshelf:  "bookshelf",
	TileBarrel:     "barrel",
	TileTorch:      "torch",
}

func (t Tile) String() string {
	if name, ok := tileNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsWalkable reports whether entities can stand on the tile.
func (t Tile) IsWalkable() bool {
	return t == TileFloor || t == TileDoorOpen
}

// IsDoor reports whether the tile is a door in either state.
func (t Tile) IsDoor() bool {
	return t == TileDoorClosed || t == TileDoorOpen
}

// IsBlocking reports whether the tile stops movement and interaction.
func (t Tile) IsBlocking() bool {
	return t == TileWall || t == TileDoorClosed || t == TileVoid
}

// ToggleDoor flips a door tile between open and closed; other tiles
// come back unchanged.
func (t Tile) ToggleDoor() Tile {
	switch t {
	case TileDoorClosed:
		return TileDoorOpen
	case TileDoorOpen:
		return TileDoorClosed
	}
	return t
}

// Grid is a row-major tile grid indexed tiles[y][x].
type Grid [][]Tile

// NewGrid allocates a void-filled grid.
func NewGrid(width, height int) Grid {
	g := make(Grid, height)
	for y := range g {
		g[y] = make([]Tile, width)
	}
	return g
}

// Width is the number of columns; zero for an empty grid.
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height is the number of rows.
func (g Grid) Height() int {
	return len(g)
}

// InBounds reports whether (x,y) is on the grid.
func (g Grid) InBounds(x, y int) bool {
	return y >= 0 && y < len(g) && x >= 0 && x < len(g[y])
}

// At returns the tile at (x,y), or void when out of bounds.
func (g Grid) At(x, y int) Tile {
	if !g.InBounds(x, y) {
		return TileVoid
	}
	return g[y][x]
}

// Set writes the tile at (x,y), ignoring out-of-bounds writes.
func (g Grid) Set(x, y int, t Tile) {
	if !g.InBounds(x, y) {
		return
	}
	g[y][x] = t
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for y := range g {
		out[y] = make([]Tile, len(g[y]))
		copy(out[y], g[y])
	}
	return out
}
