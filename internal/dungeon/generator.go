package dungeon

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// MinRoomGap is the minimum distance, in tiles, between any two room
// bounding boxes. Corridors and their wall rings live in this gap.
const MinRoomGap = 10

const (
	defaultRoomCount   = 8
	defaultMinRoomSize = 5
	defaultMaxRoomSize = 12
	placementMargin    = 2
)

// GenerateConfig controls map generation. Zero values take defaults;
// a zero Seed picks a random one.
type GenerateConfig struct {
	Width       int
	Height      int
	RoomCount   int
	MinRoomSize int
	MaxRoomSize int
	Seed        int64
}

// GeneratedMap is a finished dungeon: grid, rooms and the spawn tile.
// Regenerating with the same seed and dimensions yields an identical
// map.
type GeneratedMap struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Tiles  Grid    `json:"tiles"`
	Rooms  []*Room `json:"rooms"`
	SpawnX int     `json:"spawn_x"`
	SpawnY int     `json:"spawn_y"`
	Seed   int64   `json:"seed"`
}

type roomTypeDef struct {
	key         string
	name        string
	weight      int
	lightLevel  float64
	description string
	furniture   []Tile
}

// Weighted room type table. rooms[0] is always the entrance and does
// not draw from this table.
var roomTypeDefs = []roomTypeDef{
	{key: "hall", name: "Hall", weight: 3, lightLevel: 0.7, description: "A broad chamber with a high ceiling.", furniture: []Tile{TileTable, TileChair}},
	{key: "armory", name: "Armory", weight: 2, lightLevel: 0.5, description: "Racks of old weapons line the walls.", furniture: []Tile{TileTable, TileBarrel}},
	{key: "barracks", name: "Barracks", weight: 2, lightLevel: 0.5, description: "Rows of bunks, long since abandoned.", furniture: []Tile{TileBed}},
	{key: "guard_room", name: "Guard Room", weight: 2, lightLevel: 0.6, description: "A watch post commanding the corridor.", furniture: []Tile{TileTable, TileChair}},
	{key: "library", name: "Library", weight: 2, lightLevel: 0.4, description: "Shelves sag under rotting books.", furniture: []Tile{TileBookshelf}},
	{key: "study", name: "Study", weight: 1, lightLevel: 0.4, description: "A cramped room of papers and dust.", furniture: []Tile{TileBookshelf, TileChair}},
	{key: "storage", name: "Storage", weight: 2, lightLevel: 0.3, description: "Crates and barrels in mouldering stacks.", furniture: []Tile{TileBarrel}},
	{key: "chapel", name: "Chapel", weight: 1, lightLevel: 0.5, description: "A defaced altar stands at the far end.", furniture: []Tile{TileChair}},
	{key: "crypt", name: "Crypt", weight: 2, lightLevel: 0.2, description: "Stone ledges hold the honored dead.", furniture: nil},
	{key: "prison", name: "Prison", weight: 1, lightLevel: 0.2, description: "Rusted bars and colder memories.", furniture: nil},
}

var entranceDef = roomTypeDef{
	key: "entrance", name: "Entrance", lightLevel: 0.8,
	description: "Daylight still reaches the first few steps.",
}

var roomAdjectives = []string{"Dusty", "Silent", "Ruined", "Cold", "Forgotten", "Sunken", "Crumbling", "Dark"}

type generator struct {
	cfg   GenerateConfig
	rng   *rand.Rand
	grid  Grid
	rooms []*Room
}

// Generate builds a dungeon per the config. It never fails: a grid too
// small for the requested rooms simply yields fewer rooms.
func Generate(cfg GenerateConfig) *GeneratedMap {
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	if cfg.Height <= 0 {
		cfg.Height = 50
	}
	if cfg.RoomCount <= 0 {
		cfg.RoomCount = defaultRoomCount
	}
	if cfg.MinRoomSize <= 0 {
		cfg.MinRoomSize = defaultMinRoomSize
	}
	if cfg.MaxRoomSize < cfg.MinRoomSize {
		cfg.MaxRoomSize = defaultMaxRoomSize
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	g := &generator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		grid: NewGrid(cfg.Width, cfg.Height),
	}

	g.placeRooms()
	g.assignRoomTypes()
	g.connectRooms()
	g.addWalls()
	for _, room := range g.rooms {
		g.placeDoors(room)
	}
	g.repairConnectivity()
	g.placeChests()
	g.furnishRooms()
	g.placeTorches()

	spawnX, spawnY := cfg.Width/2, cfg.Height/2
	if len(g.rooms) > 0 {
		spawnX, spawnY = g.rooms[0].Center()
	} else {
		// Pathological grid: guarantee one standable tile
		g.grid.Set(spawnX, spawnY, TileFloor)
	}

	return &GeneratedMap{
		Width:  cfg.Width,
		Height: cfg.Height,
		Tiles:  g.grid,
		Rooms:  g.rooms,
		SpawnX: spawnX,
		SpawnY: spawnY,
		Seed:   cfg.Seed,
	}
}

func (g *generator) placeRooms() {
	attempts := g.cfg.RoomCount * 100

	for len(g.rooms) < g.cfg.RoomCount && attempts > 0 {
		attempts--

		w := g.cfg.MinRoomSize + g.rng.Intn(g.cfg.MaxRoomSize-g.cfg.MinRoomSize+1)
		h := g.cfg.MinRoomSize + g.rng.Intn(g.cfg.MaxRoomSize-g.cfg.MinRoomSize+1)

		maxX := g.cfg.Width - w - placementMargin
		maxY := g.cfg.Height - h - placementMargin
		if maxX <= placementMargin || maxY <= placementMargin {
			continue
		}

		x := placementMargin + g.rng.Intn(maxX-placementMargin)
		y := placementMargin + g.rng.Intn(maxY-placementMargin)

		if g.overlapsExisting(x, y, w, h) {
			continue
		}

		room := &Room{ID: len(g.rooms), X: x, Y: y, Width: w, Height: h}
		for ty := y; ty < y+h; ty++ {
			for tx := x; tx < x+w; tx++ {
				g.grid[ty][tx] = TileFloor
			}
		}
		g.rooms = append(g.rooms, room)
	}
}

// overlapsExisting checks the candidate rect inflated by MinRoomGap
// against every placed room.
func (g *generator) overlapsExisting(x, y, w, h int) bool {
	for _, r := range g.rooms {
		if x-MinRoomGap < r.X+r.Width &&
			x+w+MinRoomGap > r.X &&
			y-MinRoomGap < r.Y+r.Height &&
			y+h+MinRoomGap > r.Y {
			return true
		}
	}
	return false
}

func (g *generator) assignRoomTypes() {
	totalWeight := 0
	for _, def := range roomTypeDefs {
		totalWeight += def.weight
	}

	for i, room := range g.rooms {
		def := entranceDef
		if i > 0 {
			pick := g.rng.Intn(totalWeight)
			for _, d := range roomTypeDefs {
				pick -= d.weight
				if pick < 0 {
					def = d
					break
				}
			}
		}

		room.RoomType = def.key
		room.LightLevel = def.lightLevel
		room.Description = def.description
		if i == 0 {
			room.Name = def.name
		} else {
			room.Name = fmt.Sprintf("%s %s", roomAdjectives[g.rng.Intn(len(roomAdjectives))], def.name)
		}
	}
}

// connectRooms grows a minimum spanning tree over center-to-center
// distance, carving an L-corridor for each edge.
func (g *generator) connectRooms() {
	if len(g.rooms) < 2 {
		return
	}

	connected := make([]bool, len(g.rooms))
	connected[0] = true
	remaining := len(g.rooms) - 1

	for remaining > 0 {
		bestA, bestB := -1, -1
		bestDist := math.MaxFloat64

		for a := range g.rooms {
			if !connected[a] {
				continue
			}
			ax, ay := g.rooms[a].Center()
			for b := range g.rooms {
				if connected[b] {
					continue
				}
				bx, by := g.rooms[b].Center()
				d := math.Hypot(float64(ax-bx), float64(ay-by))
				if d < bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}

		ax, ay := g.rooms[bestA].Center()
		bx, by := g.rooms[bestB].Center()
		g.carveLCorridor(ax, ay, bx, by, g.rng.Intn(2) == 0)
		g.rooms[bestA].Connect(g.rooms[bestB])
		connected[bestB] = true
		remaining--
	}
}

func (g *generator) carveLCorridor(x1, y1, x2, y2 int, horizontalFirst bool) {
	if horizontalFirst {
		g.carveH(x1, x2, y1, false)
		g.carveV(y1, y2, x2, false)
	} else {
		g.carveV(y1, y2, x1, false)
		g.carveH(x1, x2, y2, false)
	}
}

func (g *generator) carveH(x1, x2, y int, force bool) {
	step := 1
	if x2 < x1 {
		step = -1
	}
	for x := x1; ; x += step {
		g.carveCorridorTile(x, y, force)
		if x == x2 {
			break
		}
	}
}

func (g *generator) carveV(y1, y2, x int, force bool) {
	step := 1
	if y2 < y1 {
		step = -1
	}
	for y := y1; ; y += step {
		g.carveCorridorTile(x, y, force)
		if y == y2 {
			break
		}
	}
}

// carveCorridorTile floors one corridor position. Normal carving skips
// room interiors, the would-be wall ring around rooms, and room
// corners, which is what leaves the one-tile wall slot doors occupy.
// Forced carving (connectivity repair) only skips room interiors.
func (g *generator) carveCorridorTile(x, y int, force bool) {
	if !g.grid.InBounds(x, y) {
		return
	}
	if RoomAt(g.rooms, x, y) != nil {
		return
	}
	if !force {
		if g.cardinallyTouchesRoom(x, y) || g.nearRoomCorner(x, y) {
			return
		}
	}
	g.grid[y][x] = TileFloor
}

func (g *generator) cardinallyTouchesRoom(x, y int) bool {
	return RoomAt(g.rooms, x+1, y) != nil ||
		RoomAt(g.rooms, x-1, y) != nil ||
		RoomAt(g.rooms, x, y+1) != nil ||
		RoomAt(g.rooms, x, y-1) != nil
}

func (g *generator) nearRoomCorner(x, y int) bool {
	for _, r := range g.rooms {
		corners := [4][2]int{
			{r.X, r.Y},
			{r.X + r.Width - 1, r.Y},
			{r.X, r.Y + r.Height - 1},
			{r.X + r.Width - 1, r.Y + r.Height - 1},
		}
		for _, c := range corners {
			if abs(x-c[0]) <= 1 && abs(y-c[1]) <= 1 {
				return true
			}
		}
	}
	return false
}

// addWalls turns every void tile that touches floor (8-adjacency) into
// wall.
func (g *generator) addWalls() {
	for y := 0; y < g.cfg.Height; y++ {
		for x := 0; x < g.cfg.Width; x++ {
			if g.grid[y][x] != TileVoid {
				continue
			}
			if g.touchesFloor(x, y) {
				g.grid[y][x] = TileWall
			}
		}
	}
}

func (g *generator) touchesFloor(x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if g.grid.At(x+dx, y+dy) == TileFloor {
				return true
			}
		}
	}
	return false
}

// placeDoors scans the room's four wall sides for slots where a wall
// tile has room floor on one side and corridor floor on the other.
func (g *generator) placeDoors(room *Room) {
	for x := room.X; x < room.X+room.Width; x++ {
		g.tryDoor(x, room.Y-1, x, room.Y-2)
		g.tryDoor(x, room.Y+room.Height, x, room.Y+room.Height+1)
	}
	for y := room.Y; y < room.Y+room.Height; y++ {
		g.tryDoor(room.X-1, y, room.X-2, y)
		g.tryDoor(room.X+room.Width, y, room.X+room.Width+1, y)
	}
}

func (g *generator) tryDoor(wallX, wallY, outsideX, outsideY int) {
	if g.grid.At(wallX, wallY) != TileWall {
		return
	}
	if g.grid.At(outsideX, outsideY) != TileFloor {
		return
	}
	if RoomAt(g.rooms, outsideX, outsideY) != nil {
		return
	}
	g.grid.Set(wallX, wallY, TileDoorClosed)
}

// connectivityPassable is the tile set flood fill may cross: closed
// doors count as passable because a player can open them.
func connectivityPassable(t Tile) bool {
	switch t {
	case TileFloor, TileDoorClosed, TileDoorOpen, TileChest, TileTorch:
		return true
	}
	return false
}

// repairConnectivity force-carves an L-corridor from every unreachable
// room to the nearest reachable one, then rebuilds walls and doors.
func (g *generator) repairConnectivity() {
	if len(g.rooms) < 2 {
		return
	}

	for _, room := range g.rooms[1:] {
		reachable := g.floodFromFirstRoom()
		cx, cy := room.Center()
		if reachable[cy*g.cfg.Width+cx] {
			continue
		}

		var nearest *Room
		bestDist := math.MaxFloat64
		for _, other := range g.rooms {
			if other == room {
				continue
			}
			ox, oy := other.Center()
			if !reachable[oy*g.cfg.Width+ox] {
				continue
			}
			d := math.Hypot(float64(cx-ox), float64(cy-oy))
			if d < bestDist {
				bestDist = d
				nearest = other
			}
		}
		if nearest == nil {
			continue
		}

		nx, ny := nearest.Center()
		g.carveH(cx, nx, cy, true)
		g.carveV(cy, ny, nx, true)
		room.Connect(nearest)

		g.addWalls()
		g.placeDoors(room)
	}
}

func (g *generator) floodFromFirstRoom() []bool {
	seen := make([]bool, g.cfg.Width*g.cfg.Height)
	if len(g.rooms) == 0 {
		return seen
	}

	sx, sy := g.rooms[0].Center()
	queue := [][2]int{{sx, sy}}
	seen[sy*g.cfg.Width+sx] = true

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := p[0]+d[0], p[1]+d[1]
			if !g.grid.InBounds(nx, ny) {
				continue
			}
			idx := ny*g.cfg.Width + nx
			if seen[idx] || !connectivityPassable(g.grid[ny][nx]) {
				continue
			}
			seen[idx] = true
			queue = append(queue, [2]int{nx, ny})
		}
	}
	return seen
}

// placeChests puts one chest in about a quarter of the rooms.
func (g *generator) placeChests() {
	if len(g.rooms) == 0 {
		return
	}

	count := len(g.rooms) / 4
	if count < 1 {
		count = 1
	}

	order := g.rng.Perm(len(g.rooms))
	placed := 0
	for _, idx := range order {
		if placed >= count {
			break
		}
		room := g.rooms[idx]
		if x, y, ok := g.randomInnerFloor(room); ok {
			g.grid[y][x] = TileChest
			placed++
		}
	}
}

// randomInnerFloor picks a floor tile inset one from the room edge and
// away from the center, so chests never sit in a doorway or on spawn.
func (g *generator) randomInnerFloor(room *Room) (int, int, bool) {
	if room.Width < 3 || room.Height < 3 {
		return 0, 0, false
	}
	cx, cy := room.Center()
	for i := 0; i < 20; i++ {
		x := room.X + 1 + g.rng.Intn(room.Width-2)
		y := room.Y + 1 + g.rng.Intn(room.Height-2)
		if x == cx && y == cy {
			continue
		}
		if g.grid[y][x] == TileFloor {
			return x, y, true
		}
	}
	return 0, 0, false
}

// furnishRooms scatters type-specific furniture along the inner edge of
// each room. Only the outermost floor ring is eligible, and never next
// to a door, so furniture cannot cut a room center off from its exits.
func (g *generator) furnishRooms() {
	for _, room := range g.rooms {
		def := g.typeDef(room.RoomType)
		if len(def.furniture) == 0 {
			continue
		}

		count := room.Area() / 20
		if count > 4 {
			count = 4
		}

		for i := 0; i < count*8 && count > 0; i++ {
			x := room.X + g.rng.Intn(room.Width)
			y := room.Y + g.rng.Intn(room.Height)
			if !g.onRoomRing(room, x, y) || g.grid[y][x] != TileFloor || g.adjacentToDoor(x, y) {
				continue
			}
			tile := def.furniture[g.rng.Intn(len(def.furniture))]
			g.grid[y][x] = tile
			room.Furniture = append(room.Furniture, Furniture{X: x, Y: y, Tile: tile})
			count--
		}
	}
}

func (g *generator) typeDef(key string) roomTypeDef {
	if key == entranceDef.key {
		return entranceDef
	}
	for _, d := range roomTypeDefs {
		if d.key == key {
			return d
		}
	}
	return entranceDef
}

func (g *generator) onRoomRing(room *Room, x, y int) bool {
	if !room.Contains(x, y) {
		return false
	}
	return x == room.X || x == room.X+room.Width-1 || y == room.Y || y == room.Y+room.Height-1
}

func (g *generator) adjacentToDoor(x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if g.grid.At(x+dx, y+dy).IsDoor() {
				return true
			}
		}
	}
	return false
}

// placeTorches lights one wall tile per room.
func (g *generator) placeTorches() {
	for _, room := range g.rooms {
		var walls [][2]int
		for x := room.X - 1; x <= room.X+room.Width; x++ {
			for _, y := range []int{room.Y - 1, room.Y + room.Height} {
				if g.grid.At(x, y) == TileWall {
					walls = append(walls, [2]int{x, y})
				}
			}
		}
		for y := room.Y; y < room.Y+room.Height; y++ {
			for _, x := range []int{room.X - 1, room.X + room.Width} {
				if g.grid.At(x, y) == TileWall {
					walls = append(walls, [2]int{x, y})
				}
			}
		}
		if len(walls) == 0 {
			continue
		}
		pick := walls[g.rng.Intn(len(walls))]
		g.grid.Set(pick[0], pick[1], TileTorch)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
