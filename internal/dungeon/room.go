package dungeon

// Furniture is one decorative tile placed inside a room.
type Furniture struct {
	X    int  `json:"x"`
	Y    int  `json:"y"`
	Tile Tile `json:"tile"`
}

// Room is an axis-aligned rectangle of floor. X/Y is the top-left
// floor tile; the rectangle is inclusive-start, exclusive-end.
type Room struct {
	ID             int         `json:"id"`
	X              int         `json:"x"`
	Y              int         `json:"y"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	RoomType       string      `json:"room_type"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Furniture      []Furniture `json:"furniture,omitempty"`
	ConnectedRooms []int       `json:"connected_rooms,omitempty"`
	Visited        bool        `json:"visited"`
	Locked         bool        `json:"locked"`
	LightLevel     float64     `json:"light_level"`
}

// Center returns the room's center tile.
func (r *Room) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Contains reports whether (px,py) is inside the room's floor rect.
func (r *Room) Contains(px, py int) bool {
	return px >= r.X && px < r.X+r.Width && py >= r.Y && py < r.Y+r.Height
}

// Area is the floor area in tiles.
func (r *Room) Area() int {
	return r.Width * r.Height
}

// Connect records a two-way connection between rooms.
func (r *Room) Connect(other *Room) {
	if r == other {
		return
	}
	if !containsInt(r.ConnectedRooms, other.ID) {
		r.ConnectedRooms = append(r.ConnectedRooms, other.ID)
	}
	if !containsInt(other.ConnectedRooms, r.ID) {
		other.ConnectedRooms = append(other.ConnectedRooms, r.ID)
	}
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// RoomAt returns the room containing (x,y), or nil.
func RoomAt(rooms []*Room, x, y int) *Room {
	for _, r := range rooms {
		if r.Contains(x, y) {
			return r
		}
	}
	return nil
}

// InCorridor reports whether (x,y) lies outside every room.
func InCorridor(rooms []*Room, x, y int) bool {
	return RoomAt(rooms, x, y) == nil
}
