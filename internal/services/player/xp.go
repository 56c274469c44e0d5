package player

import "sort"

// crXPTable is the canonical challenge-rating to XP mapping for the
// low CR band this server spawns from.
var crXPTable = map[float64]int{
	0:     10,
	0.125: 25,
	0.25:  50,
	0.5:   100,
	1:     200,
	2:     450,
	3:     700,
	4:     1100,
	5:     1800,
}

var crOrder []float64

func init() {
	for cr := range crXPTable {
		crOrder = append(crOrder, cr)
	}
	sort.Float64s(crOrder)
}

// XPForCR returns the XP award for a challenge rating. A CR between
// table rows pays out at the nearest lower tabulated value; anything
// below the table floor pays the floor.
func XPForCR(cr float64) int {
	if xp, ok := crXPTable[cr]; ok {
		return xp
	}

	best := crOrder[0]
	for _, tabulated := range crOrder {
		if tabulated > cr {
			break
		}
		best = tabulated
	}
	return crXPTable[best]
}
