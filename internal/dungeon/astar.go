package dungeon

import (
	"container/heap"
	"math"

	"github.com/undercroft/undercroft/internal/entities"
)

// DefaultMaxPathIterations bounds A* node expansions so a pathological
// query on a large map cannot stall a game tick.
const DefaultMaxPathIterations = 1000

type pathNode struct {
	pos     entities.Position
	g       float64
	f       float64
	parent  *pathNode
	heapIdx int
}

type nodeHeap []*pathNode

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].f < h[j].f }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].heapIdx = i; h[j].heapIdx = j }
func (h *nodeHeap) Push(x interface{}) { n := x.(*pathNode); n.heapIdx = len(*h); *h = append(*h, n) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return node
}

// FindPath runs A* from start to goal over walkable tiles and returns
// the full path including both endpoints, or nil if the goal is
// unreachable. Diagonal steps are allowed only when both adjacent
// cardinal tiles are walkable, so paths never clip wall corners.
func FindPath(grid Grid, start, goal entities.Position) []entities.Position {
	return FindPathWithLimit(grid, start, goal, DefaultMaxPathIterations)
}

// FindPathWithLimit is FindPath with an explicit expansion budget. A
// search that exhausts the budget returns nil.
func FindPathWithLimit(grid Grid, start, goal entities.Position, maxIterations int) []entities.Position {
	if start == goal {
		return []entities.Position{start}
	}
	if !grid.At(goal.X, goal.Y).IsWalkable() {
		return nil
	}

	width := grid.Width()
	key := func(p entities.Position) int { return p.Y*width + p.X }

	startNode := &pathNode{pos: start, f: manhattan(start, goal)}
	open := &nodeHeap{}
	heap.Init(open)
	heap.Push(open, startNode)

	byKey := map[int]*pathNode{key(start): startNode}
	closed := make(map[int]bool)

	for iter := 0; open.Len() > 0; iter++ {
		if iter >= maxIterations {
			return nil
		}

		current := heap.Pop(open).(*pathNode)
		if current.pos == goal {
			return reconstruct(current)
		}
		closed[key(current.pos)] = true

		for _, step := range neighborSteps {
			next := entities.Position{X: current.pos.X + step.dx, Y: current.pos.Y + step.dy}
			if !grid.At(next.X, next.Y).IsWalkable() {
				continue
			}
			if step.diagonal &&
				(!grid.At(current.pos.X+step.dx, current.pos.Y).IsWalkable() ||
					!grid.At(current.pos.X, current.pos.Y+step.dy).IsWalkable()) {
				continue
			}

			nk := key(next)
			if closed[nk] {
				continue
			}

			g := current.g + step.cost
			existing, ok := byKey[nk]
			if !ok {
				node := &pathNode{pos: next, g: g, f: g + manhattan(next, goal), parent: current}
				byKey[nk] = node
				heap.Push(open, node)
			} else if g < existing.g {
				existing.g = g
				existing.f = g + manhattan(next, goal)
				existing.parent = current
				heap.Fix(open, existing.heapIdx)
			}
		}
	}
	return nil
}

var neighborSteps = []struct {
	dx, dy   int
	cost     float64
	diagonal bool
}{
	{0, -1, 1, false},
	{1, 0, 1, false},
	{0, 1, 1, false},
	{-1, 0, 1, false},
	{1, -1, math.Sqrt2, true},
	{1, 1, math.Sqrt2, true},
	{-1, 1, math.Sqrt2, true},
	{-1, -1, math.Sqrt2, true},
}

func reconstruct(node *pathNode) []entities.Position {
	var path []entities.Position
	for n := node; n != nil; n = n.parent {
		path = append(path, n.pos)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func manhattan(a, b entities.Position) float64 {
	return float64(abs(a.X-b.X) + abs(a.Y-b.Y))
}

// FindFleePosition walks outward from a position through walkable
// tiles, up to radius steps, and returns the tile that puts the most
// distance between the fleeing creature and the threat. The second
// return is false when no reachable tile beats the current one.
func FindFleePosition(grid Grid, from, threat entities.Position, radius int) (entities.Position, bool) {
	best := from
	bestDist := manhattan(from, threat)

	width := grid.Width()
	seen := map[int]bool{from.Y*width + from.X: true}

	type bfsNode struct {
		pos   entities.Position
		depth int
	}
	queue := []bfsNode{{from, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= radius {
			continue
		}

		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			next := entities.Position{X: cur.pos.X + d[0], Y: cur.pos.Y + d[1]}
			k := next.Y*width + next.X
			if seen[k] || !grid.At(next.X, next.Y).IsWalkable() {
				continue
			}
			seen[k] = true
			if dist := manhattan(next, threat); dist > bestDist {
				bestDist = dist
				best = next
			}
			queue = append(queue, bfsNode{next, cur.depth + 1})
		}
	}

	if best == from {
		return from, false
	}
	return best, true
}
