// Package planner computes shortest paths on a maze. The search is A* over
// four-directional unit-cost moves with the Manhattan distance heuristic,
// which is admissible and consistent, so a returned path is always optimal.
package planner

import (
	"container/heap"

	"github.com/reliancelab/mazesim/internal/maze"
)

// Plan returns the optimal path from source to target inclusive, or nil when
// the target is unreachable. An unreachable target is an expected outcome,
// not a fault.
//
// Tie-breaking is deterministic: frontier entries carry a monotone insertion
// counter and neighbors expand in the fixed up/down/left/right order, so
// repeated calls on identical inputs return identical paths.
func Plan(m *maze.Maze, source, target maze.Position) []maze.Position {
	if !m.Walkable(source) || !m.Walkable(target) {
		return nil
	}
	if source == target {
		return []maze.Position{source}
	}

	open := &frontier{}
	heap.Init(open)

	counter := 0
	heap.Push(open, &node{pos: source, f: source.ManhattanTo(target), order: counter})

	cameFrom := make(map[maze.Position]maze.Position)
	gScore := map[maze.Position]int{source: 0}
	inOpen := map[maze.Position]bool{source: true}

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		delete(inOpen, cur.pos)

		if cur.pos == target {
			return reconstruct(cameFrom, cur.pos)
		}

		for _, next := range m.WalkableNeighbors(cur.pos) {
			tentative := gScore[cur.pos] + 1
			if g, ok := gScore[next]; ok && tentative >= g {
				continue
			}
			cameFrom[next] = cur.pos
			gScore[next] = tentative
			if !inOpen[next] {
				counter++
				heap.Push(open, &node{
					pos:   next,
					f:     tentative + next.ManhattanTo(target),
					order: counter,
				})
				inOpen[next] = true
			}
		}
	}

	return nil
}

// BFSLen returns the optimal path length in moves from source to target via
// breadth-first search, or -1 when unreachable. It exists as an independent
// cross-check for Plan.
func BFSLen(m *maze.Maze, source, target maze.Position) int {
	if !m.Walkable(source) || !m.Walkable(target) {
		return -1
	}
	dist := map[maze.Position]int{source: 0}
	queue := []maze.Position{source}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return dist[cur]
		}
		for _, n := range m.WalkableNeighbors(cur) {
			if _, seen := dist[n]; !seen {
				dist[n] = dist[cur] + 1
				queue = append(queue, n)
			}
		}
	}
	return -1
}

func reconstruct(cameFrom map[maze.Position]maze.Position, cur maze.Position) []maze.Position {
	path := []maze.Position{cur}
	for {
		prev, ok := cameFrom[cur]
		if !ok {
			break
		}
		path = append(path, prev)
		cur = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type node struct {
	pos   maze.Position
	f     int
	order int
}

// frontier is a min-heap on f score with insertion order as the tie-break.
type frontier []*node

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].f != f[j].f {
		return f[i].f < f[j].f
	}
	return f[i].order < f[j].order
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(*node)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return item
}
