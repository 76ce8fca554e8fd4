package maze

import (
	"fmt"
)

// Difficulty selects the carving strategy used during generation.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"   // DFS carving, long corridors
	DifficultyMedium Difficulty = "medium" // recursive backtracking, balanced density
	DifficultyHard   Difficulty = "hard"   // independent random wall placement
)

// Position is a (row, col) cell coordinate.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ManhattanTo returns the Manhattan distance between p and q.
func (p Position) ManhattanTo(q Position) int {
	return abs(p.Row-q.Row) + abs(p.Col-q.Col)
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// GenerationError reports invalid generation parameters. It is fatal for a
// single maze build and is never retried.
type GenerationError struct {
	Reason string
}

func (e *GenerationError) Error() string {
	return "maze generation: " + e.Reason
}

// Maze is an immutable square grid of walkable and wall cells. Start is
// always (0,0) and Goal is (size-1,size-1); a walkable path between them is
// guaranteed by Generate.
type Maze struct {
	Size  int
	Start Position
	Goal  Position

	walls []bool // row-major, true = wall
}

// Open returns a maze of the given size with no walls at all.
func Open(size int) *Maze {
	return newMaze(size)
}

// newMaze allocates an all-walkable grid.
func newMaze(size int) *Maze {
	return &Maze{
		Size:  size,
		Start: Position{0, 0},
		Goal:  Position{size - 1, size - 1},
		walls: make([]bool, size*size),
	}
}

// InBounds reports whether p lies within the grid.
func (m *Maze) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < m.Size && p.Col >= 0 && p.Col < m.Size
}

// Walkable reports whether p is inside the grid and not a wall.
func (m *Maze) Walkable(p Position) bool {
	return m.InBounds(p) && !m.walls[p.Row*m.Size+p.Col]
}

// Wall reports whether p is inside the grid and a wall cell.
func (m *Maze) Wall(p Position) bool {
	return m.InBounds(p) && m.walls[p.Row*m.Size+p.Col]
}

func (m *Maze) setWall(p Position, wall bool) {
	m.walls[p.Row*m.Size+p.Col] = wall
}

// Grid returns a copy of the wall grid (true = wall) for observation
// payloads and persistence; the maze itself stays immutable.
func (m *Maze) Grid() [][]bool {
	grid := make([][]bool, m.Size)
	for r := 0; r < m.Size; r++ {
		grid[r] = make([]bool, m.Size)
		for c := 0; c < m.Size; c++ {
			grid[r][c] = m.walls[r*m.Size+c]
		}
	}
	return grid
}

// WallCount returns the number of wall cells. Used by tests to assert the
// fallback corridor does not erase the maze wholesale.
func (m *Maze) WallCount() int {
	n := 0
	for _, w := range m.walls {
		if w {
			n++
		}
	}
	return n
}

// cardinal deltas in fixed order: up, down, left, right. Every component
// that walks the grid uses this order so tie-breaks stay deterministic.
var cardinalDeltas = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// WalkableNeighbors returns the walkable cells adjacent to p, in the fixed
// up/down/left/right order.
func (m *Maze) WalkableNeighbors(p Position) []Position {
	out := make([]Position, 0, 4)
	for _, d := range cardinalDeltas {
		q := Position{p.Row + d[0], p.Col + d[1]}
		if m.Walkable(q) {
			out = append(out, q)
		}
	}
	return out
}

// reachable runs a breadth-first scan from Start and reports whether Goal
// can be reached. This is the post-carve solvability check.
func (m *Maze) reachable() bool {
	if !m.Walkable(m.Start) || !m.Walkable(m.Goal) {
		return false
	}
	seen := make([]bool, m.Size*m.Size)
	queue := []Position{m.Start}
	seen[m.Start.Row*m.Size+m.Start.Col] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == m.Goal {
			return true
		}
		for _, n := range m.WalkableNeighbors(cur) {
			idx := n.Row*m.Size + n.Col
			if !seen[idx] {
				seen[idx] = true
				queue = append(queue, n)
			}
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
