package maze

import (
	"fmt"
	"math/rand"

	"github.com/reliancelab/mazesim/internal/metrics"
)

// hardWallProbability is the independent wall probability for hard mazes.
const hardWallProbability = 0.4

// Generate builds a maze for the given size and difficulty. Generation is
// deterministic for a fixed (size, difficulty, seed) triple.
//
// After carving, reachability from start to goal is verified; if the carve
// left the goal cut off (possible for random placement and for even sizes
// under lattice carving), a minimal diagonal corridor is opened without
// touching the rest of the grid. Downstream consumers rely on this
// guarantee and never handle an unsolvable maze.
func Generate(size int, difficulty Difficulty, seed int64) (*Maze, error) {
	if size <= 0 {
		return nil, &GenerationError{Reason: fmt.Sprintf("size must be positive, got %d", size)}
	}

	rng := rand.New(rand.NewSource(seed))
	m := newMaze(size)

	switch difficulty {
	case DifficultyEasy:
		carveDFS(m, rng)
	case DifficultyMedium:
		carveBacktracker(m, rng)
	case DifficultyHard:
		placeRandomWalls(m, rng, hardWallProbability)
	default:
		return nil, &GenerationError{Reason: fmt.Sprintf("unknown difficulty %q", difficulty)}
	}

	// Start and goal are always open regardless of strategy.
	m.setWall(m.Start, false)
	m.setWall(m.Goal, false)

	if !m.reachable() {
		carveFallbackCorridor(m)
		metrics.MazeGenerationFallbacks.Inc()
	}

	return m, nil
}

// carveDFS carves passages with an iterative depth-first walk over a
// two-cell lattice, producing long winding corridors.
func carveDFS(m *Maze, rng *rand.Rand) {
	fillWalls(m)
	m.setWall(m.Start, false)

	stack := []Position{m.Start}
	visited := map[Position]bool{m.Start: true}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]

		var next []Position
		for _, d := range cardinalDeltas {
			cand := Position{cur.Row + 2*d[0], cur.Col + 2*d[1]}
			if m.InBounds(cand) && !visited[cand] {
				next = append(next, cand)
			}
		}

		if len(next) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		cand := next[rng.Intn(len(next))]
		between := Position{(cur.Row + cand.Row) / 2, (cur.Col + cand.Col) / 2}
		m.setWall(between, false)
		m.setWall(cand, false)
		visited[cand] = true
		stack = append(stack, cand)
	}
}

// carveBacktracker carves with recursive backtracking, shuffling the
// direction order at every cell for a more balanced wall density.
func carveBacktracker(m *Maze, rng *rand.Rand) {
	fillWalls(m)

	var carve func(p Position)
	carve = func(p Position) {
		m.setWall(p, false)

		dirs := [4][2]int{{0, 2}, {2, 0}, {0, -2}, {-2, 0}}
		rng.Shuffle(len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })

		for _, d := range dirs {
			cand := Position{p.Row + d[0], p.Col + d[1]}
			if m.InBounds(cand) && m.Wall(cand) {
				between := Position{p.Row + d[0]/2, p.Col + d[1]/2}
				m.setWall(between, false)
				carve(cand)
			}
		}
	}

	carve(m.Start)
}

// placeRandomWalls marks each cell as a wall independently with probability p.
func placeRandomWalls(m *Maze, rng *rand.Rand, p float64) {
	for r := 0; r < m.Size; r++ {
		for c := 0; c < m.Size; c++ {
			m.setWall(Position{r, c}, rng.Float64() < p)
		}
	}
}

// carveFallbackCorridor opens a staircase corridor along the main diagonal:
// cells (i,i) plus the (i-1,i) connector. It restores solvability while
// leaving every other wall in place.
func carveFallbackCorridor(m *Maze) {
	for i := 0; i < m.Size; i++ {
		m.setWall(Position{i, i}, false)
		if i > 0 {
			m.setWall(Position{i - 1, i}, false)
		}
	}
}

func fillWalls(m *Maze) {
	for i := range m.walls {
		m.walls[i] = true
	}
}
