// Package noise corrupts planner output to simulate an unreliable
// pathfinding tool. Every model is parameterized by a level in [0,1]:
// level 0 is the identity, level 1 yields a path with no guaranteed
// relationship to the optimal one. Tool accuracy for metrics purposes is
// defined as 1 - level.
package noise

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/reliancelab/mazesim/internal/maze"
)

// Model corrupts a computed path. Models may hold per-episode state (the
// delayed variant caches past paths), so each episode owns its own instance.
type Model interface {
	Apply(path []maze.Position, m *maze.Maze, rng *rand.Rand) []maze.Position
	Level() float64
}

// Type names accepted by New.
const (
	TypeNone     = "none"
	TypeRandom   = "random"
	TypeBiased   = "biased"
	TypeDelayed  = "delayed"
	TypeCombined = "combined"
)

// New builds a model by type name. TypeNone returns a nil model (no
// corruption). TypeCombined composes random then biased at the same level,
// in that fixed order.
func New(noiseType string, level float64) (Model, error) {
	if level < 0 || level > 1 {
		return nil, fmt.Errorf("noise level must be in [0,1], got %v", level)
	}
	switch noiseType {
	case TypeNone:
		return nil, nil
	case TypeRandom:
		return &Random{level: level}, nil
	case TypeBiased:
		return &Biased{level: level}, nil
	case TypeDelayed:
		return &Delayed{level: level}, nil
	case TypeCombined:
		return NewCombined(&Random{level: level}, &Biased{level: level}), nil
	default:
		return nil, fmt.Errorf("unknown noise type %q", noiseType)
	}
}

// Random replaces a level-fraction of path steps with random valid adjacent
// moves. The result may revisit cells or no longer reach the goal.
type Random struct {
	level float64
}

func (r *Random) Level() float64 { return r.level }

func (r *Random) Apply(path []maze.Position, m *maze.Maze, rng *rand.Rand) []maze.Position {
	if r.level == 0 || len(path) < 2 {
		return path
	}

	out := make([]maze.Position, 1, len(path))
	out[0] = path[0]
	cur := path[0]

	for i := 0; i < len(path)-1; i++ {
		var next maze.Position
		if rng.Float64() < r.level {
			next = randomNeighbor(m, cur, rng)
		} else {
			// Re-apply the original step delta from wherever we are now;
			// divergence earlier in the walk can make it invalid.
			dr := path[i+1].Row - path[i].Row
			dc := path[i+1].Col - path[i].Col
			next = maze.Position{Row: cur.Row + dr, Col: cur.Col + dc}
			if !m.Walkable(next) {
				next = randomNeighbor(m, cur, rng)
			}
		}
		if next == cur {
			break // isolated cell, nowhere to go
		}
		out = append(out, next)
		cur = next
	}
	return out
}

// Biased perturbs a level-fraction of steps in a fixed direction away from
// the goal.
type Biased struct {
	level float64
}

func (b *Biased) Level() float64 { return b.level }

func (b *Biased) Apply(path []maze.Position, m *maze.Maze, rng *rand.Rand) []maze.Position {
	if b.level == 0 || len(path) < 2 {
		return path
	}

	start, goal := path[0], path[len(path)-1]
	gr, gc := sign(goal.Row-start.Row), sign(goal.Col-start.Col)

	out := make([]maze.Position, 1, len(path))
	out[0] = start
	cur := start
	visited := map[maze.Position]bool{start: true}

	for i := 0; i < len(path)-1; i++ {
		var next maze.Position
		moved := false

		if rng.Float64() < b.level {
			// Cardinal moves pointing away from the goal.
			for _, d := range [][2]int{{-gr, 0}, {0, -gc}} {
				if d[0] == 0 && d[1] == 0 {
					continue
				}
				cand := maze.Position{Row: cur.Row + d[0], Col: cur.Col + d[1]}
				if m.Walkable(cand) && !visited[cand] {
					next, moved = cand, true
					break
				}
			}
		}
		if !moved {
			dr := path[i+1].Row - path[i].Row
			dc := path[i+1].Col - path[i].Col
			cand := maze.Position{Row: cur.Row + dr, Col: cur.Col + dc}
			if m.Walkable(cand) {
				next, moved = cand, true
			}
		}
		if !moved {
			break
		}
		out = append(out, next)
		visited[next] = true
		cur = next
	}
	return out
}

// maxDelaySteps bounds how stale a delayed path can be.
const maxDelaySteps = 5

// Delayed simulates cache lag: it returns a previously computed path, or a
// truncated one when no history exists yet. The staleness window scales with
// the level. Delayed is stateful and must not be shared across episodes.
type Delayed struct {
	level float64
	cache [][]maze.Position
}

func (d *Delayed) Level() float64 { return d.level }

func (d *Delayed) Apply(path []maze.Position, m *maze.Maze, rng *rand.Rand) []maze.Position {
	if d.level == 0 {
		return path
	}

	d.cache = append(d.cache, path)
	delay := int(math.Ceil(d.level * maxDelaySteps))

	if rng.Float64() < d.level && len(d.cache) > 1 {
		idx := len(d.cache) - 1 - delay
		if idx < 0 {
			idx = 0
		}
		return d.cache[idx]
	}
	if rng.Float64() < d.level {
		cut := len(path) - delay
		if cut < 1 {
			cut = 1
		}
		return path[:cut]
	}
	return path
}

// Combined composes models in the declared order: the output of one feeds
// the next.
type Combined struct {
	models []Model
}

// NewCombined builds the composition; order of arguments is the order of
// application.
func NewCombined(models ...Model) *Combined {
	return &Combined{models: models}
}

// Level reports the union probability of the component levels, matching the
// 1-level accuracy convention for composed corruption.
func (c *Combined) Level() float64 {
	clean := 1.0
	for _, m := range c.models {
		clean *= 1 - m.Level()
	}
	return 1 - clean
}

func (c *Combined) Apply(path []maze.Position, m *maze.Maze, rng *rand.Rand) []maze.Position {
	out := path
	for _, model := range c.models {
		out = model.Apply(out, m, rng)
	}
	return out
}

func randomNeighbor(m *maze.Maze, p maze.Position, rng *rand.Rand) maze.Position {
	ns := m.WalkableNeighbors(p)
	if len(ns) == 0 {
		return p
	}
	return ns[rng.Intn(len(ns))]
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}
