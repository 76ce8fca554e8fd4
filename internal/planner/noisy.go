package planner

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/reliancelab/mazesim/internal/env"
	"github.com/reliancelab/mazesim/internal/maze"
	"github.com/reliancelab/mazesim/internal/noise"
)

// Noisy wraps Plan with an optional noise model, simulating an unreliable
// pathfinding tool. A nil model makes it a transparent passthrough. Each
// episode owns its own Noisy instance; call history is not shared.
type Noisy struct {
	model noise.Model
	rng   *rand.Rand

	mu      sync.Mutex
	calls   int
	optimal int
	ratios  []float64
}

// NewNoisy builds a noisy planner seeded for reproducibility.
func NewNoisy(model noise.Model, seed int64) *Noisy {
	return &Noisy{
		model: model,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Plan returns the (possibly corrupted) path from source to target, or nil
// when no path exists. The corruption never hides unreachability: a nil
// optimal path stays nil.
func (n *Noisy) Plan(m *maze.Maze, source, target maze.Position) []maze.Position {
	optimal := Plan(m, source, target)
	if optimal == nil {
		return nil
	}

	out := optimal
	if n.model != nil {
		out = n.model.Apply(optimal, m, n.rng)
	}

	n.mu.Lock()
	n.calls++
	if pathsEqual(out, optimal) {
		n.optimal++
	}
	if len(optimal) > 1 {
		n.ratios = append(n.ratios, float64(len(out))/float64(len(optimal)))
	}
	n.mu.Unlock()

	return out
}

// Stats summarizes the wrapper's call history.
type Stats struct {
	Calls           int     `json:"calls"`
	OptimalRate     float64 `json:"optimal_rate"`
	AvgLengthRatio  float64 `json:"avg_length_ratio"`
	ConfiguredLevel float64 `json:"configured_level"`
}

// Stats reports how often the returned path matched the optimal one.
func (n *Noisy) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := Stats{Calls: n.calls}
	if n.model != nil {
		s.ConfiguredLevel = n.model.Level()
	}
	if n.calls > 0 {
		s.OptimalRate = float64(n.optimal) / float64(n.calls)
	}
	if len(n.ratios) > 0 {
		var sum float64
		for _, r := range n.ratios {
			sum += r
		}
		s.AvgLengthRatio = sum / float64(len(n.ratios))
	}
	return s
}

// FormatPath renders a path as a direction sequence ("right -> down -> down")
// for inclusion in a collaborator prompt.
func FormatPath(path []maze.Position) string {
	if len(path) <= 1 {
		return "already at or next to the target"
	}
	dirs := make([]string, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		a, err := env.ActionBetween(path[i], path[i+1])
		if err != nil {
			dirs = append(dirs, "?")
			continue
		}
		dirs = append(dirs, a.String())
	}
	return strings.Join(dirs, " -> ")
}

func pathsEqual(a, b []maze.Position) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
