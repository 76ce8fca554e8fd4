package noise_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliancelab/mazesim/internal/maze"
	"github.com/reliancelab/mazesim/internal/noise"
	"github.com/reliancelab/mazesim/internal/planner"
)

func solvableMaze(t *testing.T, size int, seed int64) (*maze.Maze, []maze.Position) {
	t.Helper()
	m, err := maze.Generate(size, maze.DifficultyMedium, seed)
	require.NoError(t, err)
	path := planner.Plan(m, m.Start, m.Goal)
	require.NotNil(t, path)
	return m, path
}

func TestFactoryRejectsBadInput(t *testing.T) {
	_, err := noise.New(noise.TypeRandom, -0.1)
	assert.Error(t, err)

	_, err = noise.New(noise.TypeRandom, 1.5)
	assert.Error(t, err)

	_, err = noise.New("gaussian", 0.5)
	assert.Error(t, err)
}

func TestFactoryNoneIsNilModel(t *testing.T) {
	model, err := noise.New(noise.TypeNone, 0.0)
	require.NoError(t, err)
	assert.Nil(t, model)
}

func TestZeroLevelIsIdentity(t *testing.T) {
	m, path := solvableMaze(t, 8, 7)
	rng := rand.New(rand.NewSource(1))

	for _, typ := range []string{noise.TypeRandom, noise.TypeBiased, noise.TypeDelayed, noise.TypeCombined} {
		model, err := noise.New(typ, 0.0)
		require.NoError(t, err)
		require.NotNil(t, model)

		got := model.Apply(path, m, rng)
		assert.Equal(t, path, got, "type %s at level 0 must not change the path", typ)
		assert.Equal(t, 0.0, model.Level())
	}
}

func TestRandomKeepsStepsAdjacentAndWalkable(t *testing.T) {
	m, path := solvableMaze(t, 10, 3)
	rng := rand.New(rand.NewSource(11))

	model, err := noise.New(noise.TypeRandom, 0.6)
	require.NoError(t, err)

	got := model.Apply(path, m, rng)
	require.NotEmpty(t, got)
	assert.Equal(t, path[0], got[0])
	for i, p := range got {
		assert.True(t, m.Walkable(p))
		if i > 0 {
			assert.Equal(t, 1, got[i-1].ManhattanTo(p))
		}
	}
}

func TestRandomFullLevelDiverges(t *testing.T) {
	m, path := solvableMaze(t, 10, 3)
	require.Greater(t, len(path), 3)

	model, err := noise.New(noise.TypeRandom, 1.0)
	require.NoError(t, err)

	// At full corruption at least one seed must diverge from the optimal.
	diverged := false
	for seed := int64(0); seed < 10; seed++ {
		got := model.Apply(path, m, rand.New(rand.NewSource(seed)))
		if !samePath(got, path) {
			diverged = true
			break
		}
	}
	assert.True(t, diverged)
}

func TestBiasedPreservesEndpointsOfValidSteps(t *testing.T) {
	m, path := solvableMaze(t, 10, 5)
	rng := rand.New(rand.NewSource(2))

	model, err := noise.New(noise.TypeBiased, 0.5)
	require.NoError(t, err)

	got := model.Apply(path, m, rng)
	require.NotEmpty(t, got)
	assert.Equal(t, path[0], got[0])
	for i := 1; i < len(got); i++ {
		assert.True(t, m.Walkable(got[i]))
		assert.Equal(t, 1, got[i-1].ManhattanTo(got[i]))
	}
}

func TestDelayedReturnsStaleOrTruncatedPaths(t *testing.T) {
	m, path := solvableMaze(t, 10, 9)
	require.Greater(t, len(path), 6)
	rng := rand.New(rand.NewSource(4))

	model, err := noise.New(noise.TypeDelayed, 1.0)
	require.NoError(t, err)

	// First call has no history, so it can only truncate.
	first := model.Apply(path, m, rng)
	assert.LessOrEqual(t, len(first), len(path))
	assert.NotEmpty(t, first)

	// With history established, later calls can replay older paths.
	shorter := path[2:]
	second := model.Apply(shorter, m, rng)
	assert.NotEmpty(t, second)
}

func TestCombinedLevelIsUnionOfComponents(t *testing.T) {
	half, err := noise.New(noise.TypeCombined, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, half.Level(), 1e-9)

	zero, err := noise.New(noise.TypeCombined, 0.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero.Level())
}

func TestCombinedAppliesInDeclaredOrder(t *testing.T) {
	m, path := solvableMaze(t, 8, 13)

	var order []string
	c := noise.NewCombined(
		recorder{name: "a", order: &order},
		recorder{name: "b", order: &order},
	)
	c.Apply(path, m, rand.New(rand.NewSource(0)))
	assert.Equal(t, []string{"a", "b"}, order)
}

type recorder struct {
	name  string
	order *[]string
}

func (r recorder) Apply(path []maze.Position, m *maze.Maze, rng *rand.Rand) []maze.Position {
	*r.order = append(*r.order, r.name)
	return path
}

func (r recorder) Level() float64 { return 0 }

func samePath(a, b []maze.Position) bool {
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
