package maze

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRejectsInvalidParameters(t *testing.T) {
	var genErr *GenerationError

	_, err := Generate(0, DifficultyEasy, 1)
	require.Error(t, err)
	assert.True(t, errors.As(err, &genErr))

	_, err = Generate(-3, DifficultyMedium, 1)
	require.Error(t, err)
	assert.True(t, errors.As(err, &genErr))

	_, err = Generate(8, Difficulty("nightmare"), 1)
	require.Error(t, err)
	assert.True(t, errors.As(err, &genErr))
}

func TestGenerateGuaranteesReachability(t *testing.T) {
	sizes := []int{2, 3, 5, 8, 16}
	difficulties := []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
	seeds := []int64{0, 1, 42, 1337, 99999}

	for _, size := range sizes {
		for _, diff := range difficulties {
			for _, seed := range seeds {
				m, err := Generate(size, diff, seed)
				require.NoError(t, err, "size=%d diff=%s seed=%d", size, diff, seed)
				assert.True(t, m.Walkable(m.Start))
				assert.True(t, m.Walkable(m.Goal))
				assert.True(t, m.reachable(), "size=%d diff=%s seed=%d must be solvable", size, diff, seed)
			}
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := Generate(12, DifficultyHard, 7)
	require.NoError(t, err)
	b, err := Generate(12, DifficultyHard, 7)
	require.NoError(t, err)

	assert.Equal(t, a.Grid(), b.Grid())
}

func TestFallbackCorridorPreservesWalls(t *testing.T) {
	// Dense random maze that almost certainly needs the fallback corridor.
	m, err := Generate(10, DifficultyHard, 3)
	require.NoError(t, err)

	require.True(t, m.reachable())
	// The corridor must not have wiped the maze: a 0.4 wall probability on
	// 100 cells leaves plenty of walls even after opening the diagonal.
	assert.Greater(t, m.WallCount(), 0)
}

func TestWalkableNeighborsOrderIsFixed(t *testing.T) {
	m := newMaze(3)
	got := m.WalkableNeighbors(Position{1, 1})
	want := []Position{{0, 1}, {2, 1}, {1, 0}, {1, 2}} // up, down, left, right
	assert.Equal(t, want, got)
}

func TestManhattanTo(t *testing.T) {
	assert.Equal(t, 0, Position{2, 2}.ManhattanTo(Position{2, 2}))
	assert.Equal(t, 8, Position{0, 0}.ManhattanTo(Position{4, 4}))
	assert.Equal(t, 5, Position{3, 1}.ManhattanTo(Position{0, 3}))
}
