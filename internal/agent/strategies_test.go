package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliancelab/mazesim/internal/env"
	"github.com/reliancelab/mazesim/internal/maze"
)

func stepContext() StepContext {
	return StepContext{
		Step:       0,
		Agent:      maze.Position{Row: 2, Col: 2},
		Goal:       maze.Position{Row: 4, Col: 4},
		MazeSize:   5,
		ValidMoves: []env.Action{env.ActionUp, env.ActionDown, env.ActionLeft, env.ActionRight},
	}
}

func TestNewStrategy(t *testing.T) {
	for _, name := range []string{StrategyGreedy, StrategyTrusting, StrategyAdaptive} {
		d, err := NewStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Name())
	}
	_, err := NewStrategy("oracle")
	assert.Error(t, err)
}

func TestGreedyMovesTowardGoal(t *testing.T) {
	d, err := Greedy{}.Decide(context.Background(), stepContext())
	require.NoError(t, err)
	assert.False(t, d.UseTool)
	// Down and right both reduce distance; down wins on fixed order.
	assert.Equal(t, env.ActionDown, d.Direction)
}

func TestGreedyMoveRespectsValidSet(t *testing.T) {
	sc := stepContext()
	sc.ValidMoves = []env.Action{env.ActionUp, env.ActionLeft}

	got := GreedyMove(sc.Agent, sc.Goal, sc.ValidMoves)
	// Both moves increase distance; the first of the fixed order wins.
	assert.Equal(t, env.ActionUp, got)
}

func TestTrustingFollowsSuggestion(t *testing.T) {
	sc := stepContext()
	sc.HasSuggestion = true
	sc.Suggestion = env.ActionLeft // away from the goal, followed anyway

	d, err := (&Trusting{}).Decide(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, d.UseTool)
	assert.Equal(t, env.ActionLeft, d.Direction)
	assert.Equal(t, "tool", d.Source)
}

func TestTrustingWithoutSuggestionGoesGreedy(t *testing.T) {
	d, err := (&Trusting{}).Decide(context.Background(), stepContext())
	require.NoError(t, err)
	assert.True(t, d.UseTool) // still queries for next step
	assert.Equal(t, env.ActionDown, d.Direction)
	assert.Equal(t, "greedy", d.Source)
}

func TestTrustingIgnoresInvalidSuggestion(t *testing.T) {
	sc := stepContext()
	sc.ValidMoves = []env.Action{env.ActionDown}
	sc.HasSuggestion = true
	sc.Suggestion = env.ActionUp

	d, err := (&Trusting{}).Decide(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, env.ActionDown, d.Direction)
	assert.Equal(t, "greedy", d.Source)
}

func TestAdaptiveLosesTrustAfterBadSuggestions(t *testing.T) {
	a := NewAdaptive()
	assert.Equal(t, 1.0, a.Trust())

	for i := 0; i < 10; i++ {
		a.ObserveTool(false)
	}
	assert.Less(t, a.Trust(), trustFloor)

	d, err := a.Decide(context.Background(), stepContext())
	require.NoError(t, err)
	assert.False(t, d.UseTool)
	assert.Equal(t, "greedy", d.Source)
}

func TestAdaptiveRegainsTrust(t *testing.T) {
	a := NewAdaptive()
	for i := 0; i < 10; i++ {
		a.ObserveTool(false)
	}
	low := a.Trust()

	for i := 0; i < 20; i++ {
		a.ObserveTool(true)
	}
	assert.Greater(t, a.Trust(), low)
	assert.GreaterOrEqual(t, a.Trust(), trustFloor)

	d, err := a.Decide(context.Background(), stepContext())
	require.NoError(t, err)
	assert.True(t, d.UseTool)
}

func TestAdaptiveFollowsSuggestionWhileTrusting(t *testing.T) {
	a := NewAdaptive()
	sc := stepContext()
	sc.HasSuggestion = true
	sc.Suggestion = env.ActionRight

	d, err := a.Decide(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, d.UseTool)
	assert.Equal(t, env.ActionRight, d.Direction)
	assert.Equal(t, "tool", d.Source)
}
