// Package agent hosts the decision-makers that drive an episode: local
// heuristic strategies and the HTTP collaborator client. A decider is asked
// exactly once per environment step and answers two questions at once:
// whether to query the pathfinding tool and which direction to move.
package agent

import (
	"context"

	"github.com/reliancelab/mazesim/internal/env"
	"github.com/reliancelab/mazesim/internal/maze"
)

// StepContext is everything a decider may observe at one step. The tool
// suggestion, when present, comes from the query made on the previous step;
// tool results are never available within the step that requested them.
type StepContext struct {
	Step       int
	Agent      maze.Position
	Goal       maze.Position
	MazeSize   int
	ValidMoves []env.Action
	// RecentPositions is a short window of previously visited cells, for
	// loop avoidance.
	RecentPositions []maze.Position
	ToolQueries     int // tool consultations made so far this episode
	HasSuggestion   bool
	Suggestion      env.Action
	SuggestionText  string
	SessionID       string
}

// StepDecision is a decider's answer for one step.
type StepDecision struct {
	UseTool   bool
	Direction env.Action
	Source    string // which decider produced the direction, for trajectory records
}

// Decider chooses one move per step. InitializeEpisode is called once before
// the first step with the episode's goal and maze size; implementations must
// be safe to drop after an episode, any cross-episode state belongs to the
// caller.
type Decider interface {
	InitializeEpisode(goal maze.Position, mazeSize int)
	Decide(ctx context.Context, sc StepContext) (StepDecision, error)
	Name() string
}

// ToolObserver is implemented by deciders that adjust behavior based on how
// tool suggestions worked out. The runner reports after each followed
// suggestion whether it moved the agent closer to the goal.
type ToolObserver interface {
	ObserveTool(helped bool)
}

// GreedyMove picks the valid move that most reduces Manhattan distance to the
// goal, in the fixed action order on ties. It is the universal fallback: any
// fault in a decider resolves to this.
func GreedyMove(agent, goal maze.Position, valid []env.Action) env.Action {
	if len(valid) == 0 {
		return env.ActionUp // no valid move exists; the step becomes a no-op
	}
	best := valid[0]
	bestDist := distanceAfter(agent, goal, best)
	for _, a := range valid[1:] {
		if d := distanceAfter(agent, goal, a); d < bestDist {
			best, bestDist = a, d
		}
	}
	return best
}

func distanceAfter(agent, goal maze.Position, a env.Action) int {
	dr, dc := a.Delta()
	return maze.Position{Row: agent.Row + dr, Col: agent.Col + dc}.ManhattanTo(goal)
}

// Greedy is the tool-free baseline decider.
type Greedy struct{}

func (Greedy) Name() string { return "greedy" }

func (Greedy) InitializeEpisode(maze.Position, int) {}

func (Greedy) Decide(_ context.Context, sc StepContext) (StepDecision, error) {
	return StepDecision{
		UseTool:   false,
		Direction: GreedyMove(sc.Agent, sc.Goal, sc.ValidMoves),
		Source:    "greedy",
	}, nil
}

// contains reports whether the action is in the valid set.
func contains(valid []env.Action, a env.Action) bool {
	for _, v := range valid {
		if v == a {
			return true
		}
	}
	return false
}
