// Package env hosts the grid navigation environment: a two-state machine
// (active, terminated) that owns the agent position and step budget for the
// lifetime of one episode. All retry and recovery policy lives in the
// episode runner, never here.
package env

import (
	"errors"
	"fmt"

	"github.com/reliancelab/mazesim/internal/maze"
)

// Action is one of the four cardinal moves.
type Action int

const (
	ActionUp Action = iota
	ActionDown
	ActionLeft
	ActionRight
)

var actionNames = [4]string{"up", "down", "left", "right"}

var actionDeltas = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "unknown"
	}
	return actionNames[a]
}

// Delta returns the (row, col) displacement of the action.
func (a Action) Delta() (int, int) {
	d := actionDeltas[a]
	return d[0], d[1]
}

// Actions lists all moves in the fixed up/down/left/right order.
func Actions() [4]Action {
	return [4]Action{ActionUp, ActionDown, ActionLeft, ActionRight}
}

// ParseAction maps a direction name to an Action.
func ParseAction(name string) (Action, error) {
	for i, n := range actionNames {
		if n == name {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// ActionBetween returns the action moving from one cell to an adjacent cell,
// or an error if the cells are not cardinal neighbors.
func ActionBetween(from, to maze.Position) (Action, error) {
	dr, dc := to.Row-from.Row, to.Col-from.Col
	for i, d := range actionDeltas {
		if d[0] == dr && d[1] == dc {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("%v and %v are not adjacent", from, to)
}

// Termination is the outcome of a step.
type Termination int

const (
	TerminationNone      Termination = iota // episode continues
	TerminationGoal                         // goal reached: success
	TerminationTruncated                    // step budget exhausted: not success
)

func (t Termination) String() string {
	switch t {
	case TerminationNone:
		return "none"
	case TerminationGoal:
		return "goal"
	case TerminationTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// ErrTerminated is returned by Step once the environment has terminated;
// callers must Reset before stepping again.
var ErrTerminated = errors.New("environment is terminated")

// Observation is the full visible state: agent, goal and the grid. Nothing
// else is exposed.
type Observation struct {
	Agent maze.Position
	Goal  maze.Position
	Maze  *maze.Maze
	Steps int
}

// Environment is the stateful wrapper around one maze for one episode.
type Environment struct {
	maze     *maze.Maze
	agent    maze.Position
	steps    int
	maxSteps int
	done     bool
}

// DefaultMaxSteps is the conventional budget: the square of the linear size.
func DefaultMaxSteps(size int) int {
	return size * size
}

// New returns an environment that must be Reset before stepping.
func New() *Environment {
	return &Environment{done: true}
}

// Reset binds the environment to a maze, places the agent at the start and
// moves the machine to the active state. A maxSteps of zero selects the
// conventional size-squared budget.
func (e *Environment) Reset(m *maze.Maze, maxSteps int) Observation {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps(m.Size)
	}
	e.maze = m
	e.agent = m.Start
	e.steps = 0
	e.maxSteps = maxSteps
	e.done = false
	return e.observation()
}

// Step attempts one move. A move into a wall or off-grid leaves the agent in
// place but still consumes one step of budget. Termination fires when the
// agent stands on the goal or the budget runs out.
func (e *Environment) Step(a Action) (Observation, Termination, error) {
	if e.done {
		return e.observation(), TerminationNone, ErrTerminated
	}
	if a < 0 || int(a) >= len(actionDeltas) {
		return e.observation(), TerminationNone, fmt.Errorf("invalid action %d", a)
	}

	e.steps++

	dr, dc := a.Delta()
	next := maze.Position{Row: e.agent.Row + dr, Col: e.agent.Col + dc}
	if e.maze.Walkable(next) {
		e.agent = next
	}

	term := TerminationNone
	switch {
	case e.agent == e.maze.Goal:
		term = TerminationGoal
		e.done = true
	case e.steps >= e.maxSteps:
		term = TerminationTruncated
		e.done = true
	}

	return e.observation(), term, nil
}

// ValidMoves returns the actions whose target cell is in bounds and
// walkable, in the fixed up/down/left/right order.
func (e *Environment) ValidMoves() []Action {
	var out []Action
	for _, a := range Actions() {
		dr, dc := a.Delta()
		if e.maze.Walkable(maze.Position{Row: e.agent.Row + dr, Col: e.agent.Col + dc}) {
			out = append(out, a)
		}
	}
	return out
}

// DistanceToGoal is the Manhattan distance from the agent to the goal.
func (e *Environment) DistanceToGoal() int {
	return e.agent.ManhattanTo(e.maze.Goal)
}

// Steps returns the number of steps consumed so far.
func (e *Environment) Steps() int { return e.steps }

// Terminated reports whether the machine is in the terminated state.
func (e *Environment) Terminated() bool { return e.done }

func (e *Environment) observation() Observation {
	if e.maze == nil {
		return Observation{}
	}
	return Observation{
		Agent: e.agent,
		Goal:  e.maze.Goal,
		Maze:  e.maze,
		Steps: e.steps,
	}
}
