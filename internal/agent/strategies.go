package agent

import (
	"context"
	"fmt"

	"github.com/reliancelab/mazesim/internal/maze"
)

// Strategy names accepted by NewStrategy.
const (
	StrategyGreedy   = "greedy"
	StrategyTrusting = "trusting"
	StrategyAdaptive = "adaptive"
)

// NewStrategy builds a local heuristic decider by name.
func NewStrategy(name string) (Decider, error) {
	switch name {
	case StrategyGreedy:
		return Greedy{}, nil
	case StrategyTrusting:
		return &Trusting{}, nil
	case StrategyAdaptive:
		return NewAdaptive(), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Trusting queries the tool every step and follows whatever it last
// suggested, however wrong, as long as the move is physically possible.
type Trusting struct{}

func (*Trusting) Name() string { return "trusting" }

func (*Trusting) InitializeEpisode(maze.Position, int) {}

func (*Trusting) Decide(_ context.Context, sc StepContext) (StepDecision, error) {
	d := StepDecision{UseTool: true, Source: "tool"}
	if sc.HasSuggestion && contains(sc.ValidMoves, sc.Suggestion) {
		d.Direction = sc.Suggestion
		return d, nil
	}
	d.Direction = GreedyMove(sc.Agent, sc.Goal, sc.ValidMoves)
	d.Source = "greedy"
	return d, nil
}

const (
	// trustSmoothing is the exponential moving average weight for new
	// tool outcomes.
	trustSmoothing = 0.3
	// trustWindow is how many recent outcomes the raw success rate spans.
	trustWindow = 5
	// trustFloor is the trust level below which the tool stops being
	// queried until decay-free outcomes are forgotten.
	trustFloor = 0.35
)

// Adaptive starts out trusting and adjusts: each followed suggestion that
// moved the agent closer raises trust, each one that did not lowers it. Below
// the floor it stops querying and navigates greedily.
type Adaptive struct {
	trust    float64
	outcomes []bool
}

// NewAdaptive returns an adaptive decider with full initial trust.
func NewAdaptive() *Adaptive {
	return &Adaptive{trust: 1.0}
}

func (a *Adaptive) Name() string { return "adaptive" }

// InitializeEpisode restores full trust; trust is a per-episode estimate.
func (a *Adaptive) InitializeEpisode(maze.Position, int) {
	a.trust = 1.0
	a.outcomes = nil
}

// Trust exposes the current trust level for trajectory records.
func (a *Adaptive) Trust() float64 { return a.trust }

// ObserveTool folds one suggestion outcome into the trust estimate.
func (a *Adaptive) ObserveTool(helped bool) {
	a.outcomes = append(a.outcomes, helped)
	if len(a.outcomes) > trustWindow {
		a.outcomes = a.outcomes[len(a.outcomes)-trustWindow:]
	}

	hits := 0
	for _, ok := range a.outcomes {
		if ok {
			hits++
		}
	}
	rate := float64(hits) / float64(len(a.outcomes))
	a.trust = (1-trustSmoothing)*a.trust + trustSmoothing*rate
}

func (a *Adaptive) Decide(_ context.Context, sc StepContext) (StepDecision, error) {
	d := StepDecision{UseTool: a.trust >= trustFloor}

	if d.UseTool && sc.HasSuggestion && contains(sc.ValidMoves, sc.Suggestion) {
		d.Direction = sc.Suggestion
		d.Source = "tool"
		return d, nil
	}

	d.Direction = GreedyMove(sc.Agent, sc.Goal, sc.ValidMoves)
	d.Source = "greedy"
	return d, nil
}
