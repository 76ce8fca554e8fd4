// Package runner executes episodes: it wires a maze, an environment, a
// noisy planner and a decider together and records everything the analysis
// stage needs. The decider is consulted exactly once per environment step;
// tool suggestions requested at step N become visible at step N+1.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reliancelab/mazesim/internal/agent"
	"github.com/reliancelab/mazesim/internal/env"
	"github.com/reliancelab/mazesim/internal/maze"
	"github.com/reliancelab/mazesim/internal/metrics"
	"github.com/reliancelab/mazesim/internal/noise"
	"github.com/reliancelab/mazesim/internal/planner"
	"github.com/reliancelab/mazesim/internal/session"
	"github.com/reliancelab/mazesim/internal/tracing"
)

// Config describes one experiment configuration: a maze family, a noise
// setting and a decision strategy, run for a number of episodes.
type Config struct {
	Name       string          `mapstructure:"name"`
	MazeSize   int             `mapstructure:"maze_size"`
	Difficulty maze.Difficulty `mapstructure:"difficulty"`
	NoiseType  string          `mapstructure:"noise_type"`
	NoiseLevel float64         `mapstructure:"noise_level"`
	Strategy   string          `mapstructure:"strategy"`
	// ToolEnabled grants this configuration access to the pathfinding
	// tool. With it off, use_tool decisions are ignored, which is how a
	// baseline shares its decision-maker with a treatment group.
	ToolEnabled bool  `mapstructure:"tool_enabled"`
	Episodes    int   `mapstructure:"episodes"`
	MaxSteps    int   `mapstructure:"max_steps"` // 0 selects size*size
	Seed        int64 `mapstructure:"seed"`
	Workers     int   `mapstructure:"workers"`

	// Collaborator is consulted only when Strategy is "llm".
	Collaborator agent.LLMConfig `mapstructure:"collaborator"`
}

// Validate rejects configurations before any episode starts.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("configuration name is required")
	}
	if c.MazeSize <= 1 {
		return fmt.Errorf("maze size must be at least 2, got %d", c.MazeSize)
	}
	if c.Episodes <= 0 {
		return fmt.Errorf("episodes must be positive, got %d", c.Episodes)
	}
	if c.NoiseType == "" {
		c.NoiseType = noise.TypeNone
	}
	if _, err := noise.New(c.NoiseType, c.NoiseLevel); err != nil {
		return err
	}
	if c.Strategy != "llm" {
		if _, err := agent.NewStrategy(c.Strategy); err != nil {
			return err
		}
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return nil
}

// ToolQuery records one pathfinding tool consultation.
type ToolQuery struct {
	Step           int           `json:"step"`
	Agent          maze.Position `json:"agent"`
	Suggested      env.Action    `json:"suggested"`
	SuggestedText  string        `json:"suggested_text"`
	PathLen        int           `json:"path_len"`
	MatchesOptimal bool          `json:"matches_optimal"`
	Followed       bool          `json:"followed"`
}

// StepRecord is the per-step ground truth used by the metrics engine.
type StepRecord struct {
	Step     int           `json:"step"`
	Position maze.Position `json:"position"`
	Action   env.Action    `json:"action"`
	Source   string        `json:"source"`
	// UsedTool is set when a tool query was actually made this step, so
	// the usage rate and the query log always agree.
	UsedTool       bool `json:"used_tool"`
	FollowedTool   bool `json:"followed_tool"`
	MatchedOptimal bool `json:"matched_optimal"`
	// ReducedDistance is set when the move strictly reduced Manhattan
	// distance to the goal; stepwise accuracy counts these.
	ReducedDistance bool `json:"reduced_distance"`
	Distance        int  `json:"distance"`
}

// Trajectory is the complete record of one episode.
type Trajectory struct {
	Episode       int           `json:"episode"`
	Seed          int64         `json:"seed"`
	Success       bool          `json:"success"`
	Steps         int           `json:"steps"`
	OptimalLength int           `json:"optimal_length"`
	FinalDistance int           `json:"final_distance"`
	Records       []StepRecord  `json:"records"`
	ToolQueries   []ToolQuery   `json:"tool_queries"`
	ToolStats     planner.Stats `json:"tool_stats"`
	Duration      time.Duration `json:"duration"`
}

// Runner executes all episodes of one configuration.
type Runner struct {
	cfg      Config
	sessions *session.Manager
	logger   *zap.Logger

	// shared LLM client; heuristic deciders are built fresh per episode
	llm *agent.LLM

	// deciderFactory overrides strategy lookup when set
	deciderFactory func() (agent.Decider, error)
}

// New builds a runner. The session manager may be nil; episodes then run
// without conversational context.
func New(cfg Config, sessions *session.Manager, logger *zap.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %q: %w", cfg.Name, err)
	}

	r := &Runner{cfg: cfg, sessions: sessions, logger: logger}
	if cfg.Strategy == "llm" {
		r.llm = agent.NewLLM(cfg.Collaborator, sessions, logger)
	}
	return r, nil
}

// Run executes every episode, spreading them over the configured worker
// count. Episode seeds are derived from the base seed so results do not
// depend on scheduling order.
func (r *Runner) Run(ctx context.Context) ([]Trajectory, error) {
	out := make([]Trajectory, r.cfg.Episodes)
	jobs := make(chan int)
	errs := make(chan error, r.cfg.Episodes)

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for episode := range jobs {
				traj, err := r.RunEpisode(ctx, episode)
				if err != nil {
					errs <- fmt.Errorf("episode %d: %w", episode, err)
					continue
				}
				out[episode] = traj
			}
		}()
	}

	for episode := 0; episode < r.cfg.Episodes; episode++ {
		select {
		case jobs <- episode:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	var failures []error
	for err := range errs {
		failures = append(failures, err)
	}
	if len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	return out, nil
}

// RunEpisode runs one episode end to end.
func (r *Runner) RunEpisode(ctx context.Context, episode int) (Trajectory, error) {
	ctx, span := tracing.StartEpisodeSpan(ctx, r.cfg.Name, episode)
	defer span.End()

	start := time.Now()
	seed := r.cfg.Seed + int64(episode)

	m, err := maze.Generate(r.cfg.MazeSize, r.cfg.Difficulty, seed)
	if err != nil {
		return Trajectory{}, fmt.Errorf("maze generation: %w", err)
	}

	optimal := planner.Plan(m, m.Start, m.Goal)
	if optimal == nil {
		// Generation guarantees solvability; this would be a bug there.
		return Trajectory{}, fmt.Errorf("generated maze is unsolvable")
	}

	model, err := noise.New(r.cfg.NoiseType, r.cfg.NoiseLevel)
	if err != nil {
		return Trajectory{}, err
	}
	tool := planner.NewNoisy(model, seed)

	decider, err := r.newDecider()
	if err != nil {
		return Trajectory{}, err
	}
	decider.InitializeEpisode(m.Goal, m.Size)

	var sessionID string
	if r.sessions != nil {
		s, err := r.sessions.StartEpisode(ctx, r.cfg.Name, r.cfg.Name, decider.Name())
		if err == nil {
			sessionID = s.ID
			defer r.sessions.EndEpisode(ctx, sessionID)
		}
	}

	e := env.New()
	obs := e.Reset(m, r.cfg.MaxSteps)

	metrics.EpisodesStarted.WithLabelValues(r.cfg.Name, decider.Name()).Inc()

	traj := Trajectory{
		Episode:       episode,
		Seed:          seed,
		OptimalLength: len(optimal) - 1,
	}

	// Suggestion produced by the previous step's tool query.
	var (
		pending     bool
		pendingAct  env.Action
		pendingText string
		pendingIdx  int // index into traj.ToolQueries, for the Followed flag
	)
	var recentPositions []maze.Position

	for !e.Terminated() {
		if err := ctx.Err(); err != nil {
			return Trajectory{}, err
		}

		sc := agent.StepContext{
			Step:            e.Steps(),
			Agent:           obs.Agent,
			Goal:            obs.Goal,
			MazeSize:        m.Size,
			ValidMoves:      e.ValidMoves(),
			RecentPositions: recentPositions,
			ToolQueries:     len(traj.ToolQueries),
			HasSuggestion:   pending,
			Suggestion:      pendingAct,
			SuggestionText:  pendingText,
			SessionID:       sessionID,
		}

		decision, err := decider.Decide(ctx, sc)
		if err != nil {
			// Heuristic deciders never fail, and the LLM client absorbs its
			// own faults; this guards third-party Decider implementations.
			r.logger.Warn("Decider fault, taking greedy move",
				zap.Int("step", sc.Step), zap.Error(err))
			metrics.CollaboratorFallbacks.WithLabelValues("decider_error").Inc()
			decision = agent.StepDecision{
				Direction: agent.GreedyMove(sc.Agent, sc.Goal, sc.ValidMoves),
				Source:    "fallback",
			}
		}

		followed := pending && decision.Direction == pendingAct
		if followed {
			traj.ToolQueries[pendingIdx].Followed = true
			metrics.ToolSuggestionsFollowed.Inc()
		}
		matchedOptimal := r.matchesOptimal(m, obs.Agent, decision.Direction)

		distBefore := e.DistanceToGoal()
		newObs, _, err := e.Step(decision.Direction)
		if err != nil {
			return Trajectory{}, fmt.Errorf("environment step: %w", err)
		}

		if followed {
			if observer, ok := decider.(agent.ToolObserver); ok {
				observer.ObserveTool(e.DistanceToGoal() < distBefore)
			}
		}

		// The tool query happens after the move and only when the
		// configuration grants tool access; its answer is context for the
		// next step.
		queried := r.cfg.ToolEnabled && decision.UseTool && !e.Terminated()

		traj.Records = append(traj.Records, StepRecord{
			Step:            sc.Step,
			Position:        sc.Agent,
			Action:          decision.Direction,
			Source:          decision.Source,
			UsedTool:        queried,
			FollowedTool:    followed,
			MatchedOptimal:  matchedOptimal,
			ReducedDistance: e.DistanceToGoal() < distBefore,
			Distance:        e.DistanceToGoal(),
		})
		recentPositions = append(recentPositions, sc.Agent)
		if len(recentPositions) > 5 {
			recentPositions = recentPositions[len(recentPositions)-5:]
		}

		pending = false
		if queried {
			pending, pendingAct, pendingText, pendingIdx = r.queryTool(m, tool, newObs.Agent, newObs.Goal, e.Steps(), &traj)
		}

		obs = newObs
	}

	traj.Steps = e.Steps()
	traj.Success = obs.Agent == m.Goal
	traj.FinalDistance = e.DistanceToGoal()
	traj.ToolStats = tool.Stats()
	traj.Duration = time.Since(start)

	outcome := "truncated"
	if traj.Success {
		outcome = "goal"
	}
	metrics.RecordEpisodeMetrics(r.cfg.Name, decider.Name(), outcome, traj.Steps, traj.Duration.Seconds())

	r.logger.Debug("Episode finished",
		zap.String("configuration", r.cfg.Name),
		zap.Int("episode", episode),
		zap.Bool("success", traj.Success),
		zap.Int("steps", traj.Steps),
		zap.Int("tool_queries", len(traj.ToolQueries)),
	)
	return traj, nil
}

// queryTool makes one noisy planner call and records it. It returns the
// suggestion for the next step, or pending=false when the tool produced
// nothing actionable.
func (r *Runner) queryTool(m *maze.Maze, tool *planner.Noisy, agentPos, goal maze.Position, step int, traj *Trajectory) (bool, env.Action, string, int) {
	metrics.ToolQueries.WithLabelValues(r.cfg.Name, r.cfg.NoiseType).Inc()

	path := tool.Plan(m, agentPos, goal)
	if len(path) < 2 {
		return false, 0, "", 0
	}

	act, err := env.ActionBetween(path[0], path[1])
	if err != nil {
		return false, 0, "", 0
	}

	traj.ToolQueries = append(traj.ToolQueries, ToolQuery{
		Step:           step,
		Agent:          agentPos,
		Suggested:      act,
		SuggestedText:  planner.FormatPath(path),
		PathLen:        len(path) - 1,
		MatchesOptimal: r.matchesOptimal(m, agentPos, act),
	})
	return true, act, planner.FormatPath(path), len(traj.ToolQueries) - 1
}

// matchesOptimal reports whether the action is the first move of some
// shortest path from the position.
func (r *Runner) matchesOptimal(m *maze.Maze, from maze.Position, a env.Action) bool {
	if from == m.Goal {
		return false
	}
	dr, dc := a.Delta()
	next := maze.Position{Row: from.Row + dr, Col: from.Col + dc}
	if !m.Walkable(next) {
		return false
	}
	rest := planner.BFSLen(m, next, m.Goal)
	best := planner.BFSLen(m, from, m.Goal)
	return rest >= 0 && best >= 0 && rest == best-1
}

func (r *Runner) newDecider() (agent.Decider, error) {
	if r.deciderFactory != nil {
		return r.deciderFactory()
	}
	if r.cfg.Strategy == "llm" {
		return r.llm, nil
	}
	return agent.NewStrategy(r.cfg.Strategy)
}
