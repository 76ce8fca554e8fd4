package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reliancelab/mazesim/internal/circuitbreaker"
	"github.com/reliancelab/mazesim/internal/env"
	"github.com/reliancelab/mazesim/internal/maze"
	"github.com/reliancelab/mazesim/internal/metrics"
	"github.com/reliancelab/mazesim/internal/session"
	"github.com/reliancelab/mazesim/internal/tracing"
)

// LLMConfig configures the HTTP decision collaborator.
type LLMConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RequestsPerMn int           `mapstructure:"requests_per_minute"`
	HistoryTurns  int           `mapstructure:"history_turns"`
}

// LLM asks an external language model for each step decision over HTTP. Any
// fault on the wire (timeout, non-200, unparseable answer, open breaker)
// degrades to the greedy move for that single step; the episode always
// continues.
type LLM struct {
	cfg      LLMConfig
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *circuitbreaker.Breaker
	sessions *session.Manager
	logger   *zap.Logger
}

// NewLLM builds the collaborator client. The session manager may be nil, in
// which case prompts carry no conversational history.
func NewLLM(cfg LLMConfig, sessions *session.Manager, logger *zap.Logger) *LLM {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerMn == 0 {
		cfg.RequestsPerMn = 60
	}
	if cfg.HistoryTurns == 0 {
		cfg.HistoryTurns = 10
	}
	return &LLM{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMn)/60.0), 1),
		breaker:  circuitbreaker.New("collaborator", circuitbreaker.DefaultSettings(), logger),
		sessions: sessions,
		logger:   logger,
	}
}

func (l *LLM) Name() string { return "llm" }

// InitializeEpisode is a no-op: the client is shared across episodes and
// keeps no per-episode state; everything it needs arrives in the StepContext.
func (l *LLM) InitializeEpisode(maze.Position, int) {}

type chatRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	History string `json:"history,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// decision is the JSON answer the model is instructed to produce.
type decision struct {
	UseTool   bool   `json:"use_tool"`
	Direction string `json:"direction"`
}

// Decide makes exactly one HTTP round-trip and never returns an error: every
// fault is absorbed into a greedy fallback so the environment still advances.
func (l *LLM) Decide(ctx context.Context, sc StepContext) (StepDecision, error) {
	prompt := l.buildPrompt(sc)

	reply, err := l.call(ctx, prompt, sc.SessionID)
	if err != nil {
		l.logger.Warn("Collaborator call failed, using greedy fallback",
			zap.Int("step", sc.Step),
			zap.Error(err),
		)
		metrics.CollaboratorFallbacks.WithLabelValues(faultReason(err)).Inc()
		return StepDecision{
			UseTool:   false,
			Direction: GreedyMove(sc.Agent, sc.Goal, sc.ValidMoves),
			Source:    "fallback",
		}, nil
	}

	l.record(ctx, sc, prompt, reply)

	d, ok := parseDecision(reply, sc.ValidMoves)
	if !ok {
		metrics.CollaboratorFallbacks.WithLabelValues("unparseable").Inc()
		return StepDecision{
			UseTool:   false,
			Direction: GreedyMove(sc.Agent, sc.Goal, sc.ValidMoves),
			Source:    "fallback",
		}, nil
	}
	return d, nil
}

func (l *LLM) call(ctx context.Context, prompt, sessionID string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	var reply string
	err := l.breaker.Execute(ctx, func() error {
		var history string
		if l.sessions != nil && sessionID != "" {
			if s, err := l.sessions.Get(ctx, sessionID); err == nil {
				history = s.Transcript(l.cfg.HistoryTurns)
			}
		}

		body, err := json.Marshal(chatRequest{
			Model:   l.cfg.Model,
			Prompt:  prompt,
			History: history,
		})
		if err != nil {
			return err
		}

		ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, l.cfg.Endpoint)
		defer span.End()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		tracing.InjectTraceparent(ctx, req)

		resp, err := l.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("collaborator http status %d", resp.StatusCode)
		}

		var cr chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return err
		}
		reply = cr.Reply
		return nil
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordCollaboratorCall("llm", status, time.Since(start).Seconds())
	return reply, err
}

// record appends the exchange to the episode session, best-effort.
func (l *LLM) record(ctx context.Context, sc StepContext, prompt, reply string) {
	if l.sessions == nil || sc.SessionID == "" {
		return
	}
	_ = l.sessions.AppendTurn(ctx, sc.SessionID, session.Turn{
		Step: sc.Step, Role: "user", Content: prompt,
	})
	_ = l.sessions.AppendTurn(ctx, sc.SessionID, session.Turn{
		Step: sc.Step, Role: "assistant", Content: reply,
	})
}

func (l *LLM) buildPrompt(sc StepContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are navigating a %dx%d grid maze.\n", sc.MazeSize, sc.MazeSize)
	fmt.Fprintf(&b, "You are at (%d, %d). The goal is at (%d, %d).\n",
		sc.Agent.Row, sc.Agent.Col, sc.Goal.Row, sc.Goal.Col)

	moves := make([]string, len(sc.ValidMoves))
	for i, a := range sc.ValidMoves {
		moves[i] = a.String()
	}
	fmt.Fprintf(&b, "Valid moves: %s.\n", strings.Join(moves, ", "))

	if len(sc.RecentPositions) > 0 {
		visited := make([]string, len(sc.RecentPositions))
		for i, p := range sc.RecentPositions {
			visited[i] = p.String()
		}
		fmt.Fprintf(&b, "Recently visited: %s. Avoid looping.\n", strings.Join(visited, ", "))
	}

	if sc.HasSuggestion {
		fmt.Fprintf(&b, "A pathfinding tool suggests: %s.\n", sc.SuggestionText)
		b.WriteString("The tool may be unreliable.\n")
	} else {
		b.WriteString("You may query a pathfinding tool; its suggestion arrives next step.\n")
	}
	if sc.ToolQueries > 0 {
		fmt.Fprintf(&b, "You have queried the tool %d time(s) so far.\n", sc.ToolQueries)
	}

	b.WriteString(`Answer with JSON only: {"use_tool": true|false, "direction": "<one valid move>"}`)
	return b.String()
}

// parseDecision extracts the decision from the model's reply. A strict JSON
// object is preferred; otherwise the first valid-move keyword in the text is
// taken and the tool is not queried.
func parseDecision(reply string, valid []env.Action) (StepDecision, bool) {
	trimmed := strings.TrimSpace(reply)

	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			var d decision
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &d); err == nil {
				if a, err := env.ParseAction(strings.ToLower(strings.TrimSpace(d.Direction))); err == nil && contains(valid, a) {
					return StepDecision{UseTool: d.UseTool, Direction: a, Source: "llm"}, true
				}
			}
		}
	}

	lower := strings.ToLower(trimmed)
	for _, a := range valid {
		if strings.Contains(lower, a.String()) {
			return StepDecision{UseTool: false, Direction: a, Source: "llm"}, true
		}
	}
	return StepDecision{}, false
}

func faultReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case strings.Contains(err.Error(), "circuit breaker"):
		return "breaker_open"
	case strings.Contains(err.Error(), "context deadline exceeded"):
		return "timeout"
	default:
		return "transport"
	}
}
