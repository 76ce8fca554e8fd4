// Package metrics provides Prometheus metrics for the simulator
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Episode metrics
	EpisodesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mazesim_episodes_started_total",
			Help: "Total number of episodes started",
		},
		[]string{"configuration", "strategy"},
	)

	EpisodesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mazesim_episodes_completed_total",
			Help: "Total number of episodes completed",
		},
		[]string{"configuration", "strategy", "outcome"},
	)

	EpisodeSteps = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mazesim_episode_steps",
			Help:    "Steps consumed per episode",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400},
		},
		[]string{"configuration"},
	)

	EpisodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mazesim_episode_duration_seconds",
			Help:    "Wall-clock episode duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"configuration"},
	)

	// Tool metrics
	ToolQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mazesim_tool_queries_total",
			Help: "Total number of pathfinding tool queries",
		},
		[]string{"configuration", "noise_type"},
	)

	ToolSuggestionsFollowed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mazesim_tool_suggestions_followed_total",
			Help: "Total number of steps where the agent followed the tool suggestion",
		},
	)

	// Collaborator metrics
	CollaboratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mazesim_collaborator_calls_total",
			Help: "Total number of decision collaborator calls",
		},
		[]string{"kind", "status"},
	)

	CollaboratorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mazesim_collaborator_latency_seconds",
			Help:    "Decision collaborator call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	CollaboratorFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mazesim_collaborator_fallbacks_total",
			Help: "Total number of collaborator faults absorbed by the greedy fallback",
		},
		[]string{"reason"},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mazesim_sessions_created_total",
			Help: "Total number of episode sessions created",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mazesim_sessions_active",
			Help: "Number of active episode sessions",
		},
	)

	SessionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mazesim_session_cache_hits_total",
			Help: "Total number of session cache hits",
		},
	)

	SessionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mazesim_session_cache_misses_total",
			Help: "Total number of session cache misses",
		},
	)

	// Experiment metrics
	ExperimentsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mazesim_experiments_active",
			Help: "Number of experiments currently running",
		},
	)

	BlindRelianceIndex = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mazesim_blind_reliance_index",
			Help: "Latest blind reliance index per configuration",
		},
		[]string{"configuration"},
	)

	MazeGenerationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mazesim_maze_generation_fallbacks_total",
			Help: "Total number of mazes repaired with the fallback corridor",
		},
	)
)

// RecordEpisodeMetrics records metrics for a completed episode
func RecordEpisodeMetrics(configuration, strategy, outcome string, steps int, durationSeconds float64) {
	EpisodesCompleted.WithLabelValues(configuration, strategy, outcome).Inc()
	EpisodeSteps.WithLabelValues(configuration).Observe(float64(steps))
	EpisodeDuration.WithLabelValues(configuration).Observe(durationSeconds)
}

// RecordCollaboratorCall records metrics for one collaborator round-trip
func RecordCollaboratorCall(kind, status string, durationSeconds float64) {
	CollaboratorCalls.WithLabelValues(kind, status).Inc()
	if durationSeconds > 0 {
		CollaboratorLatency.WithLabelValues(kind).Observe(durationSeconds)
	}
}
