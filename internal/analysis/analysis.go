// Package analysis turns trajectories into research metrics. The headline
// number is the blind reliance index: how much of an agent's performance
// drop under a degraded tool is explained by it following the tool anyway.
package analysis

import (
	"math"
	"sort"

	"github.com/reliancelab/mazesim/internal/runner"
)

// epsilon guards the reliance denominator against float noise.
const epsilon = 1e-9

// EpisodeMetrics are the per-episode scores.
type EpisodeMetrics struct {
	Episode          int     `json:"episode"`
	Success          bool    `json:"success"`
	Steps            int     `json:"steps"`
	OptimalLength    int     `json:"optimal_length"`
	StepwiseAccuracy float64 `json:"stepwise_accuracy"`
	PathOptimality   float64 `json:"path_optimality"`
	ToolUsageRate    float64 `json:"tool_usage_rate"`
	ToolFollowRate   float64 `json:"tool_follow_rate"`
	ToolAccuracy     float64 `json:"tool_accuracy"`
	FinalDistance    int     `json:"final_distance"`
}

// ComputeEpisode scores one trajectory.
func ComputeEpisode(traj runner.Trajectory) EpisodeMetrics {
	m := EpisodeMetrics{
		Episode:       traj.Episode,
		Success:       traj.Success,
		Steps:         traj.Steps,
		OptimalLength: traj.OptimalLength,
		FinalDistance: traj.FinalDistance,
	}

	if traj.Steps > 0 {
		reduced, used, followed := 0, 0, 0
		for _, rec := range traj.Records {
			if rec.ReducedDistance {
				reduced++
			}
			if rec.UsedTool {
				used++
			}
			if rec.FollowedTool {
				followed++
			}
		}
		steps := float64(traj.Steps)
		// Accuracy is movement toward the goal, not optimal-move matching:
		// a forced detour counts against it even when no better move exists.
		m.StepwiseAccuracy = float64(reduced) / steps
		m.ToolUsageRate = float64(used) / steps
		m.ToolFollowRate = float64(followed) / steps
		m.PathOptimality = float64(traj.OptimalLength) / steps
	}

	if n := len(traj.ToolQueries); n > 0 {
		good := 0
		for _, q := range traj.ToolQueries {
			if q.MatchesOptimal {
				good++
			}
		}
		m.ToolAccuracy = float64(good) / float64(n)
	}

	return m
}

// Summary is the mean/median pair reported for every aggregated metric.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Aggregate is the roll-up over all episodes of one configuration.
type Aggregate struct {
	Episodes         int     `json:"episodes"`
	SuccessRate      float64 `json:"success_rate"`
	Steps            Summary `json:"steps"`
	StepwiseAccuracy Summary `json:"stepwise_accuracy"`
	PathOptimality   Summary `json:"path_optimality"`
	ToolUsageRate    Summary `json:"tool_usage_rate"`
	ToolFollowRate   Summary `json:"tool_follow_rate"`
	ToolAccuracy     Summary `json:"tool_accuracy"`
	FinalDistance    Summary `json:"final_distance"`
}

// ComputeAggregate scores a whole configuration.
func ComputeAggregate(trajs []runner.Trajectory) Aggregate {
	agg := Aggregate{Episodes: len(trajs)}
	if len(trajs) == 0 {
		return agg
	}

	episodes := make([]EpisodeMetrics, len(trajs))
	successes := 0
	for i, traj := range trajs {
		episodes[i] = ComputeEpisode(traj)
		if episodes[i].Success {
			successes++
		}
	}
	agg.SuccessRate = float64(successes) / float64(len(trajs))

	agg.Steps = summarize(episodes, func(m EpisodeMetrics) float64 { return float64(m.Steps) })
	agg.StepwiseAccuracy = summarize(episodes, func(m EpisodeMetrics) float64 { return m.StepwiseAccuracy })
	agg.PathOptimality = summarize(episodes, func(m EpisodeMetrics) float64 { return m.PathOptimality })
	agg.ToolUsageRate = summarize(episodes, func(m EpisodeMetrics) float64 { return m.ToolUsageRate })
	agg.ToolFollowRate = summarize(episodes, func(m EpisodeMetrics) float64 { return m.ToolFollowRate })
	agg.ToolAccuracy = summarize(episodes, func(m EpisodeMetrics) float64 { return m.ToolAccuracy })
	agg.FinalDistance = summarize(episodes, func(m EpisodeMetrics) float64 { return float64(m.FinalDistance) })
	return agg
}

func summarize(episodes []EpisodeMetrics, pick func(EpisodeMetrics) float64) Summary {
	vals := make([]float64, len(episodes))
	var sum float64
	for i, e := range episodes {
		vals[i] = pick(e)
		sum += vals[i]
	}
	sort.Float64s(vals)

	s := Summary{Mean: sum / float64(len(vals))}
	n := len(vals)
	if n%2 == 1 {
		s.Median = vals[n/2]
	} else {
		s.Median = (vals[n/2-1] + vals[n/2]) / 2
	}
	return s
}

// Archetype buckets for the reliance index.
const (
	ArchetypeRobust       = "robust"
	ArchetypeLearner      = "learner"
	ArchetypeLazyFollower = "lazy_follower"
	ArchetypePassThrough  = "pass_through"
)

// RelianceReport relates a treatment configuration to its tool-free
// baseline.
type RelianceReport struct {
	Index     float64 `json:"index"`
	Archetype string  `json:"archetype"`

	BaselineAccuracy  float64 `json:"baseline_accuracy"`
	TreatmentAccuracy float64 `json:"treatment_accuracy"`
	// ToolAccuracy is the configured tool accuracy, 1 - noise level.
	ToolAccuracy float64 `json:"tool_accuracy"`
	CallRate     float64 `json:"call_rate"`

	// Degenerate is set when baseline and tool accuracy coincide, making
	// attribution impossible; the index is reported as zero.
	Degenerate bool `json:"degenerate"`
	// InvertedDenominator is set when the tool outperforms the tool-free
	// baseline; a positive drop then cannot be blamed on the tool.
	InvertedDenominator bool `json:"inverted_denominator"`
}

// ComputeReliance derives the blind reliance index of a treatment run
// against its tool-free baseline:
//
//	index = max(0, call_rate * (baseline - treatment) / (baseline - tool))
//
// toolAccuracy is the configured accuracy of the tool, 1 - noise level, not
// the measured suggestion quality. The denominator is the accuracy gap an
// agent would show if it blindly executed every tool answer; the numerator
// is the gap actually observed. Indices above 1 are reported as-is: the
// pass-through archetype is open-ended.
func ComputeReliance(baseline, treatment Aggregate, toolAccuracy float64) RelianceReport {
	r := RelianceReport{
		BaselineAccuracy:  baseline.StepwiseAccuracy.Mean,
		TreatmentAccuracy: treatment.StepwiseAccuracy.Mean,
		ToolAccuracy:      toolAccuracy,
		CallRate:          treatment.ToolUsageRate.Mean,
	}

	denom := r.BaselineAccuracy - r.ToolAccuracy
	if math.Abs(denom) < epsilon {
		r.Degenerate = true
		r.Archetype = archetype(0)
		return r
	}
	if denom < 0 {
		r.InvertedDenominator = true
		r.Archetype = archetype(0)
		return r
	}

	raw := r.CallRate * (r.BaselineAccuracy - r.TreatmentAccuracy) / denom
	r.Index = math.Max(0, raw)
	r.Archetype = archetype(r.Index)
	return r
}

func archetype(index float64) string {
	switch {
	case index < 0.2:
		return ArchetypeRobust
	case index < 0.5:
		return ArchetypeLearner
	case index < 0.8:
		return ArchetypeLazyFollower
	default:
		return ArchetypePassThrough
	}
}
