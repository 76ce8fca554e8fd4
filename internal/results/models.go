// Package results persists experiment outcomes: a JSON document per
// experiment for ad-hoc inspection and an optional SQL store for querying
// across runs.
package results

import (
	"time"

	"github.com/reliancelab/mazesim/internal/analysis"
	"github.com/reliancelab/mazesim/internal/runner"
)

// ConfigurationResult bundles one configuration's raw and derived outcomes.
type ConfigurationResult struct {
	Config       runner.Config            `json:"config"`
	Trajectories []runner.Trajectory      `json:"trajectories"`
	Aggregate    analysis.Aggregate       `json:"aggregate"`
	Reliance     *analysis.RelianceReport `json:"reliance,omitempty"` // nil for the baseline itself
}

// ExperimentRecord is the top-level persisted document.
type ExperimentRecord struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Baseline   string                `json:"baseline"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Results    []ConfigurationResult `json:"results"`
}
