package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/reliancelab/mazesim/internal/analysis"
	"github.com/reliancelab/mazesim/internal/config"
	"github.com/reliancelab/mazesim/internal/metrics"
	"github.com/reliancelab/mazesim/internal/registry"
	"github.com/reliancelab/mazesim/internal/results"
	"github.com/reliancelab/mazesim/internal/runner"
	"github.com/reliancelab/mazesim/internal/session"
	"github.com/reliancelab/mazesim/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to the suite config (defaults to CONFIG_PATH or ./mazesim.yaml)")
	flag.Parse()

	watcher, err := config.NewWatcher(defaultedPath(*configPath), newBootstrapLogger())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	suite := watcher.Suite()

	logger, err := newLogger(suite.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config edits during a run apply to the next suite invocation.
	watcher.OnReload(func(s *config.Suite) {
		logger.Info("Suite definition changed on disk; the running suite is unaffected",
			zap.String("name", s.Name))
	})
	go watcher.Run(ctx)

	if err := tracing.Initialize(suite.Tracing, logger); err != nil {
		logger.Warn("Tracing unavailable", zap.Error(err))
	}

	if suite.Metrics.Enabled {
		go serveMetrics(suite.Metrics.Port, logger)
	}

	sessions := newSessionManager(suite, logger)
	defer sessions.Close()

	writer, err := results.NewWriter(suite.Results.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to prepare results directory", zap.Error(err))
	}

	var store *results.Store
	if suite.Results.DSN != "" {
		store, err = results.NewStore(suite.Results.DSN, logger)
		if err != nil {
			logger.Fatal("Failed to open results store", zap.Error(err))
		}
		defer store.Close()
	}

	reg := registry.New(logger)
	experimentID := reg.Register(suite.Name)

	rec, err := runSuite(ctx, suite, experimentID, sessions, reg, logger)
	if err != nil {
		_ = reg.Fail(experimentID, err)
		logger.Fatal("Suite failed", zap.Error(err))
	}
	_ = reg.Complete(experimentID)

	if path, err := writer.Write(rec); err != nil {
		logger.Error("Failed to write results file", zap.Error(err))
	} else {
		logger.Info("Suite complete", zap.String("results", path))
	}

	if store != nil {
		if err := store.SaveExperiment(context.Background(), rec); err != nil {
			logger.Error("Failed to save results to store", zap.Error(err))
		}
	}
}

// runSuite executes every configuration and derives the reliance reports
// against the baseline.
func runSuite(ctx context.Context, suite *config.Suite, experimentID string, sessions *session.Manager, reg *registry.Registry, logger *zap.Logger) (*results.ExperimentRecord, error) {
	if err := reg.Start(experimentID); err != nil {
		return nil, err
	}

	rec := &results.ExperimentRecord{
		ID:        experimentID,
		Name:      suite.Name,
		Baseline:  suite.Baseline,
		StartedAt: time.Now(),
	}

	aggregates := make(map[string]analysis.Aggregate, len(suite.Configurations))

	for _, cfg := range suite.Configurations {
		logger.Info("Running configuration",
			zap.String("name", cfg.Name),
			zap.String("noise_type", cfg.NoiseType),
			zap.Float64("noise_level", cfg.NoiseLevel),
			zap.String("strategy", cfg.Strategy),
			zap.Int("episodes", cfg.Episodes),
		)

		r, err := runner.New(cfg, sessions, logger)
		if err != nil {
			return nil, err
		}
		trajs, err := r.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("configuration %q: %w", cfg.Name, err)
		}

		agg := analysis.ComputeAggregate(trajs)
		aggregates[cfg.Name] = agg

		rec.Results = append(rec.Results, results.ConfigurationResult{
			Config:       cfg,
			Trajectories: trajs,
			Aggregate:    agg,
		})

		logger.Info("Configuration finished",
			zap.String("name", cfg.Name),
			zap.Float64("success_rate", agg.SuccessRate),
			zap.Float64("stepwise_accuracy", agg.StepwiseAccuracy.Mean),
			zap.Float64("tool_usage_rate", agg.ToolUsageRate.Mean),
		)
	}

	if suite.Baseline != "" {
		baseline := aggregates[suite.Baseline]
		for i := range rec.Results {
			cr := &rec.Results[i]
			if cr.Config.Name == suite.Baseline {
				continue
			}
			report := analysis.ComputeReliance(baseline, cr.Aggregate, 1-cr.Config.NoiseLevel)
			cr.Reliance = &report
			metrics.BlindRelianceIndex.WithLabelValues(cr.Config.Name).Set(report.Index)

			logger.Info("Reliance report",
				zap.String("name", cr.Config.Name),
				zap.Float64("index", report.Index),
				zap.String("archetype", report.Archetype),
				zap.Bool("degenerate", report.Degenerate),
				zap.Bool("inverted_denominator", report.InvertedDenominator),
			)
		}
	}

	rec.FinishedAt = time.Now()
	return rec, nil
}

// newSessionManager prefers the configured Redis but degrades to memory-only
// rather than refusing to run.
func newSessionManager(suite *config.Suite, logger *zap.Logger) *session.Manager {
	mgr, err := session.NewManager(suite.Session.RedisAddr, suite.Session.MaxTurns, logger)
	if err == nil {
		return mgr
	}
	logger.Warn("Redis unavailable, using in-memory sessions",
		zap.String("addr", suite.Session.RedisAddr),
		zap.Error(err),
	)
	mgr, _ = session.NewManager("", suite.Session.MaxTurns, logger)
	return mgr
}

func serveMetrics(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("Metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Metrics endpoint stopped", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

func newBootstrapLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return l
}

func defaultedPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "mazesim.yaml"
}
