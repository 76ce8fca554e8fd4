package results

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store writes experiments to SQL. SQLite serves local runs; Postgres serves
// shared result databases. The driver is picked from the DSN.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	baseline    TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS configuration_results (
	experiment_id  TEXT NOT NULL REFERENCES experiments(id),
	name           TEXT NOT NULL,
	noise_type     TEXT NOT NULL,
	noise_level    REAL NOT NULL,
	strategy       TEXT NOT NULL,
	episodes       INTEGER NOT NULL,
	success_rate   REAL NOT NULL,
	reliance_index REAL,
	archetype      TEXT,
	aggregate      TEXT NOT NULL,
	trajectories   TEXT NOT NULL,
	PRIMARY KEY (experiment_id, name)
);
`

// NewStore opens the database and ensures the schema exists.
func NewStore(dsn string, logger *zap.Logger) (*Store, error) {
	driver := driverFor(dsn)

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Results store ready", zap.String("driver", driver))
	return &Store{db: db, logger: logger}, nil
}

// driverFor maps a DSN to a database driver; anything that does not look
// like Postgres is treated as a SQLite path.
func driverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// SaveExperiment writes the record and all configuration rows in one
// transaction.
func (s *Store) SaveExperiment(ctx context.Context, rec *ExperimentRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO experiments (id, name, baseline, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`),
		rec.ID, rec.Name, rec.Baseline, rec.StartedAt, rec.FinishedAt,
	); err != nil {
		return fmt.Errorf("failed to insert experiment: %w", err)
	}

	for _, cr := range rec.Results {
		agg, err := json.Marshal(cr.Aggregate)
		if err != nil {
			return fmt.Errorf("failed to marshal aggregate: %w", err)
		}
		trajs, err := json.Marshal(cr.Trajectories)
		if err != nil {
			return fmt.Errorf("failed to marshal trajectories: %w", err)
		}

		var index interface{}
		var archetype interface{}
		if cr.Reliance != nil {
			index = cr.Reliance.Index
			archetype = cr.Reliance.Archetype
		}

		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO configuration_results
				(experiment_id, name, noise_type, noise_level, strategy, episodes, success_rate, reliance_index, archetype, aggregate, trajectories)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			rec.ID, cr.Config.Name, cr.Config.NoiseType, cr.Config.NoiseLevel,
			cr.Config.Strategy, cr.Config.Episodes, cr.Aggregate.SuccessRate,
			index, archetype, string(agg), string(trajs),
		); err != nil {
			return fmt.Errorf("failed to insert configuration %q: %w", cr.Config.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit experiment: %w", err)
	}

	s.logger.Info("Experiment saved to store",
		zap.String("experiment_id", rec.ID),
		zap.Int("configurations", len(rec.Results)),
	)
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
