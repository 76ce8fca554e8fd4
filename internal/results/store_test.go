package results

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reliancelab/mazesim/internal/analysis"
	"github.com/reliancelab/mazesim/internal/runner"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Store{db: sqlx.NewDb(db, "sqlmock"), logger: zaptest.NewLogger(t)}, mock
}

func sampleRecord() *ExperimentRecord {
	now := time.Now()
	return &ExperimentRecord{
		ID:         "exp-1",
		Name:       "reliance-sweep",
		Baseline:   "baseline",
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
		Results: []ConfigurationResult{
			{
				Config: runner.Config{
					Name: "baseline", NoiseType: "none", Strategy: "trusting", Episodes: 10,
				},
				Trajectories: []runner.Trajectory{{Episode: 0, Success: true, Steps: 8}},
				Aggregate:    analysis.Aggregate{Episodes: 10, SuccessRate: 1.0},
			},
			{
				Config: runner.Config{
					Name: "noisy", NoiseType: "random", NoiseLevel: 0.5, Strategy: "trusting", Episodes: 10,
				},
				Aggregate: analysis.Aggregate{Episodes: 10, SuccessRate: 0.6},
				Reliance:  &analysis.RelianceReport{Index: 0.42, Archetype: analysis.ArchetypeLearner},
			},
		},
	}
}

func TestSaveExperimentCommitsAllRows(t *testing.T) {
	store, mock := mockStore(t)
	rec := sampleRecord()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO experiments").
		WithArgs(rec.ID, rec.Name, rec.Baseline, rec.StartedAt, rec.FinishedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO configuration_results").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO configuration_results").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveExperiment(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveExperimentRollsBackOnFailure(t *testing.T) {
	store, mock := mockStore(t)
	rec := sampleRecord()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO experiments").
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := store.SaveExperiment(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert experiment")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverSelection(t *testing.T) {
	assert.Equal(t, "postgres", driverFor("postgres://user:pw@localhost/results"))
	assert.Equal(t, "postgres", driverFor("host=localhost dbname=results"))
	assert.Equal(t, "sqlite3", driverFor("results.db"))
	assert.Equal(t, "sqlite3", driverFor(":memory:"))
}
