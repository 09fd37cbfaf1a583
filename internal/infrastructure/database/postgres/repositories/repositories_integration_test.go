//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/qsarlab/adscan/internal/config"
	"github.com/qsarlab/adscan/internal/domain/appdomain"
	"github.com/qsarlab/adscan/internal/domain/dataset"
	"github.com/qsarlab/adscan/internal/domain/scan"
	"github.com/qsarlab/adscan/internal/infrastructure/database/postgres"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/pkg/errors"
)

// startPostgres brings up a disposable PostgreSQL container, applies the
// migrations, and returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "adscan",
				"POSTGRES_PASSWORD": "adscan",
				"POSTGRES_DB":       "adscan",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:          host,
		Port:          port.Int(),
		User:          "adscan",
		Password:      "adscan",
		DBName:        "adscan",
		SSLMode:       "disable",
		MigrationPath: "../../../../../migrations",
	}

	log := logging.NewNopLogger()
	require.NoError(t, postgres.RunMigrations(cfg, log))

	conn, err := postgres.NewConnection(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	return conn.Pool()
}

func TestDatasetRepository_CRUD(t *testing.T) {
	pool := startPostgres(t)
	repo := NewDatasetRepository(pool, logging.NewNopLogger())
	ctx := context.Background()

	d, err := dataset.New("esol-gbm", "gradient boosting on ESOL descriptors")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, d))

	// Unique name enforced.
	dup, err := dataset.New("esol-gbm", "")
	require.NoError(t, err)
	err = repo.Save(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatasetAlreadyExists))

	loaded, err := repo.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Name, loaded.Name)
	assert.Equal(t, dataset.StatusPending, loaded.Status)

	require.NoError(t, loaded.MarkReady(8, 200, 30))
	require.NoError(t, repo.Update(ctx, loaded))
	assert.Equal(t, 2, loaded.Version)

	// Stale update loses.
	stale := *d
	err = repo.Update(ctx, &stale)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))

	byName, err := repo.FindByName(ctx, "esol-gbm")
	require.NoError(t, err)
	assert.Equal(t, dataset.StatusReady, byName.Status)

	ready, total, err := repo.List(ctx, dataset.ListFilter{Status: dataset.StatusReady})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, ready, 1)

	require.NoError(t, repo.Delete(ctx, d.ID))
	_, err = repo.FindByID(ctx, d.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatasetNotFound))
}

func TestScanRunRepository_Lifecycle(t *testing.T) {
	pool := startPostgres(t)
	logger := logging.NewNopLogger()
	datasets := NewDatasetRepository(pool, logger)
	runs := NewScanRunRepository(pool, logger)
	ctx := context.Background()

	d, err := dataset.New("run-lifecycle", "")
	require.NoError(t, err)
	require.NoError(t, datasets.Save(ctx, d))

	run, err := scan.NewRun(d.ID, appdomain.DefaultScanConfig(), scan.ModeAsync)
	require.NoError(t, err)
	require.NoError(t, runs.Save(ctx, run))

	require.NoError(t, run.Start())
	require.NoError(t, runs.Update(ctx, run))

	profile := []appdomain.ScanStep{
		{K: 1, Phase: appdomain.PhaseCompressed, Covered: 3, OutlierCount: 1, Accuracy: 1.0},
		{K: 2, Phase: appdomain.PhaseCompressed, Covered: 0, OutlierCount: 4, Accuracy: appdomain.UndefinedAccuracy()},
	}
	require.NoError(t, run.Complete(profile))
	require.NoError(t, runs.Update(ctx, run))

	loaded, err := runs.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusCompleted, loaded.Status)
	assert.Equal(t, run.Config, loaded.Config)
	require.Len(t, loaded.Profile, 2)
	assert.True(t, loaded.Profile[0].AccuracyDefined())
	assert.False(t, loaded.Profile[1].AccuracyDefined())

	listed, total, err := runs.List(ctx, scan.ListFilter{DatasetID: d.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, listed, 1)

	_, err = runs.FindByID(ctx, uuid.New())
	assert.True(t, errors.IsCode(err, errors.ErrCodeScanJobNotFound))
}
