package scan

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsarlab/adscan/internal/config"
	"github.com/qsarlab/adscan/internal/domain/appdomain"
	domaindataset "github.com/qsarlab/adscan/internal/domain/dataset"
	domainscan "github.com/qsarlab/adscan/internal/domain/scan"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/pkg/errors"
)

type memRunRepo struct {
	byID map[uuid.UUID]*domainscan.Run
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{byID: make(map[uuid.UUID]*domainscan.Run)}
}

func (r *memRunRepo) Save(_ context.Context, run *domainscan.Run) error {
	copied := *run
	r.byID[run.ID] = &copied
	return nil
}

func (r *memRunRepo) FindByID(_ context.Context, id uuid.UUID) (*domainscan.Run, error) {
	run, ok := r.byID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeScanJobNotFound, "scan run not found")
	}
	copied := *run
	return &copied, nil
}

func (r *memRunRepo) List(_ context.Context, filter domainscan.ListFilter) ([]*domainscan.Run, int64, error) {
	var out []*domainscan.Run
	for _, run := range r.byID {
		if filter.DatasetID != uuid.Nil && run.DatasetID != filter.DatasetID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		copied := *run
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *memRunRepo) Update(_ context.Context, run *domainscan.Run) error {
	if _, ok := r.byID[run.ID]; !ok {
		return errors.New(errors.ErrCodeScanJobNotFound, "scan run not found")
	}
	run.Version++
	copied := *run
	r.byID[run.ID] = &copied
	return nil
}

type fakeLoader struct {
	dataset  *domaindataset.Dataset
	matrices *domaindataset.Matrices
}

func (l *fakeLoader) Get(_ context.Context, id uuid.UUID) (*domaindataset.Dataset, error) {
	if l.dataset == nil || l.dataset.ID != id {
		return nil, errors.New(errors.ErrCodeDatasetNotFound, "dataset not found")
	}
	return l.dataset, nil
}

func (l *fakeLoader) LoadMatrices(_ context.Context, id uuid.UUID) (*domaindataset.Matrices, error) {
	if l.dataset == nil || l.dataset.ID != id {
		return nil, errors.New(errors.ErrCodeDatasetNotFound, "dataset not found")
	}
	return l.matrices, nil
}

type fakeQueue struct {
	enqueued   []uuid.UUID
	enqueueErr error
}

func (q *fakeQueue) Enqueue(_ context.Context, runID uuid.UUID) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueued = append(q.enqueued, runID)
	return nil
}

// reliableMatrices builds a small dataset with fully reliable predictions so
// every step of a scan succeeds.
func reliableMatrices() *domaindataset.Matrices {
	training := make([][]float64, 10)
	agreement := make([]float64, 10)
	dispersion := make([]float64, 10)
	for i := range training {
		training[i] = []float64{float64(i), float64(i)}
		agreement[i] = 1
		dispersion[i] = 0
	}
	query := [][]float64{{0.5, 0.5}, {4, 4}, {8.5, 8.5}, {30, 30}}
	correctness := []float64{1, 1, 1, 1}
	return &domaindataset.Matrices{
		Training:    training,
		Query:       query,
		Correctness: correctness,
		Agreement:   agreement,
		Dispersion:  dispersion,
	}
}

func readyDataset(t *testing.T) *domaindataset.Dataset {
	t.Helper()
	d, err := domaindataset.New("svc-test", "")
	require.NoError(t, err)
	require.NoError(t, d.MarkReady(2, 10, 4))
	return d
}

func shortSchedule() *appdomain.ScanConfig {
	return &appdomain.ScanConfig{Steps: 5, CompressEnd: 2, DecompressStart: 3}
}

func newScanService(t *testing.T, syncLimit int) (*Service, *memRunRepo, *fakeLoader, *fakeQueue) {
	t.Helper()
	repo := newMemRunRepo()
	loader := &fakeLoader{dataset: readyDataset(t), matrices: reliableMatrices()}
	queue := &fakeQueue{}
	cfg := config.ScanConfig{
		DefaultSteps:           65,
		DefaultCompressEnd:     31,
		DefaultDecompressStart: 41,
		SyncInstanceLimit:      syncLimit,
	}
	svc := NewService(repo, loader, queue, nil, nil, cfg, logging.NewNopLogger())
	return svc, repo, loader, queue
}

func TestSubmit_SyncExecutesInline(t *testing.T) {
	svc, repo, loader, queue := newScanService(t, 1000)

	run, err := svc.Submit(context.Background(), SubmitInput{
		DatasetID: loader.dataset.ID,
		Config:    shortSchedule(),
	})
	require.NoError(t, err)

	assert.Equal(t, domainscan.ModeSync, run.Mode)
	assert.Equal(t, domainscan.StatusCompleted, run.Status)
	assert.Len(t, run.Profile, 5)
	assert.Empty(t, queue.enqueued)

	stored, err := repo.FindByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domainscan.StatusCompleted, stored.Status)
}

func TestSubmit_AsyncEnqueues(t *testing.T) {
	svc, repo, loader, queue := newScanService(t, 1)

	run, err := svc.Submit(context.Background(), SubmitInput{
		DatasetID: loader.dataset.ID,
		Config:    shortSchedule(),
	})
	require.NoError(t, err)

	assert.Equal(t, domainscan.ModeAsync, run.Mode)
	assert.Equal(t, domainscan.StatusPending, run.Status)
	assert.Equal(t, []uuid.UUID{run.ID}, queue.enqueued)

	stored, err := repo.FindByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domainscan.StatusPending, stored.Status)
}

func TestSubmit_DefaultScheduleApplied(t *testing.T) {
	svc, _, loader, _ := newScanService(t, 1)

	run, err := svc.Submit(context.Background(), SubmitInput{DatasetID: loader.dataset.ID})
	require.NoError(t, err)
	assert.Equal(t, appdomain.ScanConfig{Steps: 65, CompressEnd: 31, DecompressStart: 41}, run.Config)
}

func TestSubmit_RejectsUnreadyDataset(t *testing.T) {
	svc, _, loader, _ := newScanService(t, 1000)
	loader.dataset.Status = domaindataset.StatusPending

	_, err := svc.Submit(context.Background(), SubmitInput{DatasetID: loader.dataset.ID})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatasetInvalid))
}

func TestSubmit_EnqueueFailureRecordedOnRun(t *testing.T) {
	svc, repo, loader, queue := newScanService(t, 1)
	queue.enqueueErr = errors.New(errors.ErrCodeMessagingError, "broker unavailable")

	_, err := svc.Submit(context.Background(), SubmitInput{DatasetID: loader.dataset.ID})
	require.Error(t, err)

	runs, _, listErr := repo.List(context.Background(), domainscan.ListFilter{})
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, domainscan.StatusFailed, runs[0].Status)
}

func TestProcessJob_CompletesQueuedRun(t *testing.T) {
	svc, repo, loader, _ := newScanService(t, 1)

	run, err := svc.Submit(context.Background(), SubmitInput{
		DatasetID: loader.dataset.ID,
		Config:    shortSchedule(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.ProcessJob(context.Background(), run.ID))

	stored, err := repo.FindByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domainscan.StatusCompleted, stored.Status)
	assert.Len(t, stored.Profile, 5)

	// Redelivered message is a no-op.
	require.NoError(t, svc.ProcessJob(context.Background(), run.ID))
}

func TestProcessJob_DegenerateScanRecordedAsFailed(t *testing.T) {
	svc, repo, loader, _ := newScanService(t, 1)
	for i := range loader.matrices.Agreement {
		loader.matrices.Agreement[i] = 0
	}

	run, err := svc.Submit(context.Background(), SubmitInput{
		DatasetID: loader.dataset.ID,
		Config:    shortSchedule(),
	})
	require.NoError(t, err)

	// A degenerate computation is a recorded outcome, not a processing error.
	require.NoError(t, svc.ProcessJob(context.Background(), run.ID))

	stored, err := repo.FindByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domainscan.StatusFailed, stored.Status)
	assert.Equal(t, errors.ErrCodeDegenerateCase.String(), stored.ErrorCode)
}

func TestGetProfile(t *testing.T) {
	svc, _, loader, _ := newScanService(t, 1000)

	run, err := svc.Submit(context.Background(), SubmitInput{
		DatasetID: loader.dataset.ID,
		Config:    shortSchedule(),
	})
	require.NoError(t, err)

	profile, err := svc.GetProfile(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, profile, 5)
	for i, step := range profile {
		assert.Equal(t, i+1, step.K)
	}
}

func TestGetProfile_UnfinishedRun(t *testing.T) {
	svc, _, loader, _ := newScanService(t, 1)

	run, err := svc.Submit(context.Background(), SubmitInput{DatasetID: loader.dataset.ID})
	require.NoError(t, err)

	_, err = svc.GetProfile(context.Background(), run.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScanJobNotFinished))
}

func TestGetProfile_FailedRun(t *testing.T) {
	svc, repo, loader, _ := newScanService(t, 1)
	for i := range loader.matrices.Agreement {
		loader.matrices.Agreement[i] = 0
	}

	run, err := svc.Submit(context.Background(), SubmitInput{
		DatasetID: loader.dataset.ID,
		Config:    shortSchedule(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.ProcessJob(context.Background(), run.ID))

	_, err = svc.GetProfile(context.Background(), run.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScanJobFailed))

	stored, err := repo.FindByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domainscan.StatusFailed, stored.Status)
}
