package scan

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/qsarlab/adscan/internal/config"
	"github.com/qsarlab/adscan/internal/domain/appdomain"
	domaindataset "github.com/qsarlab/adscan/internal/domain/dataset"
	domainscan "github.com/qsarlab/adscan/internal/domain/scan"
	"github.com/qsarlab/adscan/internal/infrastructure/database/redis"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/prometheus"
	"github.com/qsarlab/adscan/pkg/errors"
)

// DatasetLoader is the slice of the dataset service the scan service needs.
type DatasetLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*domaindataset.Dataset, error)
	LoadMatrices(ctx context.Context, id uuid.UUID) (*domaindataset.Matrices, error)
}

// SubmitInput describes one scan submission. A nil Config means the platform
// default schedule.
type SubmitInput struct {
	DatasetID uuid.UUID
	Config    *appdomain.ScanConfig
}

// Service implements the scan-run use cases.
type Service struct {
	runs     domainscan.Repository
	datasets DatasetLoader
	queue    domainscan.JobQueue
	cache    redis.Cache
	metrics  *prometheus.AppMetrics
	cfg      config.ScanConfig
	logger   logging.Logger
}

// NewService constructs the scan service. Cache and metrics may be nil; the
// service then skips profile caching and metric recording.
func NewService(
	runs domainscan.Repository,
	datasets DatasetLoader,
	queue domainscan.JobQueue,
	cache redis.Cache,
	metrics *prometheus.AppMetrics,
	cfg config.ScanConfig,
	logger logging.Logger,
) *Service {
	return &Service{
		runs:     runs,
		datasets: datasets,
		queue:    queue,
		cache:    cache,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.Named("scan_service"),
	}
}

// DefaultConfig returns the platform default schedule.
func (s *Service) DefaultConfig() appdomain.ScanConfig {
	return appdomain.ScanConfig{
		Steps:           s.cfg.DefaultSteps,
		CompressEnd:     s.cfg.DefaultCompressEnd,
		DecompressStart: s.cfg.DefaultDecompressStart,
	}
}

// Submit registers a scan run for a ready dataset. Small datasets execute
// inline and return finished; larger ones are queued for the worker fleet
// and return pending.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*domainscan.Run, error) {
	d, err := s.datasets.Get(ctx, in.DatasetID)
	if err != nil {
		return nil, err
	}
	if !d.Scannable() {
		return nil, errors.Newf(errors.ErrCodeDatasetInvalid,
			"dataset %s is %s, not ready", d.ID, d.Status)
	}

	cfg := s.DefaultConfig()
	if in.Config != nil {
		cfg = *in.Config
	}

	mode := domainscan.ModeAsync
	if s.cfg.SyncInstanceLimit > 0 && d.TrainingCount+d.QueryCount <= s.cfg.SyncInstanceLimit {
		mode = domainscan.ModeSync
	}

	run, err := domainscan.NewRun(d.ID, cfg, mode)
	if err != nil {
		return nil, err
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	if mode == domainscan.ModeSync {
		if err := s.executeRun(ctx, run); err != nil {
			return nil, err
		}
		return run, nil
	}

	if err := s.queue.Enqueue(ctx, run.ID); err != nil {
		run.Fail(err)
		if updateErr := s.runs.Update(ctx, run); updateErr != nil {
			s.logger.Error("failed to record enqueue failure",
				logging.String("run_id", run.ID.String()), logging.Err(updateErr))
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.JobsSubmittedTotal.WithLabelValues().Inc()
	}
	return run, nil
}

// ProcessJob executes one queued run. Called by the worker's consumer; a run
// that already finished (redelivered message) is a no-op.
func (s *Service) ProcessJob(ctx context.Context, runID uuid.UUID) error {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return err
	}
	if run.Finished() {
		s.logger.Debug("skipping finished run", logging.String("run_id", runID.String()))
		return nil
	}
	return s.executeRun(ctx, run)
}

// executeRun drives a pending run to a terminal state and persists it. The
// returned error covers persistence problems only: a failed computation is a
// successfully recorded outcome.
func (s *Service) executeRun(ctx context.Context, run *domainscan.Run) error {
	if err := run.Start(); err != nil {
		return err
	}
	if err := s.runs.Update(ctx, run); err != nil {
		return err
	}

	profile, trainingSize, scanErr := s.compute(ctx, run)
	if scanErr != nil {
		run.Fail(scanErr)
		s.logger.Warn("scan run failed",
			logging.String("run_id", run.ID.String()),
			logging.String("code", run.ErrorCode),
			logging.Err(scanErr),
		)
	} else {
		if err := run.Complete(profile); err != nil {
			return err
		}
	}

	if s.metrics != nil {
		prometheus.RecordScan(s.metrics, string(run.Mode), trainingSize, run.Duration(), scanErr)
		if scanErr == nil && len(profile) > 0 {
			last := profile[len(profile)-1]
			denom := last.Covered + last.OutlierCount
			if denom > 0 {
				s.metrics.ScanOutlierFraction.WithLabelValues(string(run.Mode)).
					Observe(float64(last.OutlierCount) / float64(denom))
			}
		}
		if scanErr != nil && errors.IsDegenerate(scanErr) {
			s.metrics.ScanDegenerateStepsTotal.WithLabelValues(errors.GetCode(scanErr).String()).Inc()
		}
	}

	return s.runs.Update(ctx, run)
}

func (s *Service) compute(ctx context.Context, run *domainscan.Run) ([]appdomain.ScanStep, int, error) {
	m, err := s.datasets.LoadMatrices(ctx, run.DatasetID)
	if err != nil {
		return nil, 0, err
	}

	scanCtx := ctx
	if s.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.cfg.StepTimeout*time.Duration(run.Config.Steps))
		defer cancel()
	}

	profile, err := appdomain.Scan(scanCtx, run.Config, m.Training, m.Query, m.Correctness, m.Agreement, m.Dispersion)
	return profile, len(m.Training), err
}

// Get returns a scan run by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domainscan.Run, error) {
	return s.runs.FindByID(ctx, id)
}

// List returns a page of scan runs.
func (s *Service) List(ctx context.Context, filter domainscan.ListFilter) ([]*domainscan.Run, int64, error) {
	return s.runs.List(ctx, filter)
}

// GetProfile returns the profile of a completed run. Profiles are immutable
// once the run finishes, so completed profiles are cached without
// invalidation concerns.
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) ([]ProfileStep, error) {
	load := func(ctx context.Context) (interface{}, error) {
		run, err := s.runs.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		switch run.Status {
		case domainscan.StatusCompleted:
			return ToProfile(run.Profile), nil
		case domainscan.StatusFailed:
			return nil, errors.Newf(errors.ErrCodeScanJobFailed,
				"scan run %s failed: %s", id, run.ErrorDetail)
		default:
			return nil, errors.Newf(errors.ErrCodeScanJobNotFinished,
				"scan run %s is %s", id, run.Status)
		}
	}

	if s.cache == nil {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return v.([]ProfileStep), nil
	}

	loaded := false
	var profile []ProfileStep
	err := s.cache.GetOrSet(ctx, "runs:"+id.String()+":profile", &profile, 0,
		func(ctx context.Context) (interface{}, error) {
			loaded = true
			return load(ctx)
		})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		prometheus.RecordCacheAccess(s.metrics, "scan-profile", !loaded)
	}
	return profile, nil
}
