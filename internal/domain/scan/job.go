// Package scan defines the scan-run aggregate: one execution of a domain scan
// over a dataset, tracked from submission through completion so callers can
// poll asynchronous runs and retrieve profiles later.
package scan

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/qsarlab/adscan/internal/domain/appdomain"
	"github.com/qsarlab/adscan/pkg/errors"
)

// Status is the lifecycle state of a scan run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Mode records how the run was executed.
type Mode string

const (
	// ModeSync means the run was computed inline in the API request.
	ModeSync Mode = "sync"
	// ModeAsync means the run went through the job queue to a worker.
	ModeAsync Mode = "async"
)

// Run is the aggregate root for one scan execution.
type Run struct {
	ID          uuid.UUID
	DatasetID   uuid.UUID
	Config      appdomain.ScanConfig
	Mode        Mode
	Status      Status
	ErrorCode   string
	ErrorDetail string
	Profile     []appdomain.ScanStep
	SubmittedAt time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Version     int
}

// NewRun creates a pending Run for the given dataset and schedule.
func NewRun(datasetID uuid.UUID, cfg appdomain.ScanConfig, mode Mode) (*Run, error) {
	if datasetID == uuid.Nil {
		return nil, errors.New(errors.ErrCodeDatasetInvalid, "scan run requires a dataset id")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Run{
		ID:          uuid.New(),
		DatasetID:   datasetID,
		Config:      cfg,
		Mode:        mode,
		Status:      StatusPending,
		SubmittedAt: time.Now().UTC(),
		Version:     1,
	}, nil
}

// Start transitions the run to StatusRunning. Only pending runs may start;
// this guards against a job being consumed twice from the queue.
func (r *Run) Start() error {
	if r.Status != StatusPending {
		return errors.Newf(errors.ErrCodeConflict,
			"scan run %s cannot start from status %q", r.ID, r.Status)
	}
	now := time.Now().UTC()
	r.Status = StatusRunning
	r.StartedAt = &now
	return nil
}

// Complete records a successful profile.
func (r *Run) Complete(profile []appdomain.ScanStep) error {
	if r.Status != StatusRunning {
		return errors.Newf(errors.ErrCodeConflict,
			"scan run %s cannot complete from status %q", r.ID, r.Status)
	}
	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.Profile = profile
	r.FinishedAt = &now
	return nil
}

// Fail records a terminal failure with its error code and human detail.
func (r *Run) Fail(err error) {
	now := time.Now().UTC()
	r.Status = StatusFailed
	r.ErrorCode = errors.GetCode(err).String()
	if err != nil {
		r.ErrorDetail = err.Error()
	}
	r.FinishedAt = &now
}

// Finished reports whether the run reached a terminal state.
func (r *Run) Finished() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Duration returns the wall-clock execution time, zero until finished.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// ListFilter carries optional filters for run listing.
type ListFilter struct {
	DatasetID uuid.UUID
	Status    Status
	Page      int
	PageSize  int
}

// Repository is the persistence port for scan runs.
type Repository interface {
	Save(ctx context.Context, r *Run) error
	FindByID(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, filter ListFilter) ([]*Run, int64, error)
	Update(ctx context.Context, r *Run) error
}

// JobQueue is the messaging port used to hand runs to workers.
type JobQueue interface {
	Enqueue(ctx context.Context, runID uuid.UUID) error
}
