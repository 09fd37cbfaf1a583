// Package dataset defines the dataset aggregate: a named pair of feature
// matrices (training and query) together with the per-instance prediction
// signals a domain scan consumes.  The matrices themselves live in object
// storage; the aggregate tracks identity, shape, and lifecycle status.
package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/qsarlab/adscan/pkg/errors"
)

// Status is the lifecycle state of a dataset.
type Status string

const (
	// StatusPending means the record exists but matrix upload has not finished.
	StatusPending Status = "pending"
	// StatusReady means all matrices and signals are stored and validated.
	StatusReady Status = "ready"
	// StatusFailed means ingestion was aborted; the record is kept for audit.
	StatusFailed Status = "failed"
)

// MatrixKind identifies one of the stored artifacts belonging to a dataset.
type MatrixKind string

const (
	KindTraining    MatrixKind = "training"
	KindQuery       MatrixKind = "query"
	KindCorrectness MatrixKind = "correctness"
	KindAgreement   MatrixKind = "agreement"
	KindDispersion  MatrixKind = "dispersion"
)

// Dataset is the aggregate root. Shape fields are recorded at ingestion time
// so list views and pre-flight checks never have to touch object storage.
type Dataset struct {
	ID            uuid.UUID
	Name          string
	Description   string
	FeatureCount  int
	TrainingCount int
	QueryCount    int
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int
}

// New creates a pending Dataset with a fresh identity.
func New(name, description string) (*Dataset, error) {
	if name == "" {
		return nil, errors.New(errors.ErrCodeDatasetInvalid, "dataset name must not be empty")
	}
	now := time.Now().UTC()
	return &Dataset{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}, nil
}

// MarkReady records the ingested shape and moves the dataset to StatusReady.
func (d *Dataset) MarkReady(featureCount, trainingCount, queryCount int) error {
	if featureCount < 1 || trainingCount < 1 || queryCount < 1 {
		return errors.Newf(errors.ErrCodeDatasetInvalid,
			"dataset shape must be positive, got features=%d training=%d query=%d",
			featureCount, trainingCount, queryCount)
	}
	d.FeatureCount = featureCount
	d.TrainingCount = trainingCount
	d.QueryCount = queryCount
	d.Status = StatusReady
	d.FailureReason = ""
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed aborts ingestion and keeps the reason for operators.
func (d *Dataset) MarkFailed(reason string) {
	d.Status = StatusFailed
	d.FailureReason = reason
	d.UpdatedAt = time.Now().UTC()
}

// Scannable reports whether the dataset can back a domain scan.
func (d *Dataset) Scannable() bool {
	return d.Status == StatusReady
}

// ObjectKey returns the object-storage key for one of the dataset's stored
// artifacts. All artifacts of a dataset share a common prefix so that deleting
// the dataset is a single prefix removal.
func (d *Dataset) ObjectKey(kind MatrixKind) string {
	return fmt.Sprintf("datasets/%s/%s.csv", d.ID, kind)
}

// Matrices is the in-memory form of a fully loaded dataset: the two feature
// matrices plus the three per-instance signals, exactly as the scan engine
// consumes them.
type Matrices struct {
	Training    [][]float64
	Query       [][]float64
	Correctness []float64
	Agreement   []float64
	Dispersion  []float64
}

// ListFilter carries optional filters for dataset listing.
type ListFilter struct {
	Status   Status
	Page     int
	PageSize int
}

// Repository is the persistence port for dataset metadata.
type Repository interface {
	Save(ctx context.Context, d *Dataset) error
	FindByID(ctx context.Context, id uuid.UUID) (*Dataset, error)
	FindByName(ctx context.Context, name string) (*Dataset, error)
	List(ctx context.Context, filter ListFilter) ([]*Dataset, int64, error)
	Update(ctx context.Context, d *Dataset) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MatrixStore is the object-storage port for matrix payloads. Payloads are
// opaque bytes at this level; the application layer owns the CSV codec.
type MatrixStore interface {
	Put(ctx context.Context, key string, payload []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}
