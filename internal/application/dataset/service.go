package dataset

import (
	"context"

	"github.com/google/uuid"

	domaindataset "github.com/qsarlab/adscan/internal/domain/dataset"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/pkg/errors"
)

// CreateInput carries one dataset upload. All five CSV payloads arrive
// together; partial datasets are never scannable so there is no reason to
// accept them piecemeal.
type CreateInput struct {
	Name           string
	Description    string
	TrainingCSV    []byte
	QueryCSV       []byte
	CorrectnessCSV []byte
	AgreementCSV   []byte
	DispersionCSV  []byte
}

// Service implements the dataset use cases.
type Service struct {
	repo   domaindataset.Repository
	store  domaindataset.MatrixStore
	logger logging.Logger
}

// NewService constructs the dataset service.
func NewService(repo domaindataset.Repository, store domaindataset.MatrixStore, logger logging.Logger) *Service {
	return &Service{repo: repo, store: store, logger: logger.Named("dataset_service")}
}

// Create ingests a dataset: parses and cross-validates the five payloads,
// stores them, and registers the metadata. A dataset that fails validation
// is persisted as failed so the caller can inspect the reason later.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domaindataset.Dataset, error) {
	d, err := domaindataset.New(in.Name, in.Description)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}

	matrices, err := parseAndValidate(in)
	if err != nil {
		s.failIngestion(ctx, d, err)
		return nil, err
	}

	payloads := map[domaindataset.MatrixKind][]byte{
		domaindataset.KindTraining:    in.TrainingCSV,
		domaindataset.KindQuery:       in.QueryCSV,
		domaindataset.KindCorrectness: in.CorrectnessCSV,
		domaindataset.KindAgreement:   in.AgreementCSV,
		domaindataset.KindDispersion:  in.DispersionCSV,
	}
	for kind, payload := range payloads {
		if err := s.store.Put(ctx, d.ObjectKey(kind), payload); err != nil {
			s.failIngestion(ctx, d, err)
			return nil, err
		}
	}

	if err := d.MarkReady(len(matrices.Training[0]), len(matrices.Training), len(matrices.Query)); err != nil {
		s.failIngestion(ctx, d, err)
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("dataset ingested",
		logging.String("id", d.ID.String()),
		logging.String("name", d.Name),
		logging.Int("features", d.FeatureCount),
		logging.Int("training", d.TrainingCount),
		logging.Int("query", d.QueryCount),
	)
	return d, nil
}

// parseAndValidate decodes all payloads and checks the cross-artifact shape
// rules: both matrices share a feature count, correctness annotates query
// instances, and agreement and dispersion annotate training instances.
func parseAndValidate(in CreateInput) (*domaindataset.Matrices, error) {
	training, err := ParseMatrix(in.TrainingCSV)
	if err != nil {
		return nil, err
	}
	query, err := ParseMatrix(in.QueryCSV)
	if err != nil {
		return nil, err
	}
	correctness, err := ParseSignal(in.CorrectnessCSV)
	if err != nil {
		return nil, err
	}
	agreement, err := ParseSignal(in.AgreementCSV)
	if err != nil {
		return nil, err
	}
	dispersion, err := ParseSignal(in.DispersionCSV)
	if err != nil {
		return nil, err
	}

	if len(training[0]) != len(query[0]) {
		return nil, shapeError("training has %d features but query has %d",
			len(training[0]), len(query[0]))
	}
	if len(correctness) != len(query) {
		return nil, shapeError("correctness has %d entries but query has %d instances",
			len(correctness), len(query))
	}
	if len(agreement) != len(training) {
		return nil, shapeError("agreement has %d entries but training has %d instances",
			len(agreement), len(training))
	}
	if len(dispersion) != len(training) {
		return nil, shapeError("dispersion has %d entries but training has %d instances",
			len(dispersion), len(training))
	}

	return &domaindataset.Matrices{
		Training:    training,
		Query:       query,
		Correctness: correctness,
		Agreement:   agreement,
		Dispersion:  dispersion,
	}, nil
}

func (s *Service) failIngestion(ctx context.Context, d *domaindataset.Dataset, cause error) {
	d.MarkFailed(cause.Error())
	if err := s.repo.Update(ctx, d); err != nil {
		s.logger.Error("failed to record dataset ingestion failure",
			logging.String("id", d.ID.String()), logging.Err(err))
	}
}

// Get returns dataset metadata by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domaindataset.Dataset, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByName returns dataset metadata by its unique name.
func (s *Service) GetByName(ctx context.Context, name string) (*domaindataset.Dataset, error) {
	return s.repo.FindByName(ctx, name)
}

// List returns a page of datasets.
func (s *Service) List(ctx context.Context, filter domaindataset.ListFilter) ([]*domaindataset.Dataset, int64, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a dataset and all of its stored matrices. Scan runs on the
// dataset cascade in the database.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePrefix(ctx, "datasets/"+d.ID.String()+"/"); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// LoadMatrices loads a ready dataset's artifacts back into memory for the
// scan engine.
func (s *Service) LoadMatrices(ctx context.Context, id uuid.UUID) (*domaindataset.Matrices, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Scannable() {
		return nil, errors.Newf(errors.ErrCodeDatasetInvalid,
			"dataset %s is %s, not ready", d.ID, d.Status)
	}

	load := func(kind domaindataset.MatrixKind) ([]byte, error) {
		return s.store.Get(ctx, d.ObjectKey(kind))
	}

	trainingCSV, err := load(domaindataset.KindTraining)
	if err != nil {
		return nil, err
	}
	queryCSV, err := load(domaindataset.KindQuery)
	if err != nil {
		return nil, err
	}
	correctnessCSV, err := load(domaindataset.KindCorrectness)
	if err != nil {
		return nil, err
	}
	agreementCSV, err := load(domaindataset.KindAgreement)
	if err != nil {
		return nil, err
	}
	dispersionCSV, err := load(domaindataset.KindDispersion)
	if err != nil {
		return nil, err
	}

	return parseAndValidate(CreateInput{
		TrainingCSV:    trainingCSV,
		QueryCSV:       queryCSV,
		CorrectnessCSV: correctnessCSV,
		AgreementCSV:   agreementCSV,
		DispersionCSV:  dispersionCSV,
	})
}
