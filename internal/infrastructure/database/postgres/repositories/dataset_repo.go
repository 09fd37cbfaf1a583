// Package repositories contains the PostgreSQL implementations of the domain
// persistence ports.
package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qsarlab/adscan/internal/domain/dataset"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/pkg/errors"
)

const datasetColumns = `id, name, description, feature_count, training_count,
	query_count, status, failure_reason, created_at, updated_at, version`

// DatasetRepository is the PostgreSQL implementation of dataset.Repository.
type DatasetRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewDatasetRepository constructs a ready-to-use DatasetRepository.
func NewDatasetRepository(pool *pgxpool.Pool, logger logging.Logger) *DatasetRepository {
	return &DatasetRepository{pool: pool, logger: logger.Named("dataset_repo")}
}

// Save inserts a new dataset row. Names are unique; a duplicate insert maps
// to ErrCodeDatasetAlreadyExists.
func (r *DatasetRepository) Save(ctx context.Context, d *dataset.Dataset) error {
	r.logger.Debug("saving dataset", logging.String("id", d.ID.String()))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO datasets (
			id, name, description, feature_count, training_count,
			query_count, status, failure_reason, created_at, updated_at, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.Name, d.Description, d.FeatureCount, d.TrainingCount,
		d.QueryCount, string(d.Status), d.FailureReason, d.CreatedAt, d.UpdatedAt, d.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Newf(errors.ErrCodeDatasetAlreadyExists,
				"dataset %q already exists", d.Name)
		}
		r.logger.Error("dataset insert failed", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert dataset")
	}
	return nil
}

// FindByID loads a dataset by its identifier.
func (r *DatasetRepository) FindByID(ctx context.Context, id uuid.UUID) (*dataset.Dataset, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM datasets WHERE id = $1`, datasetColumns), id)
	return r.scanDataset(row)
}

// FindByName loads a dataset by its unique name.
func (r *DatasetRepository) FindByName(ctx context.Context, name string) (*dataset.Dataset, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM datasets WHERE name = $1`, datasetColumns), name)
	return r.scanDataset(row)
}

// List returns a page of datasets plus the unfiltered total.
func (r *DatasetRepository) List(ctx context.Context, filter dataset.ListFilter) ([]*dataset.Dataset, int64, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM datasets %s`, where), args...,
	).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "dataset count failed")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM datasets %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, datasetColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "dataset list query failed")
	}
	defer rows.Close()

	var out []*dataset.Dataset
	for rows.Next() {
		d, err := r.scanDataset(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "dataset row iteration failed")
	}
	return out, total, nil
}

// Update persists dataset changes with optimistic locking on the version
// column.
func (r *DatasetRepository) Update(ctx context.Context, d *dataset.Dataset) error {
	newVersion := d.Version + 1

	tag, err := r.pool.Exec(ctx, `
		UPDATE datasets SET
			description=$1, feature_count=$2, training_count=$3, query_count=$4,
			status=$5, failure_reason=$6, updated_at=$7, version=$8
		WHERE id=$9 AND version=$10`,
		d.Description, d.FeatureCount, d.TrainingCount, d.QueryCount,
		string(d.Status), d.FailureReason, d.UpdatedAt, newVersion,
		d.ID, d.Version,
	)
	if err != nil {
		r.logger.Error("dataset update failed", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update dataset")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeConflict,
			"dataset %s version mismatch (expected %d)", d.ID, d.Version)
	}
	d.Version = newVersion
	return nil
}

// Delete removes a dataset row.
func (r *DatasetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("dataset delete failed", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete dataset")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeDatasetNotFound, "dataset %s not found", id)
	}
	return nil
}

func (r *DatasetRepository) scanDataset(row pgx.Row) (*dataset.Dataset, error) {
	var d dataset.Dataset
	var status string

	err := row.Scan(
		&d.ID, &d.Name, &d.Description, &d.FeatureCount, &d.TrainingCount,
		&d.QueryCount, &status, &d.FailureReason, &d.CreatedAt, &d.UpdatedAt, &d.Version,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New(errors.ErrCodeDatasetNotFound, "dataset not found")
		}
		r.logger.Error("dataset scan failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan dataset row")
	}
	d.Status = dataset.Status(status)
	return &d, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "23505"
}

func normalizePage(page, pageSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}
	return page, pageSize
}
