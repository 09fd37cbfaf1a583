package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qsarlab/adscan/internal/domain/appdomain"
	"github.com/qsarlab/adscan/internal/domain/scan"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/pkg/errors"
)

const scanRunColumns = `id, dataset_id, config, mode, status, error_code,
	error_detail, profile, submitted_at, started_at, finished_at, version`

// ScanRunRepository is the PostgreSQL implementation of scan.Repository.
// Schedule and profile are stored as JSONB; undefined accuracy is stored as
// JSON null so the column round-trips without inventing a sentinel value.
type ScanRunRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewScanRunRepository constructs a ready-to-use ScanRunRepository.
func NewScanRunRepository(pool *pgxpool.Pool, logger logging.Logger) *ScanRunRepository {
	return &ScanRunRepository{pool: pool, logger: logger.Named("scan_repo")}
}

// profileStep is the persisted form of appdomain.ScanStep. Accuracy is a
// pointer so the NaN state becomes JSON null.
type profileStep struct {
	K            int      `json:"k"`
	Phase        string   `json:"phase"`
	OutlierCount int      `json:"outlier_count"`
	Covered      int      `json:"covered"`
	Accuracy     *float64 `json:"accuracy"`
}

func encodeProfile(steps []appdomain.ScanStep) ([]byte, error) {
	if steps == nil {
		return []byte("null"), nil
	}
	out := make([]profileStep, len(steps))
	for i, s := range steps {
		out[i] = profileStep{
			K:            s.K,
			Phase:        s.Phase.String(),
			OutlierCount: s.OutlierCount,
			Covered:      s.Covered,
		}
		if s.AccuracyDefined() {
			acc := s.Accuracy
			out[i].Accuracy = &acc
		}
	}
	return json.Marshal(out)
}

func decodeProfile(raw []byte) ([]appdomain.ScanStep, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var persisted []profileStep
	if err := json.Unmarshal(raw, &persisted); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode scan profile")
	}
	steps := make([]appdomain.ScanStep, len(persisted))
	for i, p := range persisted {
		steps[i] = appdomain.ScanStep{
			K:            p.K,
			Phase:        parsePhase(p.Phase),
			OutlierCount: p.OutlierCount,
			Covered:      p.Covered,
			Accuracy:     math.NaN(),
		}
		if p.Accuracy != nil {
			steps[i].Accuracy = *p.Accuracy
		}
	}
	return steps, nil
}

func parsePhase(s string) appdomain.Phase {
	for _, p := range []appdomain.Phase{appdomain.PhaseCompressed, appdomain.PhaseHalf, appdomain.PhaseFull} {
		if p.String() == s {
			return p
		}
	}
	return appdomain.PhaseCompressed
}

// Save inserts a new scan run.
func (r *ScanRunRepository) Save(ctx context.Context, run *scan.Run) error {
	r.logger.Debug("saving scan run", logging.String("id", run.ID.String()))

	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode scan config")
	}
	profileJSON, err := encodeProfile(run.Profile)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode scan profile")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO scan_runs (
			id, dataset_id, config, mode, status, error_code,
			error_detail, profile, submitted_at, started_at, finished_at, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		run.ID, run.DatasetID, cfgJSON, string(run.Mode), string(run.Status), run.ErrorCode,
		run.ErrorDetail, profileJSON, run.SubmittedAt, run.StartedAt, run.FinishedAt, run.Version,
	)
	if err != nil {
		r.logger.Error("scan run insert failed", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert scan run")
	}
	return nil
}

// FindByID loads a scan run by its identifier.
func (r *ScanRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*scan.Run, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM scan_runs WHERE id = $1`, scanRunColumns), id)
	return r.scanRun(row)
}

// List returns a page of scan runs, newest first.
func (r *ScanRunRepository) List(ctx context.Context, filter scan.ListFilter) ([]*scan.Run, int64, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.DatasetID != uuid.Nil {
		args = append(args, filter.DatasetID)
		conditions = append(conditions, fmt.Sprintf("dataset_id = $%d", len(args)))
	}
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
		fmt.Sprintf(`SELECT COUNT(*) FROM scan_runs %s`, where), args...,
	).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan run count failed")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM scan_runs %s
		ORDER BY submitted_at DESC
		LIMIT $%d OFFSET $%d`, scanRunColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan run list query failed")
	}
	defer rows.Close()

	var out []*scan.Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan run row iteration failed")
	}
	return out, total, nil
}

// Update persists run state changes with optimistic locking. Workers and the
// API may race on the same run; the version column decides.
func (r *ScanRunRepository) Update(ctx context.Context, run *scan.Run) error {
	profileJSON, err := encodeProfile(run.Profile)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode scan profile")
	}
	newVersion := run.Version + 1

	tag, err := r.pool.Exec(ctx, `
		UPDATE scan_runs SET
			status=$1, error_code=$2, error_detail=$3, profile=$4,
			started_at=$5, finished_at=$6, version=$7
		WHERE id=$8 AND version=$9`,
		string(run.Status), run.ErrorCode, run.ErrorDetail, profileJSON,
		run.StartedAt, run.FinishedAt, newVersion,
		run.ID, run.Version,
	)
	if err != nil {
		r.logger.Error("scan run update failed", logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update scan run")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeConflict,
			"scan run %s version mismatch (expected %d)", run.ID, run.Version)
	}
	run.Version = newVersion
	return nil
}

func (r *ScanRunRepository) scanRun(row pgx.Row) (*scan.Run, error) {
	var (
		run                  scan.Run
		mode, status         string
		cfgJSON, profileJSON []byte
	)

	err := row.Scan(
		&run.ID, &run.DatasetID, &cfgJSON, &mode, &status, &run.ErrorCode,
		&run.ErrorDetail, &profileJSON, &run.SubmittedAt, &run.StartedAt, &run.FinishedAt, &run.Version,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New(errors.ErrCodeScanJobNotFound, "scan run not found")
		}
		r.logger.Error("scan run scan failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan scan-run row")
	}

	if err := json.Unmarshal(cfgJSON, &run.Config); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode scan config")
	}
	if run.Profile, err = decodeProfile(profileJSON); err != nil {
		return nil, err
	}
	run.Mode = scan.Mode(mode)
	run.Status = scan.Status(status)
	return &run, nil
}
