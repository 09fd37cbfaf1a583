package scan

import (
	"context"
	"time"

	"github.com/qsarlab/adscan/internal/domain/appdomain"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/prometheus"
)

// Calculator exposes the four domain operations for ad-hoc inputs supplied
// directly in a request, with no dataset registration involved.
type Calculator struct {
	defaults appdomain.ScanConfig
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
}

// NewCalculator constructs a calculator with the given default schedule.
// Metrics may be nil.
func NewCalculator(defaults appdomain.ScanConfig, metrics *prometheus.AppMetrics, logger logging.Logger) *Calculator {
	return &Calculator{defaults: defaults, metrics: metrics, logger: logger.Named("calculator")}
}

// DistancesInput carries the matrices for a distance computation.
type DistancesInput struct {
	Reference [][]float64 `json:"reference"`
	Query     [][]float64 `json:"query"`
}

// DistancesOutput carries sorted per-instance distance rows.
type DistancesOutput struct {
	Rows [][]float64 `json:"rows"`
}

// ComputeDistances normalizes both matrices against the reference bounds and
// returns each query instance's sorted distances to the reference set.
func (c *Calculator) ComputeDistances(_ context.Context, in DistancesInput) (*DistancesOutput, error) {
	dm, err := appdomain.ComputeDistances(in.Reference, in.Query)
	if err != nil {
		return nil, err
	}
	return &DistancesOutput{Rows: dm.Rows}, nil
}

// ThresholdsInput carries the inputs for per-instance threshold derivation.
type ThresholdsInput struct {
	Training   [][]float64 `json:"training"`
	Agreement  []float64   `json:"agreement"`
	Dispersion []float64   `json:"dispersion"`
	K          int         `json:"k"`
}

// ThresholdsOutput carries per-training-instance coverage radii.
type ThresholdsOutput struct {
	Thresholds []float64 `json:"thresholds"`
}

// ComputeThresholds derives the per-instance coverage radii for one neighbor
// count.
func (c *Calculator) ComputeThresholds(_ context.Context, in ThresholdsInput) (*ThresholdsOutput, error) {
	dm, err := appdomain.ComputeDistances(in.Training, in.Training)
	if err != nil {
		return nil, err
	}
	thresholds, err := appdomain.ComputeThresholds(dm, in.Agreement, in.Dispersion, in.K)
	if err != nil {
		return nil, err
	}
	return &ThresholdsOutput{Thresholds: thresholds}, nil
}

// CoverageInput carries the inputs for one coverage test.
type CoverageInput struct {
	Training    [][]float64 `json:"training"`
	Query       [][]float64 `json:"query"`
	Correctness []float64   `json:"correctness"`
	Thresholds  []float64   `json:"thresholds"`
}

// CoverageOutput mirrors appdomain.CoverageResult in transport form.
type CoverageOutput struct {
	NeighborCounts []int    `json:"neighbor_counts"`
	OutlierCount   int      `json:"outlier_count"`
	Covered        int      `json:"covered"`
	Accuracy       *float64 `json:"accuracy"`
}

// TestCoverage tests which query instances fall inside the domain defined by
// the given per-instance radii.
func (c *Calculator) TestCoverage(_ context.Context, in CoverageInput) (*CoverageOutput, error) {
	result, err := appdomain.TestCoverage(in.Correctness, in.Query, in.Training, in.Thresholds)
	if err != nil {
		return nil, err
	}
	out := &CoverageOutput{
		NeighborCounts: result.NeighborCounts,
		OutlierCount:   result.OutlierCount,
		Covered:        result.Covered,
	}
	if result.AccuracyDefined() {
		acc := result.Accuracy
		out.Accuracy = &acc
	}
	return out, nil
}

// RunInput carries the inputs for a full ad-hoc scan. A nil Config means the
// platform default schedule.
type RunInput struct {
	Training    [][]float64           `json:"training"`
	Query       [][]float64           `json:"query"`
	Correctness []float64             `json:"correctness"`
	Agreement   []float64             `json:"agreement"`
	Dispersion  []float64             `json:"dispersion"`
	Config      *appdomain.ScanConfig `json:"config"`
}

// Run executes a full domain scan over ad-hoc inputs.
func (c *Calculator) Run(ctx context.Context, in RunInput) ([]ProfileStep, error) {
	cfg := c.defaults
	if in.Config != nil {
		cfg = *in.Config
	}

	start := time.Now()
	profile, err := appdomain.Scan(ctx, cfg, in.Training, in.Query, in.Correctness, in.Agreement, in.Dispersion)
	if c.metrics != nil {
		prometheus.RecordScan(c.metrics, "adhoc", len(in.Training), time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return ToProfile(profile), nil
}
