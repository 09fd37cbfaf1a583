package appdomain

import (
	"context"
	"math"

	"github.com/qsarlab/adscan/pkg/errors"
)

// Phase identifies one stage of the three-phase radius-scaling schedule.  The
// schedule scans densely near training instances first (radii held at the
// compressed baseline of one third of the raw average distance), then expands
// in two jumps to half and finally the full raw average distance, covering
// the remaining descriptor space faster.
type Phase int

const (
	// PhaseCompressed holds radii at the baseline third of the raw average
	// distance.
	PhaseCompressed Phase = iota

	// PhaseHalf widens radii to half of the raw average distance.
	PhaseHalf

	// PhaseFull restores radii to the full raw average distance, undoing the
	// baseline compression entirely.
	PhaseFull
)

// Multiplier returns the factor applied to baseline thresholds in this phase.
func (p Phase) Multiplier() float64 {
	switch p {
	case PhaseHalf:
		return 1.5
	case PhaseFull:
		return 3.0
	default:
		return 1.0
	}
}

func (p Phase) String() string {
	switch p {
	case PhaseCompressed:
		return "compressed"
	case PhaseHalf:
		return "half"
	case PhaseFull:
		return "full"
	default:
		return "unknown"
	}
}

// Default scan schedule: 65 steps with the radius decompressing at steps 31
// and 41.
const (
	DefaultSteps           = 65
	DefaultCompressEnd     = 31
	DefaultDecompressStart = 41
)

// ScanConfig parameterizes a domain scan.  Step i (1-based) uses neighbor
// count k = i and the phase determined by the two boundaries.
type ScanConfig struct {
	Steps           int `json:"steps"`
	CompressEnd     int `json:"compress_end"`
	DecompressStart int `json:"decompress_start"`
}

// DefaultScanConfig returns the reference schedule (65/31/41).
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Steps:           DefaultSteps,
		CompressEnd:     DefaultCompressEnd,
		DecompressStart: DefaultDecompressStart,
	}
}

// Validate checks the relative order of the schedule boundaries:
// 1 <= compressEnd < decompressStart <= steps.
func (c ScanConfig) Validate() error {
	if c.Steps < 1 {
		return errors.Newf(errors.ErrCodeScanConfigInvalid, "steps must be >= 1, got %d", c.Steps)
	}
	if c.CompressEnd < 1 {
		return errors.Newf(errors.ErrCodeScanConfigInvalid,
			"compress_end must be >= 1, got %d", c.CompressEnd)
	}
	if c.CompressEnd >= c.DecompressStart {
		return errors.Newf(errors.ErrCodeScanConfigInvalid,
			"compress_end (%d) must be below decompress_start (%d)", c.CompressEnd, c.DecompressStart)
	}
	if c.DecompressStart > c.Steps {
		return errors.Newf(errors.ErrCodeScanConfigInvalid,
			"decompress_start (%d) must not exceed steps (%d)", c.DecompressStart, c.Steps)
	}
	return nil
}

// PhaseAt returns the phase active at 1-based step index i.
func (c ScanConfig) PhaseAt(i int) Phase {
	switch {
	case i < c.CompressEnd:
		return PhaseCompressed
	case i < c.DecompressStart:
		return PhaseHalf
	default:
		return PhaseFull
	}
}

// ScanStep is one entry of the reliability-vs-coverage profile.
type ScanStep struct {
	// K is the neighbor count used to derive thresholds at this step.
	K int `json:"k"`

	// Phase is the radius-scaling phase active at this step.
	Phase Phase `json:"phase"`

	// OutlierCount is the number of query instances outside every coverage
	// radius at this step.
	OutlierCount int `json:"outlier_count"`

	// Covered is the number of query instances inside at least one radius.
	Covered int `json:"covered"`

	// Accuracy is the in-domain accuracy at this step, NaN when no query
	// instance is covered.  JSON encoders must render the undefined state as
	// null, never as 0.
	Accuracy float64 `json:"-"`
}

// AccuracyDefined reports whether the step covered any query instance.
func (s ScanStep) AccuracyDefined() bool { return s.Covered > 0 }

// Scan runs the full multi-radius applicability-domain scan and returns the
// ordered profile, one entry per step.
//
// The training-vs-training distance matrix and the normalization bounds are
// computed once and shared, read-only, across all steps; per-step thresholds
// are recomputed fresh for every (k, phase) pair and discarded afterwards.
// Steps have no dependency on prior-step results.
//
// Validation failures abort before any computation with no partial profile.
// A degenerate step (no resolvable threshold, or no positive correction
// factor) aborts the whole scan with a diagnostic naming the offending k: the
// profile is meaningful only when complete and ordered.  Undefined accuracy
// at a step is not an error; it is recorded in place.
//
// The context is observed between steps, giving callers an early-exit
// contract for large training sets; scan cost grows linearly in steps and
// quadratically in instance counts.
func Scan(ctx context.Context, cfg ScanConfig, training, query [][]float64, correctness, agreement, dispersion []float64) ([]ScanStep, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cols, err := validateMatrix("training", training, -1)
	if err != nil {
		return nil, err
	}
	if _, err := validateMatrix("query", query, cols); err != nil {
		return nil, err
	}
	if err := validateSignal("correctness", correctness, len(query)); err != nil {
		return nil, err
	}
	if err := validateSignal("agreement", agreement, len(training)); err != nil {
		return nil, err
	}
	if err := validateSignal("dispersion", dispersion, len(training)); err != nil {
		return nil, err
	}

	trainingDistances, err := ComputeDistances(training, training)
	if err != nil {
		return nil, err
	}
	normTraining := trainingDistances.Bounds.Normalize(training)
	normQuery := trainingDistances.Bounds.Normalize(query)

	profile := make([]ScanStep, 0, cfg.Steps)
	for i := 1; i <= cfg.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "scan cancelled")
		}

		thresholds, err := ComputeThresholds(trainingDistances, agreement, dispersion, i)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "scan aborted")
		}

		phase := cfg.PhaseAt(i)
		scaled := scaleThresholds(thresholds, phase.Multiplier())

		cov, err := TestCoverage(correctness, normQuery, normTraining, scaled)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "scan aborted")
		}

		profile = append(profile, ScanStep{
			K:            i,
			Phase:        phase,
			OutlierCount: cov.OutlierCount,
			Covered:      cov.Covered,
			Accuracy:     cov.Accuracy,
		})
	}
	return profile, nil
}

// scaleThresholds returns a scaled copy; per-step thresholds are never shared
// or mutated across steps.
func scaleThresholds(thresholds []float64, factor float64) []float64 {
	out := make([]float64, len(thresholds))
	for i, t := range thresholds {
		out[i] = t * factor
	}
	return out
}

// UndefinedAccuracy is the sentinel stored in ScanStep.Accuracy when no query
// instance is covered.  Exposed for callers that inspect raw profile values.
func UndefinedAccuracy() float64 { return math.NaN() }
