package appdomain

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/qsarlab/adscan/pkg/errors"
)

// tukeyFenceFactor is the multiplier on the interquartile range in the upper
// Tukey fence used to flag density outliers among per-instance k-NN average
// distances.
const tukeyFenceFactor = 1.5

// baselineCompression divides every corrected threshold, establishing the
// compressed baseline radius of one third of the raw average distance.  The
// scan phases undo it progressively (see Phase.Multiplier).
const baselineCompression = 3.0

// ComputeThresholds derives one coverage radius per training instance from the
// training-vs-training distance matrix, the per-instance reliability signals,
// and the neighbor count k.
//
// The derivation:
//
//  1. Average the first k non-self sorted distances of each row (positions
//     1..k; position 0 is the self distance).  When k exceeds the number of
//     non-self neighbors it is clamped, so small training sets remain valid at
//     every step of a default-length scan.
//  2. Fence the per-instance averages with the upper Tukey bound
//     Q3 + 1.5*(Q3-Q1).  Quartiles use linear interpolation between order
//     statistics (gonum stat.LinInterp); the rule is fixed here because fence
//     values at boundaries are sensitive to it.
//  3. For each instance, average the non-self distances at or below the fence.
//     Instances with no such distance are left unresolved and backfilled with
//     the minimum resolved threshold in a dedicated pass.
//  4. Scale each threshold by the reliability correction
//     (1 - dispersion) * agreement.  Non-positive factors are replaced by the
//     smallest strictly positive factor across instances.
//  5. Divide by 3 to obtain the compressed baseline radius.
//
// Every returned threshold is finite and non-negative.  A step on which no
// instance resolves, or on which no instance has a positive correction factor,
// is a degenerate case that aborts the caller's scan.
func ComputeThresholds(training *DistanceMatrix, agreement, dispersion []float64, k int) ([]float64, error) {
	if training == nil || len(training.Rows) == 0 {
		return nil, errors.New(errors.ErrCodeShapeMismatch, "training distance matrix must not be empty")
	}
	n := len(training.Rows)
	if n < 2 {
		return nil, errors.New(errors.ErrCodeShapeMismatch,
			"threshold derivation requires at least two training instances")
	}
	if k < 1 {
		return nil, errors.Newf(errors.ErrCodeValidation, "neighbor count k must be >= 1, got %d", k)
	}
	if err := validateSignal("agreement", agreement, n); err != nil {
		return nil, err
	}
	if err := validateSignal("dispersion", dispersion, n); err != nil {
		return nil, err
	}
	for i, row := range training.Rows {
		if len(row) != n {
			return nil, errors.Newf(errors.ErrCodeShapeMismatch,
				"training distance matrix is not square: row %d has %d entries, want %d", i, len(row), n)
		}
	}

	kEff := k
	if kEff > n-1 {
		kEff = n - 1
	}

	// Per-instance average distance to the k nearest non-self neighbors.
	kAvg := make([]float64, n)
	for i, row := range training.Rows {
		sum := 0.0
		for _, d := range row[1 : kEff+1] {
			sum += d
		}
		kAvg[i] = sum / float64(kEff)
	}

	refBound := upperTukeyFence(kAvg)

	// Raw thresholds from fence-filtered non-self distances.  Unresolved
	// instances are tracked explicitly and backfilled after the resolved
	// minimum is known.
	raw := make([]float64, n)
	resolved := make([]bool, n)
	minResolved := 0.0
	anyResolved := false
	for i, row := range training.Rows {
		sum, cnt := 0.0, 0
		for _, d := range row[1:] {
			if d <= refBound {
				sum += d
				cnt++
			}
		}
		if cnt == 0 {
			continue
		}
		raw[i] = sum / float64(cnt)
		resolved[i] = true
		if !anyResolved || raw[i] < minResolved {
			minResolved = raw[i]
			anyResolved = true
		}
	}
	if !anyResolved {
		return nil, errors.Newf(errors.ErrCodeDegenerateCase,
			"no training instance has a resolvable threshold at k=%d", k)
	}
	for i := range raw {
		if !resolved[i] {
			raw[i] = minResolved
		}
	}

	factors, err := correctionFactors(agreement, dispersion, k)
	if err != nil {
		return nil, err
	}

	thresholds := make([]float64, n)
	for i := range thresholds {
		thresholds[i] = raw[i] * factors[i] / baselineCompression
	}
	return thresholds, nil
}

// upperTukeyFence computes Q3 + 1.5*(Q3-Q1) over vals using linearly
// interpolated quartiles.  vals is not modified.
func upperTukeyFence(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	return q3 + tukeyFenceFactor*(q3-q1)
}

// correctionFactors computes the per-instance reliability correction
// (1 - dispersion) * agreement, substituting the minimum strictly positive
// factor for any non-positive one.  High agreement (low local bias) and low
// dispersion (high local precision) leave the radius near its raw value;
// unreliable neighborhoods shrink it.
func correctionFactors(agreement, dispersion []float64, k int) ([]float64, error) {
	n := len(agreement)
	factors := make([]float64, n)
	minPositive := 0.0
	anyPositive := false
	for i := range factors {
		factors[i] = (1 - dispersion[i]) * agreement[i]
		if factors[i] > 0 && (!anyPositive || factors[i] < minPositive) {
			minPositive = factors[i]
			anyPositive = true
		}
	}
	if !anyPositive {
		return nil, errors.Newf(errors.ErrCodeDegenerateCase,
			"no training instance has a strictly positive reliability correction at k=%d", k)
	}
	for i := range factors {
		if factors[i] <= 0 {
			factors[i] = minPositive
		}
	}
	return factors, nil
}
