// Package appdomain implements applicability-domain estimation for
// classification models trained on molecular descriptor data.  It builds a
// coverage map around training instances whose radius depends on local
// neighbor density, local prediction bias, and local prediction precision,
// then classifies query instances as covered or not and reports in-domain
// accuracy as the coverage radius is progressively widened.
//
// The package is a pure computation layer: it performs no I/O, holds no
// ambient state, and is deterministic for identical inputs.  All data is
// threaded explicitly through calls: the scanner owns the distance matrix
// and normalization bounds and passes them to the threshold and coverage
// routines as arguments.
package appdomain

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/qsarlab/adscan/pkg/errors"
)

// validateMatrix checks that m is rectangular, contains only finite values,
// and (when wantCols >= 0) has exactly wantCols columns.  It returns the
// column count.  The non-finite check runs before any normalization per the
// input contract: missing or non-finite descriptor values are never silently
// repaired.
func validateMatrix(name string, m [][]float64, wantCols int) (int, error) {
	if len(m) == 0 {
		return 0, errors.Newf(errors.ErrCodeShapeMismatch, "%s matrix must not be empty", name)
	}
	cols := len(m[0])
	if wantCols >= 0 && cols != wantCols {
		return 0, errors.Newf(errors.ErrCodeShapeMismatch,
			"%s matrix has %d features, want %d", name, cols, wantCols)
	}
	if cols == 0 {
		return 0, errors.Newf(errors.ErrCodeShapeMismatch, "%s matrix has no features", name)
	}
	for i, row := range m {
		if len(row) != cols {
			return 0, errors.Newf(errors.ErrCodeShapeMismatch,
				"%s matrix is ragged: row %d has %d values, want %d", name, i, len(row), cols)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, errors.Newf(errors.ErrCodeNonFiniteValue,
					"%s matrix contains a non-finite value at row %d, feature %d", name, i, j)
			}
		}
	}
	return cols, nil
}

// validateSignal checks that v has exactly wantLen finite entries.
func validateSignal(name string, v []float64, wantLen int) error {
	if len(v) != wantLen {
		return errors.Newf(errors.ErrCodeShapeMismatch,
			"%s vector has %d values, want one per instance (%d)", name, len(v), wantLen)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return errors.Newf(errors.ErrCodeNonFiniteValue,
				"%s vector contains a non-finite value at index %d", name, i)
		}
	}
	return nil
}

// Bounds holds per-feature min/max normalization parameters derived from a
// reference (training) feature matrix.  The same Bounds must be applied to
// every matrix that participates in a distance computation so that training
// and query instances live in the same normalized space.
type Bounds struct {
	Min []float64
	Max []float64
}

// FitBounds derives per-feature min/max bounds from the reference matrix.
// The matrix is assumed rectangular and finite (see validateMatrix).
func FitBounds(reference [][]float64) *Bounds {
	cols := len(reference[0])
	b := &Bounds{
		Min: make([]float64, cols),
		Max: make([]float64, cols),
	}
	for j := 0; j < cols; j++ {
		lo, hi := reference[0][j], reference[0][j]
		for _, row := range reference[1:] {
			if row[j] < lo {
				lo = row[j]
			}
			if row[j] > hi {
				hi = row[j]
			}
		}
		b.Min[j] = lo
		b.Max[j] = hi
	}
	return b
}

// Features returns the number of features the bounds were fitted on.
func (b *Bounds) Features() int { return len(b.Min) }

// DegenerateFeatures returns the indices of features with zero range in the
// reference set (max == min).  Such features carry no discriminative
// information; Normalize maps them to 0 for every instance so they contribute
// nothing to any distance.  Callers that prefer to reject degenerate features
// outright should check this before normalizing.
func (b *Bounds) DegenerateFeatures() []int {
	var idx []int
	for j := range b.Min {
		if b.Max[j] == b.Min[j] {
			idx = append(idx, j)
		}
	}
	return idx
}

// Normalize returns a min-max-normalized copy of m using the receiver's
// bounds: (x - min) / (max - min) per feature.  Zero-range features normalize
// to 0 (see DegenerateFeatures).  The input is not modified.
func (b *Bounds) Normalize(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		nr := make([]float64, len(row))
		for j, v := range row {
			span := b.Max[j] - b.Min[j]
			if span == 0 {
				nr[j] = 0
				continue
			}
			nr[j] = (v - b.Min[j]) / span
		}
		out[i] = nr
	}
	return out
}

// euclidean is the L2 distance between two equal-length normalized rows.
func euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}
