package appdomain

import (
	"math"

	"github.com/qsarlab/adscan/pkg/errors"
)

// CoverageResult reports how a query set relates to the trained neighborhood
// map at one radius setting.
type CoverageResult struct {
	// NeighborCounts[q] is the number of training instances whose coverage
	// radius reaches query instance q.
	NeighborCounts []int

	// OutlierCount is the number of query instances covered by no training
	// instance.
	OutlierCount int

	// Covered is the number of query instances with at least one covering
	// training instance.
	Covered int

	// Accuracy is the fraction of covered query instances whose external
	// prediction was correct.  It is NaN when Covered == 0; use
	// AccuracyDefined before reading it.  The undefined state is first-class:
	// it is distinct from a true 0.0 or 1.0 accuracy and never collapses to a
	// numeric placeholder.
	Accuracy float64
}

// AccuracyDefined reports whether Accuracy carries a meaningful value, i.e.
// at least one query instance is covered.
func (r *CoverageResult) AccuracyDefined() bool { return r.Covered > 0 }

// TestCoverage classifies every query instance against the per-training
// coverage radii.  Query instance q is covered by training instance t when
// the Euclidean distance between them is at or below thresholds[t]; coverage
// is asymmetric: each training instance projects its own radius outward,
// independent of any property of q.
//
// Both feature matrices must already be normalized on the same bounds
// (Bounds.Normalize with bounds fitted on the training set).  correctness
// holds one flag per query instance (1 correct, 0 incorrect) from the
// external classifier; thresholds holds one non-negative radius per training
// instance.
//
// Cost is O(|query| x |training| x features) and the routine re-runs once per
// scan step, which dominates scan time on large sets.
func TestCoverage(correctness []float64, query, training [][]float64, thresholds []float64) (*CoverageResult, error) {
	qCols, err := validateMatrix("query", query, -1)
	if err != nil {
		return nil, err
	}
	if _, err := validateMatrix("training", training, qCols); err != nil {
		return nil, err
	}
	if err := validateSignal("correctness", correctness, len(query)); err != nil {
		return nil, err
	}
	if err := validateSignal("thresholds", thresholds, len(training)); err != nil {
		return nil, err
	}
	for i, th := range thresholds {
		if th < 0 {
			return nil, errors.Newf(errors.ErrCodeValidation,
				"threshold for training instance %d is negative", i)
		}
	}

	counts := make([]int, len(query))
	outliers := 0
	correctSum := 0.0
	covered := 0
	for q, qrow := range query {
		cnt := 0
		for t, trow := range training {
			if euclidean(qrow, trow) <= thresholds[t] {
				cnt++
			}
		}
		counts[q] = cnt
		if cnt == 0 {
			outliers++
			continue
		}
		covered++
		correctSum += correctness[q]
	}

	res := &CoverageResult{
		NeighborCounts: counts,
		OutlierCount:   outliers,
		Covered:        covered,
		Accuracy:       math.NaN(),
	}
	if covered > 0 {
		res.Accuracy = correctSum / float64(covered)
	}
	return res, nil
}
