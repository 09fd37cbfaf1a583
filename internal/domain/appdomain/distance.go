package appdomain

import (
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DistanceMatrix holds, per reference instance, the ascending-sorted Euclidean
// distances to every query instance, computed on min-max-normalized features.
// Neighbor identity is intentionally discarded by the sort: downstream
// consumers use only rank-based statistics (k-th nearest distance, quantiles),
// never "which neighbor sits at distance d".
//
// For a training-vs-training matrix, row i always starts with the self
// distance 0.
type DistanceMatrix struct {
	// Rows[i] is the sorted distance list from reference instance i to every
	// query instance.
	Rows [][]float64

	// Bounds are the per-feature normalization parameters derived from the
	// reference set.  Callers reuse them to place other matrices (typically
	// the query set) in the same normalized space.
	Bounds *Bounds
}

// Instances returns the number of reference instances.
func (d *DistanceMatrix) Instances() int { return len(d.Rows) }

// ComputeDistances computes the normalized pairwise Euclidean distance matrix
// between a reference set and a query set.  Normalization bounds are derived
// from the reference set only and applied to both inputs; the derived bounds
// are returned on the result so callers can normalize further sets
// identically.  Each output row is sorted ascending in place.
//
// Both matrices must be rectangular, finite, and share a feature count;
// violations surface as validation errors before any computation.  Calling
// with reference == query (the training-vs-training case) is the expected way
// to prepare input for ComputeThresholds.
//
// Rows are independent, so they are computed concurrently across instances;
// the result is identical to a sequential evaluation.
func ComputeDistances(reference, query [][]float64) (*DistanceMatrix, error) {
	cols, err := validateMatrix("reference", reference, -1)
	if err != nil {
		return nil, err
	}
	if _, err := validateMatrix("query", query, cols); err != nil {
		return nil, err
	}

	bounds := FitBounds(reference)
	nref := bounds.Normalize(reference)
	nq := bounds.Normalize(query)

	rows := make([][]float64, len(nref))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range nref {
		i := i
		g.Go(func() error {
			row := make([]float64, len(nq))
			for j := range nq {
				row[j] = euclidean(nref[i], nq[j])
			}
			sort.Float64s(row)
			rows[i] = row
			return nil
		})
	}
	// Row workers cannot fail; Wait only synchronizes completion.
	_ = g.Wait()

	return &DistanceMatrix{Rows: rows, Bounds: bounds}, nil
}
