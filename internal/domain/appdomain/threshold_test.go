package appdomain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsarlab/adscan/pkg/errors"
)

func uniformSignal(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestComputeThresholds_UniformNeighborhood(t *testing.T) {
	// Normalized one-feature points 0, 0.5, 1: every k=1 average distance is
	// 0.5, so the Tukey fence sits exactly at 0.5 and keeps only the 0.5
	// entries.  With maximal reliability the threshold is the compressed
	// baseline 0.5/3.
	train := [][]float64{{0}, {1}, {2}}
	dm, err := ComputeDistances(train, train)
	require.NoError(t, err)

	thresholds, err := ComputeThresholds(dm, uniformSignal(3, 1), uniformSignal(3, 0), 1)
	require.NoError(t, err)
	require.Len(t, thresholds, 3)
	for i, th := range thresholds {
		assert.InDelta(t, 0.5/3.0, th, 1e-12, "threshold %d", i)
	}
}

func TestComputeThresholds_BackfillsUnresolvedWithMinimum(t *testing.T) {
	// Hand-built sorted distance rows: four tight instances at mutual
	// distance 1 and one isolated instance at distance 9 from everything.
	// The k=1 averages are [1 1 1 1 9]; with linearly interpolated quartiles
	// Q1 = Q3 = 1, so the fence is 1 and the isolated instance keeps no
	// distance at all.  Its threshold must be backfilled with the minimum
	// resolved threshold, not left as a placeholder.
	dm := &DistanceMatrix{Rows: [][]float64{
		{0, 1, 1, 1, 9},
		{0, 1, 1, 1, 9},
		{0, 1, 1, 1, 9},
		{0, 1, 1, 1, 9},
		{0, 9, 9, 9, 9},
	}}

	thresholds, err := ComputeThresholds(dm, uniformSignal(5, 1), uniformSignal(5, 0), 1)
	require.NoError(t, err)
	require.Len(t, thresholds, 5)
	for i, th := range thresholds {
		assert.InDelta(t, 1.0/3.0, th, 1e-12, "threshold %d", i)
	}
}

func TestComputeThresholds_ReliabilityCorrectionScalesRadius(t *testing.T) {
	dm := &DistanceMatrix{Rows: [][]float64{
		{0, 1, 1},
		{0, 1, 1},
		{0, 1, 1},
	}}

	agreement := []float64{1, 0.5, 0}
	dispersion := []float64{0, 0, 0}

	thresholds, err := ComputeThresholds(dm, agreement, dispersion, 1)
	require.NoError(t, err)

	// Raw thresholds are all 1.  Factors: 1, 0.5, and the zero factor is
	// replaced by the minimum strictly positive factor 0.5.
	assert.InDelta(t, 1.0/3.0, thresholds[0], 1e-12)
	assert.InDelta(t, 0.5/3.0, thresholds[1], 1e-12)
	assert.InDelta(t, 0.5/3.0, thresholds[2], 1e-12)
}

func TestComputeThresholds_DispersionShrinksRadius(t *testing.T) {
	dm := &DistanceMatrix{Rows: [][]float64{
		{0, 1, 1},
		{0, 1, 1},
		{0, 1, 1},
	}}

	thresholds, err := ComputeThresholds(dm, uniformSignal(3, 1), []float64{0, 0.5, 0.9}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, thresholds[0], 1e-12)
	assert.InDelta(t, 0.5/3.0, thresholds[1], 1e-12)
	assert.InDelta(t, 0.1/3.0, thresholds[2], 1e-12)
}

func TestComputeThresholds_AllZeroAgreementIsDegenerate(t *testing.T) {
	train := [][]float64{{0}, {1}, {2}}
	dm, err := ComputeDistances(train, train)
	require.NoError(t, err)

	_, err = ComputeThresholds(dm, uniformSignal(3, 0), uniformSignal(3, 0), 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDegenerateCase))
}

func TestComputeThresholds_AllValidKProduceFiniteThresholds(t *testing.T) {
	train := [][]float64{
		{0.0, 0.1}, {0.9, 0.2}, {1.7, 0.4}, {2.2, 1.5},
		{3.1, 2.0}, {4.0, 2.2}, {5.3, 3.3}, {6.1, 4.0},
	}
	n := len(train)
	dm, err := ComputeDistances(train, train)
	require.NoError(t, err)

	for k := 1; k <= n-1; k++ {
		thresholds, err := ComputeThresholds(dm, uniformSignal(n, 1), uniformSignal(n, 0), k)
		require.NoError(t, err, "k=%d", k)
		require.Len(t, thresholds, n, "k=%d", k)
		for i, th := range thresholds {
			assert.False(t, th < 0, "k=%d threshold %d negative", k, i)
			assert.False(t, math.IsNaN(th) || math.IsInf(th, 0), "k=%d threshold %d not finite", k, i)
		}
	}
}

func TestComputeThresholds_KBeyondNeighborsIsClamped(t *testing.T) {
	train := [][]float64{{0}, {1}, {2}}
	dm, err := ComputeDistances(train, train)
	require.NoError(t, err)

	clamped, err := ComputeThresholds(dm, uniformSignal(3, 1), uniformSignal(3, 0), 50)
	require.NoError(t, err)
	exact, err := ComputeThresholds(dm, uniformSignal(3, 1), uniformSignal(3, 0), 2)
	require.NoError(t, err)
	assert.Equal(t, exact, clamped)
}

func TestComputeThresholds_Validation(t *testing.T) {
	train := [][]float64{{0}, {1}, {2}}
	dm, err := ComputeDistances(train, train)
	require.NoError(t, err)

	tests := []struct {
		name       string
		agreement  []float64
		dispersion []float64
		k          int
	}{
		{"k_zero", uniformSignal(3, 1), uniformSignal(3, 0), 0},
		{"agreement_too_short", uniformSignal(2, 1), uniformSignal(3, 0), 1},
		{"dispersion_too_long", uniformSignal(3, 1), uniformSignal(4, 0), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeThresholds(dm, tt.agreement, tt.dispersion, tt.k)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestUpperTukeyFence_UniformValues(t *testing.T) {
	assert.InDelta(t, 2.0, upperTukeyFence([]float64{2, 2, 2, 2}), 1e-12)
}
