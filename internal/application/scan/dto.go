// Package scan implements the scan application service: submitting runs,
// executing them synchronously or through the job queue, and serving stored
// reliability-vs-coverage profiles.
package scan

import (
	"math"

	"github.com/qsarlab/adscan/internal/domain/appdomain"
)

// ProfileStep is the transport form of one profile entry. Accuracy is a
// pointer so the undefined state (no query instance covered) serialises as
// JSON null rather than a fake zero.
type ProfileStep struct {
	K            int      `json:"k"`
	Phase        string   `json:"phase"`
	OutlierCount int      `json:"outlier_count"`
	Covered      int      `json:"covered"`
	Accuracy     *float64 `json:"accuracy"`
}

// ToProfile converts engine steps to their transport form.
func ToProfile(steps []appdomain.ScanStep) []ProfileStep {
	if steps == nil {
		return nil
	}
	out := make([]ProfileStep, len(steps))
	for i, s := range steps {
		out[i] = ProfileStep{
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
	return out
}

// FromProfile converts transport steps back to engine form, restoring NaN
// for null accuracy.
func FromProfile(steps []ProfileStep) []appdomain.ScanStep {
	if steps == nil {
		return nil
	}
	out := make([]appdomain.ScanStep, len(steps))
	for i, s := range steps {
		out[i] = appdomain.ScanStep{
			K:            s.K,
			Phase:        parsePhase(s.Phase),
			OutlierCount: s.OutlierCount,
			Covered:      s.Covered,
			Accuracy:     math.NaN(),
		}
		if s.Accuracy != nil {
			out[i].Accuracy = *s.Accuracy
		}
	}
	return out
}

func parsePhase(s string) appdomain.Phase {
	for _, p := range []appdomain.Phase{appdomain.PhaseCompressed, appdomain.PhaseHalf, appdomain.PhaseFull} {
		if p.String() == s {
			return p
		}
	}
	return appdomain.PhaseCompressed
}
