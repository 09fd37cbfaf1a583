package handlers

import (
	"context"
	"net/http"

	appscan "github.com/qsarlab/adscan/internal/application/scan"
)

// DomainCalculator exposes the four numeric operations for ad-hoc inputs.
type DomainCalculator interface {
	ComputeDistances(ctx context.Context, in appscan.DistancesInput) (*appscan.DistancesOutput, error)
	ComputeThresholds(ctx context.Context, in appscan.ThresholdsInput) (*appscan.ThresholdsOutput, error)
	TestCoverage(ctx context.Context, in appscan.CoverageInput) (*appscan.CoverageOutput, error)
	Run(ctx context.Context, in appscan.RunInput) ([]appscan.ProfileStep, error)
}

// DomainHandler serves the stateless applicability-domain operations. Inputs
// arrive inline in the request body; nothing is persisted.
type DomainHandler struct {
	calc DomainCalculator
}

// NewDomainHandler constructs the ad-hoc operations handler.
func NewDomainHandler(calc DomainCalculator) *DomainHandler {
	return &DomainHandler{calc: calc}
}

// Distances handles POST /domain/distances.
func (h *DomainHandler) Distances(w http.ResponseWriter, r *http.Request) {
	var in appscan.DistancesInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.calc.ComputeDistances(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Thresholds handles POST /domain/thresholds.
func (h *DomainHandler) Thresholds(w http.ResponseWriter, r *http.Request) {
	var in appscan.ThresholdsInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.calc.ComputeThresholds(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Coverage handles POST /domain/coverage.
func (h *DomainHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	var in appscan.CoverageInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.calc.TestCoverage(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Scan handles POST /domain/scan: a full ad-hoc profile computed inline.
func (h *DomainHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var in appscan.RunInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.calc.Run(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]appscan.ProfileStep{"profile": profile})
}
