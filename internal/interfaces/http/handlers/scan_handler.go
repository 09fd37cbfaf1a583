package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	appscan "github.com/qsarlab/adscan/internal/application/scan"
	"github.com/qsarlab/adscan/internal/domain/appdomain"
	domainscan "github.com/qsarlab/adscan/internal/domain/scan"
	"github.com/qsarlab/adscan/pkg/errors"
)

// ScanService is the slice of the scan application service the handler needs.
type ScanService interface {
	Submit(ctx context.Context, in appscan.SubmitInput) (*domainscan.Run, error)
	Get(ctx context.Context, id uuid.UUID) (*domainscan.Run, error)
	List(ctx context.Context, filter domainscan.ListFilter) ([]*domainscan.Run, int64, error)
	GetProfile(ctx context.Context, id uuid.UUID) ([]appscan.ProfileStep, error)
}

// ScanHandler serves the scan-run resource.
type ScanHandler struct {
	svc ScanService
}

// NewScanHandler constructs the scan handler.
func NewScanHandler(svc ScanService) *ScanHandler {
	return &ScanHandler{svc: svc}
}

// SubmitScanRequest is the body of a scan submission. Config is optional; a
// missing config means the platform default schedule.
type SubmitScanRequest struct {
	Config *appdomain.ScanConfig `json:"config,omitempty"`
}

// ScanRunResponse is the transport form of a scan run.
type ScanRunResponse struct {
	ID          string                `json:"id"`
	DatasetID   string                `json:"dataset_id"`
	Config      appdomain.ScanConfig  `json:"config"`
	Mode        string                `json:"mode"`
	Status      string                `json:"status"`
	ErrorCode   string                `json:"error_code,omitempty"`
	ErrorDetail string                `json:"error_detail,omitempty"`
	Profile     []appscan.ProfileStep `json:"profile,omitempty"`
	SubmittedAt time.Time             `json:"submitted_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	FinishedAt  *time.Time            `json:"finished_at,omitempty"`
}

func toScanRunResponse(run *domainscan.Run) ScanRunResponse {
	return ScanRunResponse{
		ID:          run.ID.String(),
		DatasetID:   run.DatasetID.String(),
		Config:      run.Config,
		Mode:        string(run.Mode),
		Status:      string(run.Status),
		ErrorCode:   run.ErrorCode,
		ErrorDetail: run.ErrorDetail,
		Profile:     appscan.ToProfile(run.Profile),
		SubmittedAt: run.SubmittedAt,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
}

// ScanListResponse is the body of a scan-run listing.
type ScanListResponse struct {
	Runs []ScanRunResponse `json:"runs"`
	Meta ListMeta          `json:"meta"`
}

// ProfileResponse is the body of a profile retrieval.
type ProfileResponse struct {
	RunID   string                `json:"run_id"`
	Profile []appscan.ProfileStep `json:"profile"`
}

// Submit handles POST /datasets/{datasetID}/scans. Small datasets compute
// inline and return 200 with the finished run; large ones are queued and
// return 202 with the pending run.
func (h *ScanHandler) Submit(w http.ResponseWriter, r *http.Request) {
	datasetID, err := parseUUIDParam(r, "datasetID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req SubmitScanRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	run, err := h.svc.Submit(r.Context(), appscan.SubmitInput{
		DatasetID: datasetID,
		Config:    req.Config,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if run.Mode == domainscan.ModeAsync {
		status = http.StatusAccepted
	}
	writeJSON(w, status, toScanRunResponse(run))
}

// Get handles GET /scans/{runID}.
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "runID")
	if err != nil {
		writeError(w, err)
		return
	}

	run, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScanRunResponse(run))
}

// List handles GET /scans with optional dataset_id and status filters.
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	filter := domainscan.ListFilter{
		Status:   domainscan.Status(r.URL.Query().Get("status")),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := r.URL.Query().Get("dataset_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, errors.Newf(errors.ErrCodeBadRequest, "invalid dataset_id: %q", raw))
			return
		}
		filter.DatasetID = id
	}

	runs, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ScanListResponse{
		Runs: make([]ScanRunResponse, 0, len(runs)),
		Meta: ListMeta{Page: page, PageSize: pageSize, Total: total},
	}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, toScanRunResponse(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Profile handles GET /scans/{runID}/profile.
func (h *ScanHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "runID")
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.svc.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{RunID: id.String(), Profile: profile})
}
