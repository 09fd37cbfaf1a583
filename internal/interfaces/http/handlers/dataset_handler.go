package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	appdataset "github.com/qsarlab/adscan/internal/application/dataset"
	domaindataset "github.com/qsarlab/adscan/internal/domain/dataset"
	"github.com/qsarlab/adscan/pkg/errors"
)

// multipartMemoryLimit bounds the in-memory portion of an upload; larger
// parts spill to temp files.
const multipartMemoryLimit = 32 << 20

// matrixParts are the required file fields of a dataset upload.
var matrixParts = []string{"training", "query", "correctness", "agreement", "dispersion"}

// DatasetService is the slice of the dataset application service the handler
// needs.
type DatasetService interface {
	Create(ctx context.Context, in appdataset.CreateInput) (*domaindataset.Dataset, error)
	Get(ctx context.Context, id uuid.UUID) (*domaindataset.Dataset, error)
	List(ctx context.Context, filter domaindataset.ListFilter) ([]*domaindataset.Dataset, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DatasetHandler serves the dataset resource.
type DatasetHandler struct {
	svc DatasetService
}

// NewDatasetHandler constructs the dataset handler.
func NewDatasetHandler(svc DatasetService) *DatasetHandler {
	return &DatasetHandler{svc: svc}
}

// DatasetResponse is the transport form of dataset metadata.
type DatasetResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	FeatureCount  int       `json:"feature_count"`
	TrainingCount int       `json:"training_count"`
	QueryCount    int       `json:"query_count"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toDatasetResponse(d *domaindataset.Dataset) DatasetResponse {
	return DatasetResponse{
		ID:            d.ID.String(),
		Name:          d.Name,
		Description:   d.Description,
		FeatureCount:  d.FeatureCount,
		TrainingCount: d.TrainingCount,
		QueryCount:    d.QueryCount,
		Status:        string(d.Status),
		FailureReason: d.FailureReason,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// DatasetListResponse is the body of a dataset listing.
type DatasetListResponse struct {
	Datasets []DatasetResponse `json:"datasets"`
	Meta     ListMeta          `json:"meta"`
}

// Create handles POST /datasets. The body is multipart/form-data with a name
// field, an optional description, and the five CSV file parts.
func (h *DatasetHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeError(w, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed multipart body"))
		return
	}

	in := appdataset.CreateInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	for _, part := range matrixParts {
		payload, err := readFilePart(r, part)
		if err != nil {
			writeError(w, err)
			return
		}
		switch part {
		case "training":
			in.TrainingCSV = payload
		case "query":
			in.QueryCSV = payload
		case "correctness":
			in.CorrectnessCSV = payload
		case "agreement":
			in.AgreementCSV = payload
		case "dispersion":
			in.DispersionCSV = payload
		}
	}

	d, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDatasetResponse(d))
}

func readFilePart(r *http.Request, name string) ([]byte, error) {
	file, _, err := r.FormFile(name)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeBadRequest, "missing file part %q", name)
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read file part "+name)
	}
	return payload, nil
}

// Get handles GET /datasets/{datasetID}.
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "datasetID")
	if err != nil {
		writeError(w, err)
		return
	}

	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDatasetResponse(d))
}

// List handles GET /datasets with optional status filter and pagination.
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	filter := domaindataset.ListFilter{
		Status:   domaindataset.Status(r.URL.Query().Get("status")),
		Page:     page,
		PageSize: pageSize,
	}

	datasets, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := DatasetListResponse{
		Datasets: make([]DatasetResponse, 0, len(datasets)),
		Meta:     ListMeta{Page: page, PageSize: pageSize, Total: total},
	}
	for _, d := range datasets {
		resp.Datasets = append(resp.Datasets, toDatasetResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /datasets/{datasetID}.
func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "datasetID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
