package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appscan "github.com/qsarlab/adscan/internal/application/scan"
	"github.com/qsarlab/adscan/internal/domain/appdomain"
	domainscan "github.com/qsarlab/adscan/internal/domain/scan"
	"github.com/qsarlab/adscan/pkg/errors"
)

type fakeScanService struct {
	run        *domainscan.Run
	submitted  *appscan.SubmitInput
	submitErr  error
	profile    []appscan.ProfileStep
	profileErr error
}

func (s *fakeScanService) Submit(_ context.Context, in appscan.SubmitInput) (*domainscan.Run, error) {
	s.submitted = &in
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.run, nil
}

func (s *fakeScanService) Get(_ context.Context, id uuid.UUID) (*domainscan.Run, error) {
	if s.run == nil || s.run.ID != id {
		return nil, errors.New(errors.ErrCodeScanJobNotFound, "scan run not found")
	}
	return s.run, nil
}

func (s *fakeScanService) List(_ context.Context, _ domainscan.ListFilter) ([]*domainscan.Run, int64, error) {
	if s.run == nil {
		return nil, 0, nil
	}
	return []*domainscan.Run{s.run}, 1, nil
}

func (s *fakeScanService) GetProfile(_ context.Context, _ uuid.UUID) ([]appscan.ProfileStep, error) {
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	return s.profile, nil
}

func newScanRouter(h *ScanHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/datasets/{datasetID}/scans", h.Submit)
	r.Get("/scans", h.List)
	r.Get("/scans/{runID}", h.Get)
	r.Get("/scans/{runID}/profile", h.Profile)
	return r
}

func testRun(t *testing.T, mode domainscan.Mode) *domainscan.Run {
	t.Helper()
	run, err := domainscan.NewRun(uuid.New(), appdomain.DefaultScanConfig(), mode)
	require.NoError(t, err)
	return run
}

func TestScanHandler_Submit_Sync(t *testing.T) {
	run := testRun(t, domainscan.ModeSync)
	require.NoError(t, run.Start())
	require.NoError(t, run.Complete([]appdomain.ScanStep{
		{K: 1, Phase: appdomain.PhaseCompressed, OutlierCount: 1, Covered: 1, Accuracy: 1},
	}))
	svc := &fakeScanService{run: run}
	router := newScanRouter(NewScanHandler(svc))

	req := httptest.NewRequest(http.MethodPost, "/datasets/"+run.DatasetID.String()+"/scans", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.submitted)
	assert.Equal(t, run.DatasetID, svc.submitted.DatasetID)
	assert.Nil(t, svc.submitted.Config)

	var resp ScanRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Len(t, resp.Profile, 1)
}

func TestScanHandler_Submit_AsyncAccepted(t *testing.T) {
	run := testRun(t, domainscan.ModeAsync)
	svc := &fakeScanService{run: run}
	router := newScanRouter(NewScanHandler(svc))

	body, err := json.Marshal(SubmitScanRequest{
		Config: &appdomain.ScanConfig{Steps: 10, CompressEnd: 4, DecompressStart: 7},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/datasets/"+run.DatasetID.String()+"/scans", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, svc.submitted.Config)
	assert.Equal(t, 10, svc.submitted.Config.Steps)
}

func TestScanHandler_Submit_InvalidSchedule(t *testing.T) {
	svc := &fakeScanService{
		submitErr: errors.New(errors.ErrCodeScanConfigInvalid, "compress_end must be below decompress_start"),
	}
	router := newScanRouter(NewScanHandler(svc))

	req := httptest.NewRequest(http.MethodPost, "/datasets/"+uuid.NewString()+"/scans", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AD_005", resp.Code)
}

func TestScanHandler_Get(t *testing.T) {
	run := testRun(t, domainscan.ModeAsync)
	svc := &fakeScanService{run: run}
	router := newScanRouter(NewScanHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/scans/"+run.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ScanRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, run.ID.String(), resp.ID)
	assert.Equal(t, "pending", resp.Status)
}

func TestScanHandler_List_InvalidDatasetFilter(t *testing.T) {
	svc := &fakeScanService{}
	router := newScanRouter(NewScanHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/scans?dataset_id=nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanHandler_Profile_NullAccuracy(t *testing.T) {
	runID := uuid.New()
	acc := 0.85
	svc := &fakeScanService{profile: []appscan.ProfileStep{
		{K: 1, Phase: "compressed", OutlierCount: 2, Covered: 3, Accuracy: &acc},
		{K: 2, Phase: "half", OutlierCount: 5, Covered: 0, Accuracy: nil},
	}}
	router := newScanRouter(NewScanHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/scans/"+runID.String()+"/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// The undefined accuracy must serialise as null, never 0.
	var raw struct {
		Profile []map[string]json.RawMessage `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Len(t, raw.Profile, 2)
	assert.JSONEq(t, "0.85", string(raw.Profile[0]["accuracy"]))
	assert.JSONEq(t, "null", string(raw.Profile[1]["accuracy"]))
}

func TestScanHandler_Profile_Unfinished(t *testing.T) {
	svc := &fakeScanService{
		profileErr: errors.New(errors.ErrCodeScanJobNotFinished, "scan run is running"),
	}
	router := newScanRouter(NewScanHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/scans/"+uuid.NewString()+"/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestScanHandler_Profile_FailedRun(t *testing.T) {
	svc := &fakeScanService{
		profileErr: errors.New(errors.ErrCodeScanJobFailed, "scan run failed"),
	}
	router := newScanRouter(NewScanHandler(svc))

	req := httptest.NewRequest(http.MethodGet, "/scans/"+uuid.NewString()+"/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
