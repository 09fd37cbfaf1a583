package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appscan "github.com/qsarlab/adscan/internal/application/scan"
	"github.com/qsarlab/adscan/internal/domain/appdomain"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/prometheus"
	"github.com/qsarlab/adscan/internal/interfaces/http/handlers"
)

// newTestRouter wires a route tree with the real calculator behind the
// /domain endpoints and a checker-free health handler. Dataset and scan
// handlers need backing services and are covered in their own package.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "adscan"}, logging.NewNopLogger())
	require.NoError(t, err)
	metrics := prometheus.NewAppMetrics(collector)

	calc := appscan.NewCalculator(appdomain.DefaultScanConfig(), metrics, logging.NewNopLogger())

	return NewRouter(RouterConfig{
		DomainHandler:    handlers.NewDomainHandler(calc),
		HealthHandler:    handlers.NewHealthHandler("test", metrics),
		Logger:           logging.NewNopLogger(),
		Metrics:          metrics,
		MetricsCollector: collector,
		MaxBodySize:      1 << 20,
	})
}

func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alive"`)
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t)

	// Drive one API request so the middleware records something scrapeable.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/domain/distances", nil))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "adscan_http_requests_total")
}

func TestRouter_DomainDistances(t *testing.T) {
	router := newTestRouter(t)

	body, err := json.Marshal(appscan.DistancesInput{
		Reference: [][]float64{{0, 0}, {1, 1}, {2, 2}},
		Query:     [][]float64{{1, 1}},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/domain/distances", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	var resp appscan.DistancesOutput
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Rows, 1)
	assert.Len(t, resp.Rows[0], 3)
}

func TestRouter_DomainScan_ShapeMismatch(t *testing.T) {
	router := newTestRouter(t)

	body, err := json.Marshal(appscan.RunInput{
		Training:    [][]float64{{0, 0}, {1, 1}},
		Query:       [][]float64{{1, 2, 3}},
		Correctness: []float64{1},
		Agreement:   []float64{1, 1},
		Dispersion:  []float64{0, 0},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/domain/scan", bytes.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AD_002", resp.Code)
}

func TestRouter_DomainCoverage_MalformedBody(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/domain/coverage",
		strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "adscan"}, logging.NewNopLogger())
	require.NoError(t, err)
	calc := appscan.NewCalculator(appdomain.DefaultScanConfig(), nil, logging.NewNopLogger())
	router := NewRouter(RouterConfig{
		DomainHandler:    handlers.NewDomainHandler(calc),
		Logger:           logging.NewNopLogger(),
		MetricsCollector: collector,
		MaxBodySize:      64,
	})

	big := `{"reference":[[` + strings.Repeat("1,", 200) + `1]],"query":[[1]]}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/domain/distances",
		strings.NewReader(big)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
