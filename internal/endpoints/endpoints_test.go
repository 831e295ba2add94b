package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homelab-metrics/internal/domain"
	"homelab-metrics/internal/util"
)

type MockMetricStore struct {
	Points   map[string][]domain.Point
	Recorded []domain.Sample
	Queried  []string
	Err      error
}

func (m *MockMetricStore) Record(ctx context.Context, nodeID string, cpuPercent, ramPercent float64) error {
	if m.Err != nil {
		return m.Err
	}
	m.Recorded = append(m.Recorded, domain.Sample{NodeID: nodeID, CPUPercent: cpuPercent, RAMPercent: ramPercent})
	return nil
}

func (m *MockMetricStore) Query(ctx context.Context, nodeID string, r domain.Range) ([]domain.Point, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.Queried = append(m.Queried, nodeID)
	return m.Points[nodeID], nil
}

func (m *MockMetricStore) ListNodeIDs(ctx context.Context) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	ids := make([]string, 0, len(m.Points))
	for id := range m.Points {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockMetricStore) Cleanup(ctx context.Context) (int64, error) { return 0, m.Err }
func (m *MockMetricStore) Start()                                     {}
func (m *MockMetricStore) Stop()                                      {}
func (m *MockMetricStore) Close() error                               { return m.Err }

type metricsEnvelope struct {
	Success   bool        `json:"success"`
	Data      MetricsData `json:"data"`
	Error     string      `json:"error"`
	ErrorCode int         `json:"error_code"`
	Timestamp int64       `json:"timestamp"`
}

func newHandler(store domain.MetricStore) *Metrics {
	h := &Metrics{}
	h.Init(store, &util.MetricsLogger{}, "pve")
	return h
}

func getMetrics(t *testing.T, h *Metrics, target string) (*httptest.ResponseRecorder, metricsEnvelope) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.GetMetricsHandler(rr, req)

	var env metricsEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr, env
}

func TestGetMetricsHandler(t *testing.T) {
	mockStore := &MockMetricStore{
		Points: map[string][]domain.Point{
			"nas": {
				{Timestamp: 1000, CPUPercent: 10, RAMPercent: 40},
				{Timestamp: 31000, CPUPercent: 20, RAMPercent: 45},
			},
		},
	}
	h := newHandler(mockStore)

	// case 1: explicit node and range
	rr, env := getMetrics(t, h, "/api/metrics?range=24h&node=nas")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.True(t, env.Success)
	assert.Equal(t, API_SUCCESS, env.ErrorCode)
	assert.Empty(t, env.Error)
	assert.NotZero(t, env.Timestamp)
	assert.Equal(t, "nas", env.Data.NodeID)
	assert.Equal(t, domain.Range24h, env.Data.Range)
	assert.Equal(t, mockStore.Points["nas"], env.Data.Points)

	// case 2: range defaults to 1h and node to the first known node
	rr, env = getMetrics(t, h, "/api/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.Range1h, env.Data.Range)
	assert.Equal(t, "nas", env.Data.NodeID)

	// case 3: unknown node is an empty series, not an error
	rr, env = getMetrics(t, h, "/api/metrics?node=ghost")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.Success)
	assert.NotNil(t, env.Data.Points)
	assert.Empty(t, env.Data.Points)
	assert.Contains(t, rr.Body.String(), `"points":[]`)

	// case 4: invalid range
	rr, env = getMetrics(t, h, "/api/metrics?range=2h")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, env.Success)
	assert.Equal(t, INVALID_RANGE, env.ErrorCode)
	assert.Contains(t, env.Error, domain.ErrInvalidRange.Error())

	// case 5: wrong method
	req := httptest.NewRequest(http.MethodPost, "/api/metrics", nil)
	rr = httptest.NewRecorder()
	h.GetMetricsHandler(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, METHOD_NOT_ALLOWED, env.ErrorCode)
}

func TestGetMetricsHandler_DefaultNodeWhenEmpty(t *testing.T) {
	mockStore := &MockMetricStore{Points: map[string][]domain.Point{}}
	h := newHandler(mockStore)

	rr, env := getMetrics(t, h, "/api/metrics?range=7d")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pve", env.Data.NodeID)
	assert.Empty(t, env.Data.Points)
	assert.Equal(t, []string{"pve"}, mockStore.Queried)
}

func TestGetMetricsHandler_StoreErrors(t *testing.T) {
	// case 1: cancelled request
	h := newHandler(&MockMetricStore{Err: context.Canceled})
	rr, env := getMetrics(t, h, "/api/metrics?node=pve")
	assert.Equal(t, http.StatusRequestTimeout, rr.Code)
	assert.False(t, env.Success)
	assert.Equal(t, REQUEST_CANCELLED, env.ErrorCode)
	assert.Contains(t, env.Error, ErrRequestCancelled.Error())

	// case 2: storage fault
	h = newHandler(&MockMetricStore{Err: errors.New("disk I/O error")})
	rr, env = getMetrics(t, h, "/api/metrics?node=pve")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, API_FAILURE, env.ErrorCode)
	assert.Contains(t, env.Error, "disk I/O error")

	// case 3: storage fault while resolving the default node
	rr, _ = getMetrics(t, h, "/api/metrics")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGetMetricsHandler_UnencodablePoints(t *testing.T) {
	h := newHandler(&MockMetricStore{
		Points: map[string][]domain.Point{
			"pve": {{Timestamp: 1000, CPUPercent: math.Inf(1), RAMPercent: 10}},
		},
	})

	rr, env := getMetrics(t, h, "/api/metrics?node=pve")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, rr.Body.Bytes())
	assert.False(t, env.Success)
	assert.Equal(t, API_FAILURE, env.ErrorCode)
	assert.Contains(t, env.Error, "error encoding response")
	assert.NotZero(t, env.Timestamp)
}

func TestListNodesHandler(t *testing.T) {
	h := newHandler(&MockMetricStore{Points: map[string][]domain.Point{"pve": nil, "nas": nil}})

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/nodes", nil)
	rr := httptest.NewRecorder()
	h.ListNodesHandler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var env struct {
		Success bool      `json:"success"`
		Data    NodesData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.ElementsMatch(t, []string{"pve", "nas"}, env.Data.Nodes)
}

func TestRecordSampleHandler(t *testing.T) {
	mockStore := &MockMetricStore{}
	h := newHandler(mockStore)

	post := func(body string) (*httptest.ResponseRecorder, APIResponse) {
		req := httptest.NewRequest(http.MethodPost, "/api/metrics/samples", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		h.RecordSampleHandler(rr, req)

		var res APIResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		return rr, res
	}

	// case 1: valid sample
	rr, res := post(`{"nodeId":"pve","cpuPercent":12.5,"ramPercent":40}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, res.Status)
	assert.Equal(t, []domain.Sample{{NodeID: "pve", CPUPercent: 12.5, RAMPercent: 40}}, mockStore.Recorded)

	// case 2: zero is a valid reading
	rr, _ = post(`{"nodeId":"pve","cpuPercent":0,"ramPercent":0}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)

	// case 3: malformed JSON
	rr, res = post(`not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, INVALID_REQUEST_BODY, res.ErrorCode)

	// case 4: missing percentage
	rr, res = post(`{"nodeId":"pve","cpuPercent":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, INVALID_REQUEST_BODY, res.ErrorCode)

	// case 5: empty node id
	rr, res = post(`{"nodeId":"","cpuPercent":1,"ramPercent":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, INVALID_SAMPLE, res.ErrorCode)
	assert.Contains(t, res.Error, domain.ErrEmptyNodeID.Error())

	assert.Len(t, mockStore.Recorded, 2)

	// case 6: wrong method
	req := httptest.NewRequest(http.MethodGet, "/api/metrics/samples", nil)
	rr = httptest.NewRecorder()
	h.RecordSampleHandler(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	// case 7: storage fault
	mockStore.Err = errors.New("database is locked")
	rr, res = post(`{"nodeId":"pve","cpuPercent":1,"ramPercent":1}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, API_FAILURE, res.ErrorCode)
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, API_SUCCESS, GetErrorCode(nil))
	assert.Equal(t, INVALID_RANGE, GetErrorCode(domain.ErrInvalidRange))
	assert.Equal(t, INVALID_SAMPLE, GetErrorCode(domain.ErrNonFiniteValue))
	assert.Equal(t, REQUEST_CANCELLED, GetErrorCode(context.DeadlineExceeded))
	assert.Equal(t, API_FAILURE, GetErrorCode(errors.New("other")))
}
