package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"homelab-metrics/internal/domain"
	"homelab-metrics/internal/util"
)

// MetricsData is the payload of a history query.
type MetricsData struct {
	NodeID string         `json:"nodeId"`
	Range  domain.Range   `json:"range"`
	Points []domain.Point `json:"points"`
}

type NodesData struct {
	Nodes []string `json:"nodes"`
}

// SampleRequest is the body of a remote ingest call. Percentages are
// pointers so that a missing field is told apart from zero.
type SampleRequest struct {
	NodeID     string   `json:"nodeId"`
	CPUPercent *float64 `json:"cpuPercent"`
	RAMPercent *float64 `json:"ramPercent"`
}

type Metrics struct {
	Response    APIResponse
	logger      *util.MetricsLogger
	store       domain.MetricStore
	defaultNode string
}

func (m *Metrics) Init(store domain.MetricStore, webSlogger *util.MetricsLogger, defaultNode string) {
	m.store = store
	m.logger = webSlogger
	m.defaultNode = defaultNode
}

// GetMetricsHandler serves GET /api/metrics?range=1h&node=pve.
func (m *Metrics) GetMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only GET requests are supported", http.StatusMethodNotAllowed)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()

	rangeStr := q.Get("range")
	if rangeStr == "" {
		rangeStr = string(domain.Range1h)
	}
	rng, err := domain.ParseRange(rangeStr)
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Invalid range -", rangeStr)
		m.Response.WriteErrorResponseWithStatusCode(w, err, http.StatusBadRequest)
		return
	}

	nodeID := q.Get("node")
	if nodeID == "" {
		nodeID, err = m.resolveDefaultNode(r.Context())
		if err != nil {
			m.writeStoreError(w, "ListNodeIDs()", err)
			return
		}
	}

	points, err := m.store.Query(r.Context(), nodeID, rng)
	if err != nil {
		m.writeStoreError(w, "Query()", err)
		return
	}
	if points == nil {
		points = []domain.Point{}
	}

	m.Response.WriteResultResponse(w, MetricsData{NodeID: nodeID, Range: rng, Points: points})
}

// resolveDefaultNode picks the first known node, or the configured default
// when nothing has been recorded yet.
func (m *Metrics) resolveDefaultNode(ctx context.Context) (string, error) {
	ids, err := m.store.ListNodeIDs(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) > 0 {
		return ids[0], nil
	}
	return m.defaultNode, nil
}

// ListNodesHandler serves GET /api/metrics/nodes.
func (m *Metrics) ListNodesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.Response.WriteErrorResponseWithStatusCode(w, ErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	ids, err := m.store.ListNodeIDs(r.Context())
	if err != nil {
		m.writeStoreError(w, "ListNodeIDs()", err)
		return
	}
	m.Response.WriteResultResponse(w, NodesData{Nodes: ids})
}

// RecordSampleHandler serves POST /api/metrics/samples for pollers running
// outside this process. Throttled samples are accepted without being stored.
func (m *Metrics) RecordSampleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.Response.WriteErrorResponseWithStatusCode(w, ErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	var req SampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while unmarshalling JSON Body. Err -", err)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}
	if req.CPUPercent == nil || req.RAMPercent == nil {
		m.Response.WriteErrorResponseWithStatusCode(w, fmt.Errorf("%w: cpuPercent and ramPercent are required", ErrInvalidRequestBody), http.StatusBadRequest)
		return
	}

	if err := domain.ValidateSample(req.NodeID, *req.CPUPercent, *req.RAMPercent); err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Rejected sample -", err)
		m.Response.WriteErrorResponseWithStatusCode(w, err, http.StatusBadRequest)
		return
	}

	if err := m.store.Record(r.Context(), req.NodeID, *req.CPUPercent, *req.RAMPercent); err != nil {
		m.writeStoreError(w, "Record()", err)
		return
	}
	m.Response.WriteResultResponseWithStatusCode(w, map[string]string{"nodeId": req.NodeID}, http.StatusAccepted)
}

func (m *Metrics) writeStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, context.Canceled) {
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Context cancelled during", op)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrRequestCancelled, http.StatusRequestTimeout)
		return
	}
	m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while", op, "Err -", err)
	m.Response.WriteErrorResponse(w, err)
}
