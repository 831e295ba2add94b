package domain

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	// ThrottleWindow is the minimum spacing between two accepted samples of one node.
	ThrottleWindow = 25 * time.Second

	// RetentionHorizon is the age after which samples are swept.
	RetentionHorizon = 7 * 24 * time.Hour

	// CleanupInterval is the period of the retention sweep.
	CleanupInterval = 6 * time.Hour
)

var (
	ErrInvalidRange   = errors.New("invalid range, use one of: 1h, 6h, 24h, 7d")
	ErrEmptyNodeID    = errors.New("node id is empty")
	ErrNonFiniteValue = errors.New("cpu and ram percentages must be finite numbers")
)

// Sample is one recorded utilization observation of a node.
type Sample struct {
	NodeID     string  `json:"node_id"`
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float64 `json:"ram_percent"`
	Timestamp  int64   `json:"timestamp"`
}

// Point is a chartable sample as returned by a query.
type Point struct {
	Timestamp  int64   `json:"timestamp"`
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float64 `json:"ram_percent"`
}

type Range string

const (
	Range1h  Range = "1h"
	Range6h  Range = "6h"
	Range24h Range = "24h"
	Range7d  Range = "7d"
)

var Ranges = []Range{Range1h, Range6h, Range24h, Range7d}

func ParseRange(s string) (Range, error) {
	for _, r := range Ranges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", ErrInvalidRange
}

// Duration returns the lookback window of the range. Unknown ranges fall back to 1h.
func (r Range) Duration() time.Duration {
	switch r {
	case Range6h:
		return 6 * time.Hour
	case Range24h:
		return 24 * time.Hour
	case Range7d:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// TargetPoints returns the maximum number of points a query over r yields.
func (r Range) TargetPoints() int {
	switch r {
	case Range24h:
		return 144 // ~10min
	case Range7d:
		return 168 // ~1h
	default:
		return 120 // 1h: ~30s, 6h: ~3min
	}
}

// ValidateSample checks values at the ingest boundary. The store itself
// accepts anything it is handed.
func ValidateSample(nodeID string, cpuPercent, ramPercent float64) error {
	if nodeID == "" {
		return ErrEmptyNodeID
	}
	if !isFinite(cpuPercent) || !isFinite(ramPercent) {
		return ErrNonFiniteValue
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// NodeStats summarizes what is stored for a single node.
type NodeStats struct {
	NodeID string `json:"node_id"`
	Count  int64  `json:"count"`
	Oldest int64  `json:"oldest"`
	Newest int64  `json:"newest"`
}

type MetricStore interface {
	// Record stores a sample stamped with the current time unless the node
	// recorded one less than ThrottleWindow ago.
	Record(ctx context.Context, nodeID string, cpuPercent, ramPercent float64) error

	// Query returns the node's samples within r, ascending and downsampled
	// to at most r.TargetPoints().
	Query(ctx context.Context, nodeID string, r Range) ([]Point, error)

	ListNodeIDs(ctx context.Context) ([]string, error)

	// Cleanup deletes samples older than RetentionHorizon.
	Cleanup(ctx context.Context) (int64, error)

	Start()
	Stop()
	Close() error
}
