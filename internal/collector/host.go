package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostSource reports the machine it runs on as a single node.
type HostSource struct {
	nodeID string

	cpuPercent    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewHostSource returns a source for the local machine. An empty nodeID
// falls back to the hostname.
func NewHostSource(ctx context.Context, nodeID string) (*HostSource, error) {
	if nodeID == "" {
		info, err := host.InfoWithContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read host info: %w", err)
		}
		nodeID = info.Hostname
	}

	return &HostSource{
		nodeID:        nodeID,
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
	}, nil
}

func (h *HostSource) NodeID() string {
	return h.nodeID
}

func (h *HostSource) Collect(ctx context.Context) ([]NodeUsage, error) {
	// interval 0 compares against the previous call
	usages, err := h.cpuPercent(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(usages) == 0 {
		return nil, fmt.Errorf("failed to read cpu usage: no data")
	}

	vm, err := h.virtualMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory usage: %w", err)
	}

	return []NodeUsage{{
		NodeID:      h.nodeID,
		Online:      true,
		CPUFraction: usages[0] / 100,
		MemUsed:     vm.Used,
		MemTotal:    vm.Total,
	}}, nil
}
