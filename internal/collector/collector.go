// Package collector feeds node utilization into the metrics store once per
// polling cycle.
package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"homelab-metrics/internal/domain"
)

// NodeUsage is one node's utilization as reported by an upstream source.
type NodeUsage struct {
	NodeID      string
	Online      bool
	CPUFraction float64 // 0..1
	MemUsed     uint64
	MemTotal    uint64
}

// Percentages converts the raw usage into the values the store records.
func (u NodeUsage) Percentages() (cpuPercent, ramPercent float64) {
	cpuPercent = u.CPUFraction * 100
	if u.MemTotal > 0 {
		ramPercent = float64(u.MemUsed) / float64(u.MemTotal) * 100
	}
	return cpuPercent, ramPercent
}

// Source reports the current utilization of one or more nodes.
type Source interface {
	Collect(ctx context.Context) ([]NodeUsage, error)
}

// Recorder is the write side of the metrics store.
type Recorder interface {
	Record(ctx context.Context, nodeID string, cpuPercent, ramPercent float64) error
}

type Poller struct {
	source   Source
	recorder Recorder
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPoller(source Source, recorder Recorder, interval time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source:   source,
		recorder: recorder,
		interval: interval,
		logger:   logger,
	}
}

// Poll runs one cycle and returns how many nodes were handed to the store.
// Offline nodes and nodes without a memory total are skipped.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	usages, err := p.source.Collect(ctx)
	if err != nil {
		return 0, err
	}

	recorded := 0
	for _, u := range usages {
		if !u.Online || u.MemTotal == 0 {
			p.logger.Debug("skipping node", zap.String("node", u.NodeID), zap.Bool("online", u.Online))
			continue
		}

		cpu, ram := u.Percentages()
		if err := domain.ValidateSample(u.NodeID, cpu, ram); err != nil {
			p.logger.Warn("dropping invalid sample", zap.String("node", u.NodeID), zap.Error(err))
			continue
		}
		if err := p.recorder.Record(ctx, u.NodeID, cpu, ram); err != nil {
			return recorded, err
		}
		recorded++
	}
	return recorded, nil
}

// Start polls immediately and then on every interval until Stop.
func (p *Poller) Start() {
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.logger.Info("start polling node utilization", zap.Duration("interval", p.interval))
		for {
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("failed to poll node utilization", zap.Error(err))
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.logger.Info("stopping poller")
	p.cancel()
	p.wg.Wait()
	p.cancel = nil
}
