package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-runner/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshotProvider provides current pool stats snapshots. Both
// core.Pool and core.TrackingPool (and crawl.Orchestrator, via its
// Stats passthrough) satisfy this.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically copies PoolSnapshotProvider.Stats() into
// Prometheus gauges, for pools whose own queue-depth/active-count
// reporting isn't driven by the hot path (core.Metrics is; a snapshot
// poll additionally catches state that only changes on shutdown, like
// CancelledAtShutdown).
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	poolQueued              *prom.GaugeVec
	poolActive              *prom.GaugeVec
	poolWorkers             *prom.GaugeVec
	poolRejected            *prom.GaugeVec
	poolCancelledAtShutdown *prom.GaugeVec
	poolState               *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	poolQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cancelwork",
		Name:      "pool_queued",
		Help:      "Queued tasks per pool.",
	}, []string{"pool"})
	poolActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cancelwork",
		Name:      "pool_active",
		Help:      "Actively running tasks per pool.",
	}, []string{"pool"})
	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cancelwork",
		Name:      "pool_workers",
		Help:      "Worker count per pool.",
	}, []string{"pool"})
	poolRejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cancelwork",
		Name:      "pool_rejected_total",
		Help:      "Rejected submission count snapshot per pool.",
	}, []string{"pool"})
	poolCancelledAtShutdown := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cancelwork",
		Name:      "pool_cancelled_at_shutdown_total",
		Help:      "Cancelled-at-shutdown count snapshot per pool.",
	}, []string{"pool"})
	poolState := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "cancelwork",
		Name:      "pool_state",
		Help:      "Pool lifecycle state (0=running, 1=draining, 2=stopping, 3=terminated).",
	}, []string{"pool"})

	var err error
	if poolQueued, err = registerCollector(reg, poolQueued); err != nil {
		return nil, err
	}
	if poolActive, err = registerCollector(reg, poolActive); err != nil {
		return nil, err
	}
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolRejected, err = registerCollector(reg, poolRejected); err != nil {
		return nil, err
	}
	if poolCancelledAtShutdown, err = registerCollector(reg, poolCancelledAtShutdown); err != nil {
		return nil, err
	}
	if poolState, err = registerCollector(reg, poolState); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:                interval,
		pools:                   make(map[string]PoolSnapshotProvider),
		poolQueued:              poolQueued,
		poolActive:              poolActive,
		poolWorkers:             poolWorkers,
		poolRejected:            poolRejected,
		poolCancelledAtShutdown: poolCancelledAtShutdown,
		poolState:               poolState,
	}, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

var poolStateLabel = map[string]float64{
	"running":    0,
	"draining":   1,
	"stopping":   2,
	"terminated": 3,
}

func (p *SnapshotPoller) collectOnce() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.poolCancelledAtShutdown.WithLabelValues(name).Set(float64(stats.CancelledAtShutdown))
		p.poolState.WithLabelValues(name).Set(poolStateLabel[stats.State])
	}
}
