package pool

import (
	"context"
	"time"
)

// Monitor periodically prunes dead servers from a pool.
type Monitor struct {
	pool     *Pool
	interval time.Duration
	stopCh   chan struct{}
}

func NewMonitor(p *Pool, interval time.Duration) *Monitor {
	return &Monitor{
		pool:     p,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	go m.loop(ctx)
}

func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.pool.Prune()
		}
	}
}
