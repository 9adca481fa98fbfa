package listingsearch

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
)

// Monitor watches the dataset file and retrains in the background when it
// changes. Retrain jobs run on a single-worker non-blocking pool, so a tick
// arriving while a training run is still in flight is skipped rather than
// queued up.
type Monitor struct {
	svc      *Service
	interval time.Duration
	pool     *ants.Pool
	logger   *Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor for the service. interval must be positive.
func NewMonitor(svc *Service, interval time.Duration) (*Monitor, error) {
	if interval <= 0 {
		return nil, errors.New("monitor interval must be positive")
	}

	pool, err := ants.NewPool(1, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &Monitor{
		svc:      svc,
		interval: interval,
		pool:     pool,
		logger:   svc.logger.WithComponent("monitor"),
	}, nil
}

// Start launches the watch loop. Call Stop to shut it down.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx)
	m.logger.Info("dataset monitor started", "interval", m.interval)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *Monitor) check() {
	if !m.svc.HasChanged() {
		return
	}

	m.logger.Info("dataset change detected, scheduling retrain")

	err := m.pool.Submit(func() {
		if err := m.svc.store.Load(); err != nil {
			m.logger.Error("dataset reload failed", "error", err)
			return
		}
		// Deliberately not the watch-loop context: a retrain that already
		// started should finish even when Stop is called.
		if err := m.svc.Train(context.Background()); err != nil {
			m.logger.Error("background retrain failed", "error", err)
			return
		}
		m.logger.Info("background retrain complete")
	})
	if errors.Is(err, ants.ErrPoolOverload) {
		m.logger.Info("retrain already in flight, skipping tick")
	} else if err != nil {
		m.logger.Error("retrain submission failed", "error", err)
	}
}

// Stop shuts the monitor down, waiting for the watch loop to exit. A retrain
// already submitted to the pool is allowed to finish.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}

	m.cancel()
	<-m.done
	m.pool.Release()
	m.logger.Info("dataset monitor stopped")
}
