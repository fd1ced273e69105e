package auction

import (
	"context"
	"log/slog"
	"time"
)

const sweepPassTimeout = 30 * time.Second

// Sweeper drives AdvanceCascade on a fixed interval. Expiry is data
// (hold_until), not a live timer: nothing here schedules per-offer timers,
// effective expiry latency equals the sweep interval.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	shutdown chan struct{}
	done     chan struct{}
}

func NewSweeper(manager *Manager, interval time.Duration) *Sweeper {
	return &Sweeper{
		manager:  manager,
		interval: interval,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sweepPassTimeout)
			if err := s.manager.AdvanceCascade(ctx); err != nil {
				slog.Error("Reconciliation sweep pass failed",
					slog.String("type", "sys"),
					slog.Any("error", err))
			}
			cancel()
		case <-s.shutdown:
			return
		}
	}
}

// Shutdown stops the sweep loop and waits for an in-flight pass to finish.
func (s *Sweeper) Shutdown() {
	close(s.shutdown)
	<-s.done
	slog.Info("Sweep scheduler shutdown completed")
}
