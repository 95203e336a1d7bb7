// Package scheduler drives periodic reconciliation runs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"prolead/internal/recon"
	"prolead/pkg/logger"
)

// Runner is the reconciliation entrypoint the scheduler ticks.
type Runner interface {
	RunBatch(ctx context.Context) *recon.RunSummary
}

type Scheduler struct {
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	logger   logger.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewScheduler(runner Runner, interval, timeout time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		timeout:  timeout,
		logger:   log,
	}
}

// Start begins ticking. The first run fires after one full interval so a
// restart loop cannot hammer the bank feed.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop()
	s.logger.Info("Reconciliation scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})
}

// Stop halts the ticker and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("Reconciliation scheduler stopped", nil)
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary := s.runner.RunBatch(ctx)
	if summary.Failed > 0 || summary.Error != "" {
		s.logger.Warn("Scheduled reconciliation run had failures", map[string]interface{}{
			"processed": summary.Processed,
			"failed":    summary.Failed,
			"error":     summary.Error,
		})
	}
}
