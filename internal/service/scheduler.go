package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/chatguard/internal/biz"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/metrics"
)

// MaintenanceScheduler runs the periodic vault sweep and spam state pruning
type MaintenanceScheduler struct {
	uc      *biz.Usecases
	clock   domain.Clock
	log     *zap.Logger
	metrics *metrics.Metrics

	sweepInterval time.Duration
	maxAge        time.Duration
	pruneInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMaintenanceScheduler creates a new maintenance scheduler
func NewMaintenanceScheduler(
	uc *biz.Usecases,
	clock domain.Clock,
	sweepInterval, maxAge time.Duration,
	log *zap.Logger,
	m *metrics.Metrics,
) *MaintenanceScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &MaintenanceScheduler{
		uc:            uc,
		clock:         clock,
		log:           log.Named("scheduler"),
		metrics:       m,
		sweepInterval: sweepInterval,
		maxAge:        maxAge,
		pruneInterval: time.Minute,
	}
}

// Start starts the scheduler loops
func (s *MaintenanceScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.loop(s.sweepInterval, s.SweepVault)
	go s.loop(s.pruneInterval, s.PruneSpam)

	s.log.Info("Scheduler started",
		zap.Duration("sweep_interval", s.sweepInterval),
		zap.Duration("max_age", s.maxAge),
	)
}

// Stop stops the scheduler
func (s *MaintenanceScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

func (s *MaintenanceScheduler) loop(interval time.Duration, tick func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

// SweepVault removes captured media older than the max age
func (s *MaintenanceScheduler) SweepVault() {
	removed, err := s.uc.Vault.Sweep(s.maxAge)
	if err != nil {
		s.log.Warn("Vault sweep incomplete", zap.Error(err))
	}
	s.metrics.VaultSwept.Add(float64(len(removed)))
	s.metrics.VaultEntries.Set(float64(s.uc.Vault.Len()))
	if len(removed) > 0 {
		s.log.Info("Swept captured media", zap.Int("removed", len(removed)), zap.Int("remaining", s.uc.Vault.Len()))
	}
}

// PruneSpam forgets senders whose spam window has lapsed
func (s *MaintenanceScheduler) PruneSpam() {
	if n := s.uc.Spam.Prune(s.clock.Now()); n > 0 {
		s.log.Debug("Pruned idle spam windows", zap.Int("pruned", n))
	}
}
