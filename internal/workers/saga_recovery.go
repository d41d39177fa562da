package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// SagaRecoverer is the transfer engine's recovery surface.
type SagaRecoverer interface {
	RecoverStuck(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// SagaRecovery periodically sweeps sagas stranded in their debited state by
// a crash between legs and drives each to a terminal state.
type SagaRecovery struct {
	recoverer      SagaRecoverer
	interval       time.Duration
	stuckThreshold time.Duration
	batchSize      int
	logger         *slog.Logger
	busy           atomic.Bool
}

// NewSagaRecovery wires a recovery loop, defaulting unset parameters.
func NewSagaRecovery(
	recoverer SagaRecoverer,
	interval time.Duration,
	stuckThreshold time.Duration,
	batchSize int,
	logger *slog.Logger,
) *SagaRecovery {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if stuckThreshold <= 0 {
		stuckThreshold = 60 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SagaRecovery{
		recoverer:      recoverer,
		interval:       interval,
		stuckThreshold: stuckThreshold,
		batchSize:      batchSize,
		logger:         logger,
	}
}

// Run ticks until ctx is cancelled.
func (s *SagaRecovery) Run(ctx context.Context) {
	s.logger.InfoContext(ctx, "saga recovery started",
		"interval", s.interval, "stuck_threshold", s.stuckThreshold)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "saga recovery stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *SagaRecovery) tick(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		return
	}
	defer s.busy.Store(false)

	cutoff := time.Now().UTC().Add(-s.stuckThreshold)
	recovered, err := s.recoverer.RecoverStuck(ctx, cutoff, s.batchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "saga recovery sweep failed", "error", err)
		return
	}
	if recovered > 0 {
		s.logger.InfoContext(ctx, "recovered stranded sagas", "count", recovered)
	}
}
