package blob

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically reclaims dead blobs. It runs until its context is
// canceled.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(service *Service, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{service: service, interval: interval, logger: logger}
}

// Run blocks, sweeping on every tick. Intended to be launched as a goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("blob sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("blob sweeper stopped")
			return
		case <-ticker.C:
			swept, err := s.service.SweepStale(ctx)
			if err != nil {
				s.logger.Error("blob sweep failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				s.logger.Info("blob sweep complete", zap.Int("swept", swept))
			}
		}
	}
}
