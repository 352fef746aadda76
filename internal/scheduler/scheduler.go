// Package scheduler периодически запускает закрытие просроченных запросов котировок.
package scheduler

import (
	"context"
	"time"

	"github.com/senyabanana/procurement-service/internal/services"

	"go.uber.org/zap"
)

// Sweeper - точка входа закрытия по сроку.
type Sweeper interface {
	CloseExpiredSweep(ctx context.Context, now time.Time) (services.SweepResult, error)
}

// Scheduler вызывает Sweeper сразу после запуска и затем каждые Interval.
// Следующий проход не начинается, пока не завершился предыдущий.
type Scheduler struct {
	Sweeper  Sweeper
	Interval time.Duration
	Now      func() time.Time
	logger   *zap.Logger
}

// NewScheduler создает новый экземпляр Scheduler.
func NewScheduler(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Sweeper:  sweeper,
		Interval: interval,
		Now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(zap.String("service", "scheduler")),
	}
}

// Run блокируется до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweep scheduled", zap.Duration("interval", s.Interval))
	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweep stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Sweeper.CloseExpiredSweep(ctx, s.Now()); err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
	}
}
