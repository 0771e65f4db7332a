package grants

import (
	"context"
	"errors"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// CleanupService deletes expired grants and device authorizations on a fixed interval.
type CleanupService struct {
	removers []domain.ExpiredRemover
	interval time.Duration
	clock    domain.Clock
	logger   *zap.Logger
}

func NewCleanupService(interval time.Duration, clock domain.Clock, logger *zap.Logger, removers ...domain.ExpiredRemover) *CleanupService {
	return &CleanupService{
		removers: removers,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Run removes expired records every interval until ctx is done
func (s *CleanupService) Run(ctx context.Context) {
	if len(s.removers) == 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RemoveExpired(ctx); err != nil {
				s.logger.Error("Expired grant cleanup failed", zap.Error(err))
			}
		}
	}
}

// RemoveExpired runs one pass over every store. A failing store does not stop the others.
func (s *CleanupService) RemoveExpired(ctx context.Context) error {
	now := s.clock.Now()
	var (
		total int64
		errs  []error
	)
	for _, remover := range s.removers {
		removed, err := remover.RemoveExpired(ctx, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += removed
	}
	if total > 0 {
		s.logger.Info("Removed expired grants", zap.Int64("count", total))
	}
	return errors.Join(errs...)
}
