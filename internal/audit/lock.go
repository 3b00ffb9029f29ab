package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/platform/cache"
)

// LockRepositoryPort answers the underlying lock query.
type LockRepositoryPort interface {
	MonthHasLockingReport(ctx context.Context, tenantID uuid.UUID, month, year int) (bool, error)
}

// LockService is the authority for "is this period locked" questions. A
// period is locked once any monthly report for it reaches Approved,
// Submitted or Archived status.
type LockService struct {
	repo      LockRepositoryPort
	cache     *cache.Cache
	logger    *slog.Logger
	lockedTTL time.Duration
	openTTL   time.Duration
}

// NewLockService constructs LockService. cache may be nil.
func NewLockService(repo LockRepositoryPort, c *cache.Cache, logger *slog.Logger) *LockService {
	return &LockService{
		repo:      repo,
		cache:     c,
		logger:    logger,
		lockedTTL: 10 * time.Minute,
		openTTL:   30 * time.Second,
	}
}

func lockKey(tenantID uuid.UUID, month, year int) string {
	return fmt.Sprintf("lock:%s:%04d-%02d", tenantID, year, month)
}

// IsMonthLocked reports whether the tenant's period is locked. Cache
// failures fall through to the store.
func (s *LockService) IsMonthLocked(ctx context.Context, tenantID uuid.UUID, month, year int) (bool, error) {
	key := lockKey(tenantID, month, year)
	var cached bool
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("lock cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	locked, err := s.repo.MonthHasLockingReport(ctx, tenantID, month, year)
	if err != nil {
		return false, err
	}
	ttl := s.openTTL
	if locked {
		ttl = s.lockedTTL
	}
	if err := s.cache.Set(ctx, key, locked, ttl); err != nil {
		s.logger.Warn("lock cache write failed", slog.String("key", key), slog.Any("error", err))
	}
	return locked, nil
}

// InvalidateMonth drops the cached lock state after a workflow transition.
func (s *LockService) InvalidateMonth(ctx context.Context, tenantID uuid.UUID, month, year int) {
	if err := s.cache.Delete(ctx, lockKey(tenantID, month, year)); err != nil {
		s.logger.Warn("lock cache invalidate failed", slog.Any("error", err))
	}
}
