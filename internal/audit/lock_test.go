package audit

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/barrelbook/barrelbook/internal/platform/cache"
)

type fakeLockRepo struct {
	locked map[string]bool
	calls  int
}

func (f *fakeLockRepo) MonthHasLockingReport(_ context.Context, tenantID uuid.UUID, month, year int) (bool, error) {
	f.calls++
	return f.locked[lockKey(tenantID, month, year)], nil
}

func newLockFixture(t *testing.T) (*LockService, *fakeLockRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := &fakeLockRepo{locked: make(map[string]bool)}
	return NewLockService(repo, cache.New(client), slog.Default()), repo
}

func TestIsMonthLockedCachesResult(t *testing.T) {
	svc, repo := newLockFixture(t)
	tenantID := uuid.New()
	repo.locked[lockKey(tenantID, 7, 2024)] = true

	locked, err := svc.IsMonthLocked(context.Background(), tenantID, 7, 2024)
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, 1, repo.calls)

	// Second read is served from cache.
	locked, err = svc.IsMonthLocked(context.Background(), tenantID, 7, 2024)
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, 1, repo.calls)
}

func TestIsMonthLockedOpenPeriod(t *testing.T) {
	svc, repo := newLockFixture(t)
	tenantID := uuid.New()

	locked, err := svc.IsMonthLocked(context.Background(), tenantID, 6, 2024)
	require.NoError(t, err)
	require.False(t, locked)
	require.Equal(t, 1, repo.calls)
}

func TestInvalidateMonthForcesRefresh(t *testing.T) {
	svc, repo := newLockFixture(t)
	tenantID := uuid.New()

	locked, err := svc.IsMonthLocked(context.Background(), tenantID, 7, 2024)
	require.NoError(t, err)
	require.False(t, locked)

	// Report gets approved, cache still says open until invalidated.
	repo.locked[lockKey(tenantID, 7, 2024)] = true
	svc.InvalidateMonth(context.Background(), tenantID, 7, 2024)

	locked, err = svc.IsMonthLocked(context.Background(), tenantID, 7, 2024)
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, 2, repo.calls)
}

func TestIsMonthLockedWithoutCache(t *testing.T) {
	repo := &fakeLockRepo{locked: make(map[string]bool)}
	svc := NewLockService(repo, nil, slog.Default())
	tenantID := uuid.New()
	repo.locked[lockKey(tenantID, 7, 2024)] = true

	locked, err := svc.IsMonthLocked(context.Background(), tenantID, 7, 2024)
	require.NoError(t, err)
	require.True(t, locked)
}
