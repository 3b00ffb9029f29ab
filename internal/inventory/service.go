package inventory

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	ListUnits(ctx context.Context, tenantID uuid.UUID) ([]Unit, error)
	ActiveUnits(ctx context.Context, tenantID uuid.UUID) ([]Unit, error)
	InsertSnapshot(ctx context.Context, snapshot Snapshot) error
}

// Service derives and persists inventory snapshots.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// BuildSnapshotRows reconstructs balance rows as of a point in time
// without persisting them.
func (s *Service) BuildSnapshotRows(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]SnapshotRow, error) {
	units, err := s.repo.ListUnits(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return ReconstructRows(units, asOf), nil
}

// TakeSnapshot reconstructs rows as of asOf and stores them as a new snapshot.
func (s *Service) TakeSnapshot(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (Snapshot, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	rows, err := s.BuildSnapshotRows(ctx, tenantID, asOf)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot := Snapshot{TenantID: tenantID, TakenAt: asOf, Rows: rows}
	if err := s.repo.InsertSnapshot(ctx, snapshot); err != nil {
		return Snapshot{}, err
	}
	s.logger.Info("inventory snapshot taken",
		slog.String("tenant", tenantID.String()),
		slog.Time("as_of", asOf),
		slog.Int("rows", len(rows)))
	return snapshot, nil
}

// SpotCount aggregates live active units by warehouse.
func (s *Service) SpotCount(ctx context.Context, tenantID uuid.UUID) ([]WarehouseBalance, error) {
	units, err := s.repo.ActiveUnits(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return WarehouseBalances(units), nil
}
