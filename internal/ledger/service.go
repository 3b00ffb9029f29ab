package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/audit"
	"github.com/barrelbook/barrelbook/internal/gauge"
	"github.com/barrelbook/barrelbook/internal/inventory"
)

// RepositoryPort abstracts transaction persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, t Transaction) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (Transaction, error)
	Update(ctx context.Context, t Transaction) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// UnitSource provides inventory unit lookups.
type UnitSource interface {
	ActiveUnitsByBatch(ctx context.Context, tenantID, batchID uuid.UUID) ([]inventory.Unit, error)
	UnitByID(ctx context.Context, tenantID, unitID uuid.UUID) (inventory.Unit, error)
}

// LockChecker answers whether a period is locked.
type LockChecker interface {
	IsMonthLocked(ctx context.Context, tenantID uuid.UUID, month, year int) (bool, error)
}

// AuditPort records changes to manual entries.
type AuditPort interface {
	LogChange(ctx context.Context, change audit.Change)
}

// MetricsPort counts lock-guard rejections.
type MetricsPort interface {
	LockedPeriodRejected()
}

// Service writes ledger events and guards manual entry mutations.
type Service struct {
	repo    RepositoryPort
	units   UnitSource
	locks   LockChecker
	audit   AuditPort
	metrics MetricsPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, units UnitSource, locks LockChecker, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, units: units, locks: locks, audit: auditor, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches rejection counters.
func (s *Service) WithMetrics(m MetricsPort) {
	if m != nil {
		s.metrics = m
	}
}

// LogProduction records a Production transaction for a completed batch
// from its active inventory units. Wine gallons are the summed unit fill
// volumes; proof gallons follow from the lot entry proof.
func (s *Service) LogProduction(ctx context.Context, tenantID, batchID uuid.UUID, completedAt time.Time) (Transaction, error) {
	units, err := s.units.ActiveUnitsByBatch(ctx, tenantID, batchID)
	if err != nil {
		return Transaction{}, err
	}
	if len(units) == 0 {
		return Transaction{}, fmt.Errorf("%w for batch %s", inventory.ErrNoUnits, batchID)
	}

	var wineGallons, proofSum float64
	for _, unit := range units {
		wineGallons += unit.VolumeWG
		proofSum += unit.EntryProof
	}
	entryProof := proofSum / float64(len(units))
	if !gauge.ValidProof(entryProof) {
		return Transaction{}, gauge.ErrInvalidProof
	}
	wineGallons = gauge.Round2(wineGallons)

	t := Transaction{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Date:         completedAt,
		Type:         TypeProduction,
		Product:      units[0].Product,
		SpiritsClass: units[0].SpiritsClass,
		TaxStatus:    units[0].TaxStatus,
		ProofGallons: gauge.ProofGallons(wineGallons, entryProof),
		WineGallons:  wineGallons,
		SourceKind:   SourceBatch,
		SourceID:     batchID,
	}
	if err := s.repo.Insert(ctx, t); err != nil {
		return Transaction{}, err
	}
	s.logger.Info("production logged",
		slog.String("tenant", tenantID.String()),
		slog.String("batch", batchID.String()),
		slog.Float64("proof_gallons", t.ProofGallons))
	return t, nil
}

// LogLoss records a Loss transaction against an inventory unit. Wine
// gallons are derived from the stated proof gallons via the inverse
// conversion at the unit's lot entry proof.
func (s *Service) LogLoss(ctx context.Context, tenantID, unitID uuid.UUID, proofGallons float64, reason string) (Transaction, error) {
	if proofGallons < 0 {
		return Transaction{}, ErrNegativeGallons
	}
	unit, err := s.units.UnitByID(ctx, tenantID, unitID)
	if err != nil {
		return Transaction{}, err
	}
	if !gauge.ValidProof(unit.EntryProof) {
		return Transaction{}, gauge.ErrInvalidProof
	}

	t := Transaction{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Date:         s.now(),
		Type:         TypeLoss,
		Product:      unit.Product,
		SpiritsClass: unit.SpiritsClass,
		TaxStatus:    unit.TaxStatus,
		ProofGallons: gauge.Round2(proofGallons),
		WineGallons:  gauge.WineGallons(proofGallons, unit.EntryProof),
		SourceKind:   SourceUnit,
		SourceID:     unitID,
		Notes:        reason,
	}
	if err := s.repo.Insert(ctx, t); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// CreateManual writes an operator-entered transaction, subject to the
// period lock of its transaction month.
func (s *Service) CreateManual(ctx context.Context, tenantID uuid.UUID, in ManualEntryInput) (Transaction, error) {
	if err := in.Validate(); err != nil {
		return Transaction{}, err
	}
	if err := s.ensureUnlocked(ctx, tenantID, in.Date); err != nil {
		return Transaction{}, err
	}

	t := Transaction{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Date:         in.Date,
		Type:         in.Type,
		Product:      in.Product,
		SpiritsClass: in.SpiritsClass,
		TaxStatus:    in.TaxStatus,
		ProofGallons: gauge.Round2(in.ProofGallons),
		WineGallons:  gauge.Round2(in.WineGallons),
		SourceKind:   SourceManual,
		Notes:        in.Notes,
		CreatedBy:    in.ActorID,
	}
	if err := s.repo.Insert(ctx, t); err != nil {
		return Transaction{}, err
	}
	s.audit.LogChange(ctx, audit.Change{
		TenantID:   tenantID,
		EntityType: "compliance_transaction",
		EntityID:   t.ID.String(),
		Action:     audit.ActionCreate,
		New:        t,
		ActorID:    in.ActorID,
	})
	return t, nil
}

// UpdateManual rewrites a manual transaction. System-generated entries
// are immutable regardless of lock state.
func (s *Service) UpdateManual(ctx context.Context, tenantID, id uuid.UUID, in ManualEntryInput) (Transaction, error) {
	if err := in.Validate(); err != nil {
		return Transaction{}, err
	}
	existing, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return Transaction{}, err
	}
	if !existing.Manual() {
		return Transaction{}, ErrImmutable
	}
	if err := s.ensureUnlocked(ctx, tenantID, existing.Date); err != nil {
		return Transaction{}, err
	}
	if !sameMonth(existing.Date, in.Date) {
		if err := s.ensureUnlocked(ctx, tenantID, in.Date); err != nil {
			return Transaction{}, err
		}
	}

	updated := existing
	updated.Date = in.Date
	updated.Type = in.Type
	updated.Product = in.Product
	updated.SpiritsClass = in.SpiritsClass
	updated.TaxStatus = in.TaxStatus
	updated.ProofGallons = gauge.Round2(in.ProofGallons)
	updated.WineGallons = gauge.Round2(in.WineGallons)
	updated.Notes = in.Notes
	if err := s.repo.Update(ctx, updated); err != nil {
		return Transaction{}, err
	}
	s.audit.LogChange(ctx, audit.Change{
		TenantID:   tenantID,
		EntityType: "compliance_transaction",
		EntityID:   id.String(),
		Action:     audit.ActionUpdate,
		Old:        existing,
		New:        updated,
		ActorID:    in.ActorID,
	})
	return updated, nil
}

// DeleteManual removes a manual transaction under the same guards as update.
func (s *Service) DeleteManual(ctx context.Context, tenantID, id uuid.UUID, actorID int64) error {
	existing, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !existing.Manual() {
		return ErrImmutable
	}
	if err := s.ensureUnlocked(ctx, tenantID, existing.Date); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.audit.LogChange(ctx, audit.Change{
		TenantID:   tenantID,
		EntityType: "compliance_transaction",
		EntityID:   id.String(),
		Action:     audit.ActionDelete,
		Old:        existing,
		ActorID:    actorID,
	})
	return nil
}

func (s *Service) ensureUnlocked(ctx context.Context, tenantID uuid.UUID, date time.Time) error {
	locked, err := s.locks.IsMonthLocked(ctx, tenantID, int(date.Month()), date.Year())
	if err != nil {
		return err
	}
	if locked {
		if s.metrics != nil {
			s.metrics.LockedPeriodRejected()
		}
		return fmt.Errorf("%w: %s", ErrPeriodLocked, date.Format("2006-01"))
	}
	return nil
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
