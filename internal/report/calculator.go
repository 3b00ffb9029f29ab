package report

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/gauge"
	"github.com/barrelbook/barrelbook/internal/inventory"
	"github.com/barrelbook/barrelbook/internal/ledger"
)

// SnapshotSource provides snapshot lookups.
type SnapshotSource interface {
	LatestSnapshotBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (inventory.Snapshot, bool, error)
	LatestSnapshotInRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (inventory.Snapshot, bool, error)
}

// TransactionSource provides ledger reads.
type TransactionSource interface {
	ListRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]ledger.Transaction, error)
	ListBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]ledger.Transaction, error)
}

// UnitSource provides live unit reads for the storage spot count.
type UnitSource interface {
	ActiveUnits(ctx context.Context, tenantID uuid.UUID) ([]inventory.Unit, error)
}

// MetricsPort counts calculation outcomes.
type MetricsPort interface {
	ReportCalculated(formType string)
	ReconciliationFailed(formType string)
}

const (
	formLabelInventory = "INVENTORY_FORM"
	formLabelStorage   = "STORAGE_FORM"
)

// Calculator reconciles snapshots with transactions into report aggregates.
type Calculator struct {
	snapshots SnapshotSource
	txs       TransactionSource
	units     UnitSource
	metrics   MetricsPort
	logger    *slog.Logger
}

// NewCalculator builds Calculator.
func NewCalculator(snapshots SnapshotSource, txs TransactionSource, units UnitSource, logger *slog.Logger) *Calculator {
	return &Calculator{snapshots: snapshots, txs: txs, units: units, logger: logger}
}

// WithMetrics attaches outcome counters.
func (c *Calculator) WithMetrics(m MetricsPort) {
	if m != nil {
		c.metrics = m
	}
}

func (c *Calculator) calculated(form string) {
	if c.metrics != nil {
		c.metrics.ReportCalculated(form)
	}
}

func (c *Calculator) reconciliationFailed(form string) {
	if c.metrics != nil {
		c.metrics.ReconciliationFailed(form)
	}
}

type lineKey struct {
	Product      string
	SpiritsClass inventory.SpiritsClass
}

type balance struct {
	pg float64
	wg float64
}

type balanceSet map[lineKey]balance

func (b balanceSet) add(key lineKey, pg, wg float64) {
	cur := b[key]
	cur.pg += pg
	cur.wg += wg
	b[key] = cur
}

func (b balanceSet) lines() []Line {
	lines := make([]Line, 0, len(b))
	for key, bal := range b {
		lines = append(lines, Line{
			Product:      key.Product,
			SpiritsClass: key.SpiritsClass,
			ProofGallons: gauge.Round2(bal.pg),
			WineGallons:  gauge.Round2(bal.wg),
		})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Product != lines[j].Product {
			return lines[i].Product < lines[j].Product
		}
		return lines[i].SpiritsClass < lines[j].SpiritsClass
	})
	return lines
}

func fromSnapshot(snapshot inventory.Snapshot) balanceSet {
	set := make(balanceSet)
	for _, row := range snapshot.Rows {
		set.add(lineKey{Product: row.Product, SpiritsClass: row.SpiritsClass}, row.ProofGallons, row.WineGallons)
	}
	return set
}

func applyTransaction(set balanceSet, t ledger.Transaction) {
	key := lineKey{Product: t.Product, SpiritsClass: t.SpiritsClass}
	if t.Type.Additive() {
		set.add(key, t.ProofGallons, t.WineGallons)
	} else {
		set.add(key, -t.ProofGallons, -t.WineGallons)
	}
}

// CalculateMonthly produces the inventory-form reconciliation for a
// tenant and month. A closing snapshot that disagrees with the algebraic
// closing beyond Epsilon aborts the calculation.
func (c *Calculator) CalculateMonthly(ctx context.Context, tenantID uuid.UUID, month, year int) (ReportData, error) {
	if err := ValidatePeriod(month, year); err != nil {
		return ReportData{}, err
	}
	start, end := PeriodBounds(month, year)

	opening, err := c.openingBalance(ctx, tenantID, start)
	if err != nil {
		return ReportData{}, err
	}

	period, err := c.txs.ListRange(ctx, tenantID, start, end)
	if err != nil {
		return ReportData{}, err
	}
	production := make(balanceSet)
	transfersIn := make(balanceSet)
	transfersOut := make(balanceSet)
	losses := make(balanceSet)
	for _, t := range period {
		key := lineKey{Product: t.Product, SpiritsClass: t.SpiritsClass}
		switch t.Type {
		case ledger.TypeProduction:
			production.add(key, t.ProofGallons, t.WineGallons)
		case ledger.TypeTransferIn:
			transfersIn.add(key, t.ProofGallons, t.WineGallons)
		case ledger.TypeTransferOut:
			transfersOut.add(key, t.ProofGallons, t.WineGallons)
		case ledger.TypeLoss, ledger.TypeDestruction:
			// Destruction folds into loss rows for form purposes.
			losses.add(key, t.ProofGallons, t.WineGallons)
		}
	}

	derived := make(balanceSet)
	for key, bal := range opening {
		derived.add(key, bal.pg, bal.wg)
	}
	for key, bal := range production {
		derived.add(key, bal.pg, bal.wg)
	}
	for key, bal := range transfersIn {
		derived.add(key, bal.pg, bal.wg)
	}
	for key, bal := range transfersOut {
		derived.add(key, -bal.pg, -bal.wg)
	}
	for key, bal := range losses {
		derived.add(key, -bal.pg, -bal.wg)
	}

	closing := derived
	closingSnap, found, err := c.snapshots.LatestSnapshotInRange(ctx, tenantID, start, end)
	if err != nil {
		return ReportData{}, err
	}
	if found {
		snapSet := fromSnapshot(closingSnap)
		if recErr := crossCheck(snapSet, derived); recErr != nil {
			c.logger.Error("closing snapshot failed reconciliation",
				slog.String("tenant", tenantID.String()),
				slog.Int("month", month),
				slog.Int("year", year),
				slog.Int("mismatches", len(recErr.Mismatches)))
			c.reconciliationFailed(formLabelInventory)
			return ReportData{}, recErr
		}
		closing = snapSet
	}

	c.calculated(formLabelInventory)
	return ReportData{
		TenantID:     tenantID,
		Month:        month,
		Year:         year,
		Opening:      opening.lines(),
		Production:   production.lines(),
		TransfersIn:  transfersIn.lines(),
		TransfersOut: transfersOut.lines(),
		Losses:       losses.lines(),
		Closing:      closing.lines(),
	}, nil
}

// openingBalance prefers the most recent snapshot before the period start
// and falls back to replaying all prior transactions.
func (c *Calculator) openingBalance(ctx context.Context, tenantID uuid.UUID, start time.Time) (balanceSet, error) {
	snapshot, found, err := c.snapshots.LatestSnapshotBefore(ctx, tenantID, start)
	if err != nil {
		return nil, err
	}
	if found {
		return fromSnapshot(snapshot), nil
	}

	prior, err := c.txs.ListBefore(ctx, tenantID, start)
	if err != nil {
		return nil, err
	}
	opening := make(balanceSet)
	for _, t := range prior {
		applyTransaction(opening, t)
	}
	for key, bal := range opening {
		if bal.pg < -Epsilon || bal.wg < -Epsilon {
			// Data-quality signal, not a hard error.
			c.logger.Warn("negative reconstructed opening balance",
				slog.String("tenant", tenantID.String()),
				slog.String("product", key.Product),
				slog.String("spirits_class", string(key.SpiritsClass)),
				slog.Float64("proof_gallons", bal.pg))
		}
	}
	return opening, nil
}

func crossCheck(snapshot, derived balanceSet) *ReconciliationError {
	keys := make(map[lineKey]struct{}, len(snapshot)+len(derived))
	for key := range snapshot {
		keys[key] = struct{}{}
	}
	for key := range derived {
		keys[key] = struct{}{}
	}
	var mismatches []Mismatch
	for key := range keys {
		snapBal := snapshot[key]
		derivedBal := derived[key]
		if math.Abs(snapBal.pg-derivedBal.pg) > Epsilon {
			mismatches = append(mismatches, Mismatch{
				Product: key.Product, SpiritsClass: key.SpiritsClass, Measure: "proof_gallons",
				SnapshotValue: gauge.Round2(snapBal.pg), DerivedValue: gauge.Round2(derivedBal.pg),
			})
		}
		if math.Abs(snapBal.wg-derivedBal.wg) > Epsilon {
			mismatches = append(mismatches, Mismatch{
				Product: key.Product, SpiritsClass: key.SpiritsClass, Measure: "wine_gallons",
				SnapshotValue: gauge.Round2(snapBal.wg), DerivedValue: gauge.Round2(derivedBal.wg),
			})
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	sort.Slice(mismatches, func(i, j int) bool {
		if mismatches[i].Product != mismatches[j].Product {
			return mismatches[i].Product < mismatches[j].Product
		}
		return mismatches[i].Measure < mismatches[j].Measure
	})
	return &ReconciliationError{Mismatches: mismatches}
}

// CalculateStorage produces the barrel-count report variant. Counts are
// derived from wine-gallon totals at the standard barrel volume; removed
// barrels balance the equation and an explicit closing snapshot must
// agree with the algebraic closing.
func (c *Calculator) CalculateStorage(ctx context.Context, tenantID uuid.UUID, month, year int) (StorageData, error) {
	if err := ValidatePeriod(month, year); err != nil {
		return StorageData{}, err
	}
	start, end := PeriodBounds(month, year)

	opening, err := c.openingBalance(ctx, tenantID, start)
	if err != nil {
		return StorageData{}, err
	}
	openingBarrels := gauge.Barrels(totalWG(opening))

	period, err := c.txs.ListRange(ctx, tenantID, start, end)
	if err != nil {
		return StorageData{}, err
	}
	var receivedWG float64
	derived := make(balanceSet)
	for key, bal := range opening {
		derived.add(key, bal.pg, bal.wg)
	}
	for _, t := range period {
		if t.Type == ledger.TypeProduction {
			receivedWG += t.WineGallons
		}
		applyTransaction(derived, t)
	}
	receivedBarrels := gauge.Barrels(receivedWG)
	closingBarrels := gauge.Barrels(totalWG(derived))

	closingSnap, found, err := c.snapshots.LatestSnapshotInRange(ctx, tenantID, start, end)
	if err != nil {
		return StorageData{}, err
	}
	if found {
		snapBarrels := gauge.Barrels(snapshotWG(closingSnap))
		if snapBarrels != closingBarrels {
			c.logger.Error("closing barrel count failed reconciliation",
				slog.String("tenant", tenantID.String()),
				slog.Int("snapshot_barrels", snapBarrels),
				slog.Int("derived_barrels", closingBarrels))
			c.reconciliationFailed(formLabelStorage)
			return StorageData{}, &ReconciliationError{Mismatches: []Mismatch{{
				Measure:       "barrels",
				SnapshotValue: float64(snapBarrels),
				DerivedValue:  float64(closingBarrels),
			}}}
		}
		closingBarrels = snapBarrels
	}

	units, err := c.units.ActiveUnits(ctx, tenantID)
	if err != nil {
		return StorageData{}, err
	}

	c.calculated(formLabelStorage)
	return StorageData{
		TenantID:        tenantID,
		Month:           month,
		Year:            year,
		OpeningBarrels:  openingBarrels,
		ReceivedBarrels: receivedBarrels,
		RemovedBarrels:  openingBarrels + receivedBarrels - closingBarrels,
		ClosingBarrels:  closingBarrels,
		Warehouses:      inventory.WarehouseBalances(units),
	}, nil
}

func totalWG(set balanceSet) float64 {
	var total float64
	for _, bal := range set {
		total += bal.wg
	}
	return total
}

func snapshotWG(snapshot inventory.Snapshot) float64 {
	var total float64
	for _, row := range snapshot.Rows {
		total += row.WineGallons
	}
	return total
}
