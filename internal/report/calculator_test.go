package report

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/barrelbook/barrelbook/internal/inventory"
	"github.com/barrelbook/barrelbook/internal/ledger"
)

type fakeSources struct {
	snapshots []inventory.Snapshot
	txs       []ledger.Transaction
	units     []inventory.Unit
}

func (f *fakeSources) LatestSnapshotBefore(_ context.Context, tenantID uuid.UUID, cutoff time.Time) (inventory.Snapshot, bool, error) {
	var best inventory.Snapshot
	var found bool
	for _, s := range f.snapshots {
		if s.TakenAt.Before(cutoff) && (!found || s.TakenAt.After(best.TakenAt)) {
			best = s
			found = true
		}
	}
	return best, found, nil
}

func (f *fakeSources) LatestSnapshotInRange(_ context.Context, tenantID uuid.UUID, from, to time.Time) (inventory.Snapshot, bool, error) {
	var best inventory.Snapshot
	var found bool
	for _, s := range f.snapshots {
		if !s.TakenAt.Before(from) && !s.TakenAt.After(to) && (!found || s.TakenAt.After(best.TakenAt)) {
			best = s
			found = true
		}
	}
	return best, found, nil
}

func (f *fakeSources) ListRange(_ context.Context, _ uuid.UUID, from, to time.Time) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, t := range f.txs {
		if !t.Date.Before(from) && !t.Date.After(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeSources) ListBefore(_ context.Context, _ uuid.UUID, cutoff time.Time) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, t := range f.txs {
		if t.Date.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeSources) ActiveUnits(_ context.Context, _ uuid.UUID) ([]inventory.Unit, error) {
	return f.units, nil
}

var testTenant = uuid.New()

func tx(day int, txType ledger.TransactionType, pg, wg float64) ledger.Transaction {
	return ledger.Transaction{
		ID:           uuid.New(),
		TenantID:     testTenant,
		Date:         time.Date(2025, 6, day, 12, 0, 0, 0, time.UTC),
		Type:         txType,
		Product:      "Bourbon",
		SpiritsClass: inventory.ClassUnder190,
		TaxStatus:    inventory.TaxStatusBonded,
		ProofGallons: pg,
		WineGallons:  wg,
	}
}

func snapshotRow(pg, wg float64) inventory.SnapshotRow {
	return inventory.SnapshotRow{
		Product:      "Bourbon",
		SpiritsClass: inventory.ClassUnder190,
		TaxStatus:    inventory.TaxStatusBonded,
		ProofGallons: pg,
		WineGallons:  wg,
	}
}

func newCalculator(sources *fakeSources) *Calculator {
	return NewCalculator(sources, sources, sources, slog.Default())
}

func TestCalculateMonthlyWorkedExample(t *testing.T) {
	sources := &fakeSources{
		snapshots: []inventory.Snapshot{{
			TenantID: testTenant,
			TakenAt:  time.Date(2025, 5, 31, 23, 0, 0, 0, time.UTC),
			Rows:     []inventory.SnapshotRow{snapshotRow(100, 50)},
		}},
		txs: []ledger.Transaction{
			tx(5, ledger.TypeProduction, 20, 10),
			tx(10, ledger.TypeTransferIn, 5, 2.5),
			tx(15, ledger.TypeTransferOut, 3, 1.5),
			tx(20, ledger.TypeLoss, 2, 1),
		},
	}
	data, err := newCalculator(sources).CalculateMonthly(context.Background(), testTenant, 6, 2025)
	require.NoError(t, err)

	require.Len(t, data.Opening, 1)
	require.InDelta(t, 100.0, data.Opening[0].ProofGallons, 0.001)
	require.InDelta(t, 50.0, data.Opening[0].WineGallons, 0.001)

	require.Len(t, data.Closing, 1)
	require.InDelta(t, 120.0, data.Closing[0].ProofGallons, 0.001)
	require.InDelta(t, 60.0, data.Closing[0].WineGallons, 0.001)

	require.Len(t, data.Production, 1)
	require.Len(t, data.TransfersIn, 1)
	require.Len(t, data.TransfersOut, 1)
	require.Len(t, data.Losses, 1)
}

func TestCalculateMonthlyNoSnapshotReplaysHistory(t *testing.T) {
	sources := &fakeSources{
		txs: []ledger.Transaction{
			{
				ID: uuid.New(), TenantID: testTenant,
				Date: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
				Type: ledger.TypeProduction, Product: "Bourbon",
				SpiritsClass: inventory.ClassUnder190, TaxStatus: inventory.TaxStatusBonded,
				ProofGallons: 80, WineGallons: 40,
			},
			tx(5, ledger.TypeProduction, 20, 10),
		},
	}
	data, err := newCalculator(sources).CalculateMonthly(context.Background(), testTenant, 6, 2025)
	require.NoError(t, err)
	require.Len(t, data.Opening, 1)
	require.InDelta(t, 80.0, data.Opening[0].ProofGallons, 0.001)
	require.InDelta(t, 100.0, data.Closing[0].ProofGallons, 0.001)
}

func TestCalculateMonthlyDestructionFoldsIntoLosses(t *testing.T) {
	sources := &fakeSources{
		txs: []ledger.Transaction{
			tx(5, ledger.TypeProduction, 20, 10),
			tx(10, ledger.TypeLoss, 2, 1),
			tx(12, ledger.TypeDestruction, 3, 1.5),
		},
	}
	data, err := newCalculator(sources).CalculateMonthly(context.Background(), testTenant, 6, 2025)
	require.NoError(t, err)
	require.Len(t, data.Losses, 1)
	require.InDelta(t, 5.0, data.Losses[0].ProofGallons, 0.001)
	require.InDelta(t, 15.0, data.Closing[0].ProofGallons, 0.001)
}

func TestCalculateMonthlyClosingSnapshotPreferred(t *testing.T) {
	sources := &fakeSources{
		snapshots: []inventory.Snapshot{
			{TenantID: testTenant, TakenAt: time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(100, 50)}},
			{TenantID: testTenant, TakenAt: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(120, 60)}},
		},
		txs: []ledger.Transaction{
			tx(5, ledger.TypeProduction, 20, 10),
		},
	}
	data, err := newCalculator(sources).CalculateMonthly(context.Background(), testTenant, 6, 2025)
	require.NoError(t, err)
	require.InDelta(t, 120.0, data.Closing[0].ProofGallons, 0.001)
}

func TestCalculateMonthlyReconciliationFailureIsFatal(t *testing.T) {
	sources := &fakeSources{
		snapshots: []inventory.Snapshot{
			{TenantID: testTenant, TakenAt: time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(100, 50)}},
			// Disagrees with opening 100 + production 20 = 120.
			{TenantID: testTenant, TakenAt: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(125, 60)}},
		},
		txs: []ledger.Transaction{
			tx(5, ledger.TypeProduction, 20, 10),
		},
	}
	_, err := newCalculator(sources).CalculateMonthly(context.Background(), testTenant, 6, 2025)
	require.ErrorIs(t, err, ErrReconciliation)
	var recErr *ReconciliationError
	require.ErrorAs(t, err, &recErr)
	require.NotEmpty(t, recErr.Mismatches)
	require.Equal(t, "proof_gallons", recErr.Mismatches[0].Measure)
}

func TestCalculateMonthlyToleratesRounding(t *testing.T) {
	sources := &fakeSources{
		snapshots: []inventory.Snapshot{
			{TenantID: testTenant, TakenAt: time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(100, 50)}},
			{TenantID: testTenant, TakenAt: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(120.004, 60)}},
		},
		txs: []ledger.Transaction{
			tx(5, ledger.TypeProduction, 20, 10),
		},
	}
	_, err := newCalculator(sources).CalculateMonthly(context.Background(), testTenant, 6, 2025)
	require.NoError(t, err)
}

type recordingMetrics struct {
	calculated []string
	failed     []string
}

func (m *recordingMetrics) ReportCalculated(form string) {
	m.calculated = append(m.calculated, form)
}

func (m *recordingMetrics) ReconciliationFailed(form string) {
	m.failed = append(m.failed, form)
}

func TestCalculationOutcomesAreCounted(t *testing.T) {
	metrics := &recordingMetrics{}
	sources := &fakeSources{
		txs: []ledger.Transaction{tx(5, ledger.TypeProduction, 20, 10)},
	}
	calc := newCalculator(sources)
	calc.WithMetrics(metrics)

	_, err := calc.CalculateMonthly(context.Background(), testTenant, 6, 2025)
	require.NoError(t, err)
	_, err = calc.CalculateStorage(context.Background(), testTenant, 6, 2025)
	require.NoError(t, err)
	require.Equal(t, []string{"INVENTORY_FORM", "STORAGE_FORM"}, metrics.calculated)
	require.Empty(t, metrics.failed)

	mismatched := &fakeSources{
		snapshots: []inventory.Snapshot{
			{TenantID: testTenant, TakenAt: time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(100, 50)}},
			{TenantID: testTenant, TakenAt: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(125, 60)}},
		},
		txs: []ledger.Transaction{tx(5, ledger.TypeProduction, 20, 10)},
	}
	badCalc := newCalculator(mismatched)
	badCalc.WithMetrics(metrics)
	_, err = badCalc.CalculateMonthly(context.Background(), testTenant, 6, 2025)
	require.ErrorIs(t, err, ErrReconciliation)
	require.Equal(t, []string{"INVENTORY_FORM"}, metrics.failed)
	require.Equal(t, []string{"INVENTORY_FORM", "STORAGE_FORM"}, metrics.calculated)
}

func TestValidatePeriod(t *testing.T) {
	require.NoError(t, ValidatePeriod(1, 2020))
	require.NoError(t, ValidatePeriod(12, 2026))
	require.ErrorIs(t, ValidatePeriod(0, 2025), ErrInvalidPeriod)
	require.ErrorIs(t, ValidatePeriod(13, 2025), ErrInvalidPeriod)
	require.ErrorIs(t, ValidatePeriod(6, 2019), ErrInvalidPeriod)

	_, err := newCalculator(&fakeSources{}).CalculateMonthly(context.Background(), testTenant, 13, 2025)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestCalculateStorage(t *testing.T) {
	sources := &fakeSources{
		snapshots: []inventory.Snapshot{
			// Opening: 10 barrels at 53 wg each.
			{TenantID: testTenant, TakenAt: time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(331.25, 530)}},
			// Closing: 12 barrels on hand.
			{TenantID: testTenant, TakenAt: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(397.5, 636)}},
		},
		txs: []ledger.Transaction{
			// 4 barrels produced, 2 barrels transferred out.
			tx(5, ledger.TypeProduction, 132.5, 212),
			tx(20, ledger.TypeTransferOut, 66.25, 106),
		},
		units: []inventory.Unit{
			{Status: inventory.StatusAging, Warehouse: "RICK-A", VolumeWG: 53, EntryProof: 62.5},
			{Status: inventory.StatusFilled, Warehouse: "RICK-B", VolumeWG: 53, EntryProof: 62.5},
		},
	}
	data, err := newCalculator(sources).CalculateStorage(context.Background(), testTenant, 6, 2025)
	require.NoError(t, err)
	require.Equal(t, 10, data.OpeningBarrels)
	require.Equal(t, 4, data.ReceivedBarrels)
	require.Equal(t, 12, data.ClosingBarrels)
	require.Equal(t, 2, data.RemovedBarrels)
	require.Len(t, data.Warehouses, 2)
	require.Equal(t, "RICK-A", data.Warehouses[0].Warehouse)
}

func TestCalculateStorageReconciliationFailure(t *testing.T) {
	sources := &fakeSources{
		snapshots: []inventory.Snapshot{
			{TenantID: testTenant, TakenAt: time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(331.25, 530)}},
			// Claims 14 barrels; algebra says 12.
			{TenantID: testTenant, TakenAt: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), Rows: []inventory.SnapshotRow{snapshotRow(463.75, 742)}},
		},
		txs: []ledger.Transaction{
			tx(5, ledger.TypeProduction, 132.5, 212),
			tx(20, ledger.TypeTransferOut, 66.25, 106),
		},
	}
	_, err := newCalculator(sources).CalculateStorage(context.Background(), testTenant, 6, 2025)
	require.ErrorIs(t, err, ErrReconciliation)
}
