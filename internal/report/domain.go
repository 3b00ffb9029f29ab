// Package report builds the monthly TTB report aggregates by reconciling
// inventory snapshots against the compliance transaction stream.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/inventory"
)

// MinReportYear is the earliest period the engine accepts.
const MinReportYear = 2020

// Epsilon bounds acceptable drift between a closing snapshot and the
// algebraically derived closing balance, per group and measure.
const Epsilon = 0.005

// Line is one per-(product, spirits class) balance or movement row.
type Line struct {
	Product      string                 `json:"product"`
	SpiritsClass inventory.SpiritsClass `json:"spirits_class"`
	ProofGallons float64                `json:"proof_gallons"`
	WineGallons  float64                `json:"wine_gallons"`
}

// ReportData is the monthly inventory reconciliation aggregate. It is
// transient: persistence is the workflow's concern.
type ReportData struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	Month        int       `json:"month"`
	Year         int       `json:"year"`
	Opening      []Line    `json:"opening"`
	Production   []Line    `json:"production"`
	TransfersIn  []Line    `json:"transfers_in"`
	TransfersOut []Line    `json:"transfers_out"`
	Losses       []Line    `json:"losses"`
	Closing      []Line    `json:"closing"`
}

// StorageData is the barrel-count report variant plus a live spot count
// of proof gallons by warehouse.
type StorageData struct {
	TenantID        uuid.UUID                    `json:"tenant_id"`
	Month           int                          `json:"month"`
	Year            int                          `json:"year"`
	OpeningBarrels  int                          `json:"opening_barrels"`
	ReceivedBarrels int                          `json:"received_barrels"`
	RemovedBarrels  int                          `json:"removed_barrels"`
	ClosingBarrels  int                          `json:"closing_barrels"`
	Warehouses      []inventory.WarehouseBalance `json:"warehouses"`
}

// ErrInvalidPeriod indicates an out-of-range month or year.
var ErrInvalidPeriod = errors.New("report: invalid period")

// ErrReconciliation indicates a closing snapshot that disagrees with the
// algebraic derivation beyond tolerance. It is fatal: no report may be
// produced from inconsistent data.
var ErrReconciliation = errors.New("report: snapshot does not reconcile with transaction history")

// Mismatch describes one group failing the cross-check.
type Mismatch struct {
	Product       string
	SpiritsClass  inventory.SpiritsClass
	Measure       string
	SnapshotValue float64
	DerivedValue  float64
}

// ReconciliationError carries the failing groups.
type ReconciliationError struct {
	Mismatches []Mismatch
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%v (%d groups)", ErrReconciliation, len(e.Mismatches))
}

// Unwrap lets callers match ErrReconciliation.
func (e *ReconciliationError) Unwrap() error {
	return ErrReconciliation
}

// ValidatePeriod rejects out-of-range report periods before any I/O.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if year < MinReportYear {
		return fmt.Errorf("%w: year %d precedes %d", ErrInvalidPeriod, year, MinReportYear)
	}
	return nil
}

// PeriodBounds returns the first and last instants of the report month.
func PeriodBounds(month, year int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
