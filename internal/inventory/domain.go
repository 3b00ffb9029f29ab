// Package inventory tracks barrel inventory units and point-in-time
// snapshot aggregates derived from them.
package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SpiritsClass is the two-tier federal spirits classification.
type SpiritsClass string

const (
	// ClassUnder190 covers spirits entered below 190 proof.
	ClassUnder190 SpiritsClass = "UNDER_190"
	// ClassNeutral190Plus covers neutral spirits of 190 proof or greater.
	ClassNeutral190Plus SpiritsClass = "NEUTRAL_190_PLUS"
)

// TaxStatus marks whether spirits are held in bond or taxpaid.
type TaxStatus string

const (
	TaxStatusBonded  TaxStatus = "BONDED"
	TaxStatusTaxpaid TaxStatus = "TAXPAID"
)

// UnitStatus is the current lifecycle state of a barrel.
type UnitStatus string

const (
	StatusFilled    UnitStatus = "FILLED"
	StatusAging     UnitStatus = "AGING"
	StatusDumped    UnitStatus = "DUMPED"
	StatusSold      UnitStatus = "SOLD"
	StatusDestroyed UnitStatus = "DESTROYED"
)

// Active reports whether the status counts toward on-hand inventory.
func (s UnitStatus) Active() bool {
	return s == StatusFilled || s == StatusAging
}

// Unit is a single barrel. Volume and entry proof come from the owning
// order's lot and are fixed for the life of the unit.
type Unit struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	BatchID         uuid.UUID
	OrderID         uuid.UUID
	Product         string
	SpiritsClass    SpiritsClass
	TaxStatus       TaxStatus
	Status          UnitStatus
	Warehouse       string
	VolumeWG        float64
	EntryProof      float64
	CreatedAt       time.Time
	StatusChangedAt time.Time
}

// StatusChanged reports whether the status moved since creation.
func (u Unit) StatusChanged() bool {
	return u.StatusChangedAt.After(u.CreatedAt)
}

// ActiveAsOf approximates whether the unit was on hand at asOf. Per-unit
// status history is not retained, so the last status-change timestamp
// stands in for when the current status took effect: a unit whose current
// status is inactive but changed after asOf had not yet left inventory.
func (u Unit) ActiveAsOf(asOf time.Time) bool {
	if u.CreatedAt.After(asOf) {
		return false
	}
	if u.Status.Active() {
		if !u.StatusChanged() {
			return true
		}
		return !u.StatusChangedAt.After(asOf)
	}
	return u.StatusChanged() && u.StatusChangedAt.After(asOf)
}

// SnapshotRow is one aggregate balance line of a snapshot.
type SnapshotRow struct {
	Product      string       `json:"product"`
	SpiritsClass SpiritsClass `json:"spirits_class"`
	TaxStatus    TaxStatus    `json:"tax_status"`
	ProofGallons float64      `json:"proof_gallons"`
	WineGallons  float64      `json:"wine_gallons"`
	UnitCount    int          `json:"unit_count"`
}

// Snapshot is a dated set of balance rows for a tenant.
type Snapshot struct {
	TenantID uuid.UUID
	TakenAt  time.Time
	Rows     []SnapshotRow
}

// WarehouseBalance is a live spot count of proof gallons by location.
type WarehouseBalance struct {
	Warehouse    string  `json:"warehouse"`
	UnitCount    int     `json:"unit_count"`
	ProofGallons float64 `json:"proof_gallons"`
	WineGallons  float64 `json:"wine_gallons"`
}

// ErrUnitNotFound indicates a missing inventory unit.
var ErrUnitNotFound = errors.New("inventory: unit not found")

// ErrNoUnits indicates a batch without active units.
var ErrNoUnits = errors.New("inventory: no active units")
