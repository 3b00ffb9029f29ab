// Package ledger records the append-only excise compliance transaction
// stream: production completions, transfers, losses and destructions.
package ledger

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/inventory"
)

// TransactionType enumerates supported ledger events.
type TransactionType string

const (
	TypeProduction  TransactionType = "PRODUCTION"
	TypeTransferIn  TransactionType = "TRANSFER_IN"
	TypeTransferOut TransactionType = "TRANSFER_OUT"
	TypeLoss        TransactionType = "LOSS"
	TypeDestruction TransactionType = "DESTRUCTION"
)

// Valid reports whether the type is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeProduction, TypeTransferIn, TypeTransferOut, TypeLoss, TypeDestruction:
		return true
	default:
		return false
	}
}

// Additive reports whether the type increases on-hand inventory.
func (t TransactionType) Additive() bool {
	return t == TypeProduction || t == TypeTransferIn
}

// SourceKind identifies the originating entity of a transaction.
type SourceKind string

const (
	// SourceBatch marks a system-generated entry from a production batch.
	SourceBatch SourceKind = "BATCH"
	// SourceUnit marks a system-generated entry from an inventory unit.
	SourceUnit SourceKind = "UNIT"
	// SourceManual marks an operator-entered transaction.
	SourceManual SourceKind = "MANUAL"
)

// Transaction is a single immutable ledger event. Proof and wine gallons
// are consistent under the gauge law for the lot's entry proof at the time
// of recording; this is enforced at write time and not re-validated later.
type Transaction struct {
	ID           uuid.UUID              `json:"id"`
	TenantID     uuid.UUID              `json:"tenant_id"`
	Date         time.Time              `json:"date"`
	Type         TransactionType        `json:"type"`
	Product      string                 `json:"product"`
	SpiritsClass inventory.SpiritsClass `json:"spirits_class"`
	TaxStatus    inventory.TaxStatus    `json:"tax_status"`
	ProofGallons float64                `json:"proof_gallons"`
	WineGallons  float64                `json:"wine_gallons"`
	SourceKind   SourceKind             `json:"source_kind"`
	SourceID     uuid.UUID              `json:"source_id,omitempty"`
	Notes        string                 `json:"notes,omitempty"`
	CreatedBy    int64                  `json:"created_by"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Manual reports whether the transaction was entered by hand and may
// therefore be edited or deleted while its period is unlocked.
func (t Transaction) Manual() bool {
	return t.SourceKind == SourceManual
}

// GallonTolerance bounds the allowed drift between recorded proof gallons
// and the conversion of recorded wine gallons at entry proof.
const GallonTolerance = 0.01

// ManualEntryInput captures an operator-entered transaction.
type ManualEntryInput struct {
	Date         time.Time
	Type         TransactionType
	Product      string
	SpiritsClass inventory.SpiritsClass
	TaxStatus    inventory.TaxStatus
	EntryProof   float64
	ProofGallons float64
	WineGallons  float64
	Notes        string
	ActorID      int64
}

// Validate ensures the manual entry is coherent, including gallon
// consistency under the gauge law at the supplied entry proof.
func (in ManualEntryInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("ledger: transaction date required")
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(in.Product) == "" {
		return errors.New("ledger: product required")
	}
	if in.SpiritsClass != inventory.ClassUnder190 && in.SpiritsClass != inventory.ClassNeutral190Plus {
		return errors.New("ledger: spirits class required")
	}
	if in.TaxStatus != inventory.TaxStatusBonded && in.TaxStatus != inventory.TaxStatusTaxpaid {
		return errors.New("ledger: tax status required")
	}
	if in.EntryProof <= 0 {
		return errors.New("ledger: entry proof must be greater than zero")
	}
	if in.ProofGallons < 0 || in.WineGallons < 0 {
		return ErrNegativeGallons
	}
	if math.Abs(in.ProofGallons-in.WineGallons*in.EntryProof/100) > GallonTolerance {
		return ErrGallonMismatch
	}
	if in.ActorID == 0 {
		return errors.New("ledger: actor required")
	}
	return nil
}

var (
	// ErrInvalidType indicates an unknown transaction type.
	ErrInvalidType = errors.New("ledger: invalid transaction type")
	// ErrNegativeGallons indicates gallon totals below zero.
	ErrNegativeGallons = errors.New("ledger: gallons must be non-negative")
	// ErrGallonMismatch indicates proof and wine gallons that disagree
	// under the gauge law at the stated entry proof.
	ErrGallonMismatch = errors.New("ledger: proof and wine gallons inconsistent at entry proof")
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrImmutable is returned for any mutation of a system-generated transaction.
	ErrImmutable = errors.New("ledger: system-generated transactions are immutable")
	// ErrPeriodLocked is returned when the transaction's month is covered
	// by a submitted report. It applies regardless of actor role.
	ErrPeriodLocked = errors.New("ledger: period is locked by a submitted report")
)
