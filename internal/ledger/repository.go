package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists compliance transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const txColumns = `id, tenant_id, tx_date, tx_type, product, spirits_class, tax_status, proof_gallons, wine_gallons, source_kind, source_id, notes, created_by, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var sourceID *uuid.UUID
	err := row.Scan(&t.ID, &t.TenantID, &t.Date, &t.Type, &t.Product, &t.SpiritsClass, &t.TaxStatus,
		&t.ProofGallons, &t.WineGallons, &t.SourceKind, &sourceID, &t.Notes, &t.CreatedBy, &t.CreatedAt)
	if sourceID != nil {
		t.SourceID = *sourceID
	}
	return t, err
}

// Insert appends a transaction.
func (r *Repository) Insert(ctx context.Context, t Transaction) error {
	var sourceID *uuid.UUID
	if t.SourceID != uuid.Nil {
		sourceID = &t.SourceID
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO compliance_transactions (id, tenant_id, tx_date, tx_type, product, spirits_class, tax_status, proof_gallons, wine_gallons, source_kind, source_id, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())`,
		t.ID, t.TenantID, t.Date, string(t.Type), t.Product, string(t.SpiritsClass), string(t.TaxStatus),
		t.ProofGallons, t.WineGallons, string(t.SourceKind), sourceID, t.Notes, t.CreatedBy)
	return err
}

// GetByID loads a transaction scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM compliance_transactions WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

// Update rewrites a manual transaction row. Immutability of system
// entries is the service's concern.
func (r *Repository) Update(ctx context.Context, t Transaction) error {
	tag, err := r.pool.Exec(ctx, `UPDATE compliance_transactions
SET tx_date=$3, tx_type=$4, product=$5, spirits_class=$6, tax_status=$7, proof_gallons=$8, wine_gallons=$9, notes=$10
WHERE tenant_id=$1 AND id=$2`,
		t.TenantID, t.ID, t.Date, string(t.Type), t.Product, string(t.SpiritsClass), string(t.TaxStatus),
		t.ProofGallons, t.WineGallons, t.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// Delete removes a transaction row.
func (r *Repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM compliance_transactions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListRange returns transactions with from <= date <= to, oldest first.
func (r *Repository) ListRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]Transaction, error) {
	return r.queryTransactions(ctx, `SELECT `+txColumns+` FROM compliance_transactions
WHERE tenant_id=$1 AND tx_date >= $2 AND tx_date <= $3 ORDER BY tx_date ASC, created_at ASC`, tenantID, from, to)
}

// ListBefore returns all transactions dated strictly before cutoff.
func (r *Repository) ListBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]Transaction, error) {
	return r.queryTransactions(ctx, `SELECT `+txColumns+` FROM compliance_transactions
WHERE tenant_id=$1 AND tx_date < $2 ORDER BY tx_date ASC, created_at ASC`, tenantID, cutoff)
}
