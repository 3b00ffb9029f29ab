package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory units and snapshots in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const unitColumns = `id, tenant_id, batch_id, order_id, product, spirits_class, tax_status, status, warehouse, volume_wg, entry_proof, created_at, status_changed_at`

func scanUnit(row pgx.Row) (Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.TenantID, &u.BatchID, &u.OrderID, &u.Product, &u.SpiritsClass, &u.TaxStatus,
		&u.Status, &u.Warehouse, &u.VolumeWG, &u.EntryProof, &u.CreatedAt, &u.StatusChangedAt)
	return u, err
}

func (r *Repository) queryUnits(ctx context.Context, query string, args ...any) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

// ListUnits returns every unit owned by the tenant.
func (r *Repository) ListUnits(ctx context.Context, tenantID uuid.UUID) ([]Unit, error) {
	return r.queryUnits(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE tenant_id=$1 ORDER BY created_at ASC`, tenantID)
}

// ActiveUnits returns currently active units for the tenant.
func (r *Repository) ActiveUnits(ctx context.Context, tenantID uuid.UUID) ([]Unit, error) {
	return r.queryUnits(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE tenant_id=$1 AND status IN ('FILLED','AGING') ORDER BY created_at ASC`, tenantID)
}

// ActiveUnitsByBatch returns active units belonging to a batch.
func (r *Repository) ActiveUnitsByBatch(ctx context.Context, tenantID, batchID uuid.UUID) ([]Unit, error) {
	return r.queryUnits(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE tenant_id=$1 AND batch_id=$2 AND status IN ('FILLED','AGING') ORDER BY created_at ASC`, tenantID, batchID)
}

// UnitByID loads a single unit scoped to the tenant.
func (r *Repository) UnitByID(ctx context.Context, tenantID, unitID uuid.UUID) (Unit, error) {
	unit, err := scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE tenant_id=$1 AND id=$2`, tenantID, unitID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Unit{}, ErrUnitNotFound
		}
		return Unit{}, err
	}
	return unit, nil
}

// InsertSnapshot writes a dated set of snapshot rows.
func (r *Repository) InsertSnapshot(ctx context.Context, snapshot Snapshot) error {
	for _, row := range snapshot.Rows {
		_, err := r.pool.Exec(ctx, `INSERT INTO inventory_snapshots (tenant_id, taken_at, product, spirits_class, tax_status, proof_gallons, wine_gallons, unit_count)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			snapshot.TenantID, snapshot.TakenAt, row.Product, string(row.SpiritsClass), string(row.TaxStatus), row.ProofGallons, row.WineGallons, row.UnitCount)
		if err != nil {
			return err
		}
	}
	return nil
}

// LatestSnapshotBefore returns the most recent snapshot strictly before cutoff.
// The boolean result reports whether any snapshot exists.
func (r *Repository) LatestSnapshotBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (Snapshot, bool, error) {
	return r.latestSnapshot(ctx, tenantID, `SELECT MAX(taken_at) FROM inventory_snapshots WHERE tenant_id=$1 AND taken_at < $2`, cutoff)
}

// LatestSnapshotInRange returns the most recent snapshot dated within [from, to].
func (r *Repository) LatestSnapshotInRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (Snapshot, bool, error) {
	var takenAt *time.Time
	err := r.pool.QueryRow(ctx, `SELECT MAX(taken_at) FROM inventory_snapshots WHERE tenant_id=$1 AND taken_at >= $2 AND taken_at <= $3`, tenantID, from, to).Scan(&takenAt)
	if err != nil {
		return Snapshot{}, false, err
	}
	if takenAt == nil {
		return Snapshot{}, false, nil
	}
	return r.loadSnapshotAt(ctx, tenantID, *takenAt)
}

func (r *Repository) latestSnapshot(ctx context.Context, tenantID uuid.UUID, dateQuery string, cutoff time.Time) (Snapshot, bool, error) {
	var takenAt *time.Time
	if err := r.pool.QueryRow(ctx, dateQuery, tenantID, cutoff).Scan(&takenAt); err != nil {
		return Snapshot{}, false, err
	}
	if takenAt == nil {
		return Snapshot{}, false, nil
	}
	return r.loadSnapshotAt(ctx, tenantID, *takenAt)
}

func (r *Repository) loadSnapshotAt(ctx context.Context, tenantID uuid.UUID, takenAt time.Time) (Snapshot, bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT product, spirits_class, tax_status, proof_gallons, wine_gallons, unit_count
FROM inventory_snapshots WHERE tenant_id=$1 AND taken_at=$2 ORDER BY product, spirits_class, tax_status`, tenantID, takenAt)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer rows.Close()
	snapshot := Snapshot{TenantID: tenantID, TakenAt: takenAt}
	for rows.Next() {
		var row SnapshotRow
		if err := rows.Scan(&row.Product, &row.SpiritsClass, &row.TaxStatus, &row.ProofGallons, &row.WineGallons, &row.UnitCount); err != nil {
			return Snapshot{}, false, err
		}
		snapshot.Rows = append(snapshot.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, false, err
	}
	return snapshot, true, nil
}
