package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit entries and answers lock queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertEntry appends an audit record.
func (r *Repository) InsertEntry(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO audit_logs (tenant_id, entity_type, entity_id, action, old_value, new_value, actor_id, ip, user_agent, description, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,COALESCE($11, NOW()))`,
		entry.TenantID, entry.EntityType, entry.EntityID, string(entry.Action), entry.OldValue, entry.NewValue,
		entry.ActorID, entry.IP, entry.UserAgent, entry.Description, entry.At)
	return err
}

// Timeline returns entries matching the filters, newest first.
func (r *Repository) Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, entity_type, entity_id, action, old_value, new_value, actor_id, ip, user_agent, description, occurred_at
FROM audit_logs
WHERE tenant_id=$1
  AND ($2='' OR entity_type=$2)
  AND ($3='' OR action=$3)
  AND occurred_at >= COALESCE(NULLIF($4, '0001-01-01'::timestamptz), '-infinity')
  AND occurred_at <= COALESCE(NULLIF($5, '0001-01-01'::timestamptz), 'infinity')
ORDER BY occurred_at DESC, id DESC
LIMIT $6 OFFSET $7`,
		filters.TenantID, filters.EntityType, filters.Action, filters.From, filters.To, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EntityType, &e.EntityID, &action, &e.OldValue, &e.NewValue,
			&e.ActorID, &e.IP, &e.UserAgent, &e.Description, &e.At); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MonthHasLockingReport reports whether a monthly report in a locking
// status exists for the tenant and period.
func (r *Repository) MonthHasLockingReport(ctx context.Context, tenantID uuid.UUID, month, year int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM monthly_reports
WHERE tenant_id=$1 AND month=$2 AND year=$3 AND status = ANY($4))`,
		tenantID, month, year, LockingStatuses).Scan(&exists)
	return exists, err
}
