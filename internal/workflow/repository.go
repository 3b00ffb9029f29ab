package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barrelbook/barrelbook/internal/platform/db"
)

// Repository persists monthly reports in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside a transition transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (MonthlyReport, error)
	Update(ctx context.Context, r MonthlyReport) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("workflow: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const reportColumns = `id, tenant_id, month, year, form_type, status, validation_errors, pdf_path,
submitted_by, submitted_at, reviewed_by, reviewed_at, approved_by, approved_at, review_notes,
ttb_confirmation, ttb_submitted_at, created_at, updated_at`

func scanReport(row pgx.Row) (MonthlyReport, error) {
	var r MonthlyReport
	var validationErrors []byte
	err := row.Scan(&r.ID, &r.TenantID, &r.Month, &r.Year, &r.FormType, &r.Status, &validationErrors, &r.PDFPath,
		&r.SubmittedBy, &r.SubmittedAt, &r.ReviewedBy, &r.ReviewedAt, &r.ApprovedBy, &r.ApprovedAt, &r.ReviewNotes,
		&r.TTBConfirmation, &r.TTBSubmittedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return MonthlyReport{}, err
	}
	if len(validationErrors) > 0 {
		_ = json.Unmarshal(validationErrors, &r.ValidationErrors)
	}
	return r, nil
}

// Insert creates a new report row. A unique violation on
// (tenant, month, year, form_type) maps to ErrDuplicateReport.
func (r *Repository) Insert(ctx context.Context, report MonthlyReport) error {
	validationErrors, _ := json.Marshal(report.ValidationErrors)
	_, err := r.pool.Exec(ctx, `INSERT INTO monthly_reports (id, tenant_id, month, year, form_type, status, validation_errors, pdf_path, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())`,
		report.ID, report.TenantID, report.Month, report.Year, string(report.FormType), string(report.Status), validationErrors, report.PDFPath)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReport
		}
		return err
	}
	return nil
}

// GetByID loads a report scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (MonthlyReport, error) {
	report, err := scanReport(r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM monthly_reports WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MonthlyReport{}, ErrReportNotFound
		}
		return MonthlyReport{}, err
	}
	return report, nil
}

// ListByTenant returns reports newest period first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]MonthlyReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+reportColumns+` FROM monthly_reports WHERE tenant_id=$1 ORDER BY year DESC, month DESC, form_type LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []MonthlyReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// ReviewerEmails returns addresses of reviewer-eligible users for the tenant.
func (r *Repository) ReviewerEmails(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT email FROM users WHERE tenant_id=$1 AND role IN ('ADMIN','COMPLIANCE_MANAGER') AND active ORDER BY email`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (r *txRepository) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (MonthlyReport, error) {
	report, err := scanReport(r.tx.QueryRow(ctx, `SELECT `+reportColumns+` FROM monthly_reports WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MonthlyReport{}, ErrReportNotFound
		}
		return MonthlyReport{}, err
	}
	return report, nil
}

func (r *txRepository) Update(ctx context.Context, report MonthlyReport) error {
	validationErrors, _ := json.Marshal(report.ValidationErrors)
	_, err := r.tx.Exec(ctx, `UPDATE monthly_reports SET status=$3, validation_errors=$4, pdf_path=$5,
submitted_by=$6, submitted_at=$7, reviewed_by=$8, reviewed_at=$9, approved_by=$10, approved_at=$11,
review_notes=$12, ttb_confirmation=$13, ttb_submitted_at=$14, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`,
		report.TenantID, report.ID, string(report.Status), validationErrors, report.PDFPath,
		report.SubmittedBy, report.SubmittedAt, report.ReviewedBy, report.ReviewedAt, report.ApprovedBy, report.ApprovedAt,
		report.ReviewNotes, report.TTBConfirmation, report.TTBSubmittedAt)
	return err
}
