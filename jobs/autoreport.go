package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barrelbook/barrelbook/internal/shared"
	"github.com/barrelbook/barrelbook/internal/workflow"
)

// TenantSource lists the tenants to draft reports for.
type TenantSource interface {
	ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// PGTenantSource reads tenant IDs from PostgreSQL.
type PGTenantSource struct {
	pool *pgxpool.Pool
}

// NewPGTenantSource constructs PGTenantSource.
func NewPGTenantSource(pool *pgxpool.Pool) *PGTenantSource {
	return &PGTenantSource{pool: pool}
}

// ActiveTenantIDs returns all active tenant IDs.
func (s *PGTenantSource) ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM tenants WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReportCreator drafts a report for one tenant and period.
type ReportCreator interface {
	Create(ctx context.Context, tenantID uuid.UUID, month, year int, form workflow.FormType, actor *shared.Actor) (workflow.MonthlyReport, error)
}

// AutoReporter drafts last month's reports for every tenant on a schedule.
type AutoReporter struct {
	tenants TenantSource
	reports ReportCreator
	logger  *slog.Logger
	now     func() time.Time
}

// NewAutoReporter constructs AutoReporter.
func NewAutoReporter(tenants TenantSource, reports ReportCreator, logger *slog.Logger) *AutoReporter {
	return &AutoReporter{tenants: tenants, reports: reports, logger: logger, now: time.Now}
}

// HandleAutoReport processes TaskTypeAutoReport tasks. Existing drafts
// are left alone; per-tenant failures do not abort the sweep.
func (a *AutoReporter) HandleAutoReport(ctx context.Context, _ *asynq.Task) error {
	// Last day of the previous month; AddDate on day 31 would normalise
	// past short months.
	now := a.now().UTC()
	previous := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	month, year := int(previous.Month()), previous.Year()

	tenantIDs, err := a.tenants.ActiveTenantIDs(ctx)
	if err != nil {
		return err
	}
	for _, tenantID := range tenantIDs {
		for _, form := range []workflow.FormType{workflow.FormInventory, workflow.FormStorage} {
			_, err := a.reports.Create(ctx, tenantID, month, year, form, nil)
			switch {
			case err == nil:
			case errors.Is(err, workflow.ErrDuplicateReport):
			default:
				a.logger.Warn("auto report draft failed",
					slog.String("tenant", tenantID.String()),
					slog.String("form", string(form)),
					slog.Int("month", month),
					slog.Int("year", year),
					slog.Any("error", err))
			}
		}
	}
	return nil
}
