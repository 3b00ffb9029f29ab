package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/audit"
	"github.com/barrelbook/barrelbook/internal/rbac"
	"github.com/barrelbook/barrelbook/internal/report"
	"github.com/barrelbook/barrelbook/internal/shared"
)

// RepositoryPort abstracts report persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, r MonthlyReport) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (MonthlyReport, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]MonthlyReport, error)
	ReviewerEmails(ctx context.Context, tenantID uuid.UUID) ([]string, error)
}

// CalculatorPort produces the report aggregates.
type CalculatorPort interface {
	CalculateMonthly(ctx context.Context, tenantID uuid.UUID, month, year int) (report.ReportData, error)
	CalculateStorage(ctx context.Context, tenantID uuid.UUID, month, year int) (report.StorageData, error)
}

// RendererPort turns aggregates into stored PDF artifacts, returning the
// storage path.
type RendererPort interface {
	RenderInventory(ctx context.Context, data report.ReportData) (string, error)
	RenderStorage(ctx context.Context, data report.StorageData) (string, error)
}

// NotifierPort delivers workflow side effects. Both calls are
// fire-and-forget from the service's perspective.
type NotifierPort interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	TriggerEvent(ctx context.Context, eventType, entityID string, payload any, tenantID uuid.UUID) error
}

// AuditPort records transitions.
type AuditPort interface {
	LogChange(ctx context.Context, change audit.Change)
}

// LockInvalidator drops cached period-lock state after transitions.
type LockInvalidator interface {
	InvalidateMonth(ctx context.Context, tenantID uuid.UUID, month, year int)
}

// MetricsPort counts committed transitions.
type MetricsPort interface {
	WorkflowTransition(action string)
}

// Service runs the monthly report state machine.
type Service struct {
	repo     RepositoryPort
	calc     CalculatorPort
	renderer RendererPort
	notify   NotifierPort
	audit    AuditPort
	locks    LockInvalidator
	metrics  MetricsPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, calc CalculatorPort, renderer RendererPort, notify NotifierPort, auditor AuditPort, locks LockInvalidator, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		calc:     calc,
		renderer: renderer,
		notify:   notify,
		audit:    auditor,
		locks:    locks,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches transition counters.
func (s *Service) WithMetrics(m MetricsPort) {
	if m != nil {
		s.metrics = m
	}
}

// Get returns a single report.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (MonthlyReport, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List returns reports for the tenant.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]MonthlyReport, error) {
	return s.repo.ListByTenant(ctx, tenantID, limit, offset)
}

// Create calculates the period, renders the PDF artifact and persists the
// report in Draft. Render failures do not block creation; the path can be
// filled by a later re-render.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, month, year int, form FormType, actor *shared.Actor) (MonthlyReport, error) {
	if err := report.ValidatePeriod(month, year); err != nil {
		return MonthlyReport{}, err
	}
	if !form.Valid() {
		return MonthlyReport{}, fmt.Errorf("workflow: unknown form type %q", form)
	}

	rpt := MonthlyReport{
		ID:       uuid.New(),
		TenantID: tenantID,
		Month:    month,
		Year:     year,
		FormType: form,
		Status:   StatusDraft,
	}

	switch form {
	case FormInventory:
		data, err := s.calc.CalculateMonthly(ctx, tenantID, month, year)
		if err != nil {
			return MonthlyReport{}, err
		}
		rpt.ValidationErrors = validateInventory(data)
		rpt.PDFPath = s.render(ctx, func(ctx context.Context) (string, error) {
			return s.renderer.RenderInventory(ctx, data)
		})
	case FormStorage:
		data, err := s.calc.CalculateStorage(ctx, tenantID, month, year)
		if err != nil {
			return MonthlyReport{}, err
		}
		rpt.ValidationErrors = validateStorage(data)
		rpt.PDFPath = s.render(ctx, func(ctx context.Context) (string, error) {
			return s.renderer.RenderStorage(ctx, data)
		})
	}

	if err := s.repo.Insert(ctx, rpt); err != nil {
		return MonthlyReport{}, err
	}
	rpt.CreatedAt = s.now()
	rpt.UpdatedAt = rpt.CreatedAt

	s.audit.LogChange(ctx, audit.Change{
		TenantID:   tenantID,
		EntityType: "monthly_report",
		EntityID:   rpt.ID.String(),
		Action:     audit.ActionCreate,
		New:        rpt,
		ActorID:    actorID(actor),
		IP:         actorIP(actor),
		UserAgent:  actorUA(actor),
	})
	s.fireEvent(ctx, "report.created", rpt)
	return rpt, nil
}

// SubmitForReview moves a draft with no outstanding validation errors to
// pending review and notifies eligible reviewers.
func (s *Service) SubmitForReview(ctx context.Context, tenantID, id uuid.UUID, actor *shared.Actor) (MonthlyReport, error) {
	rpt, err := s.transition(ctx, tenantID, id, ActionSubmitForReview, func(r *MonthlyReport) *TransitionError {
		if len(r.ValidationErrors) > 0 {
			return denied(ActionSubmitForReview, r.Status, fmt.Sprintf("report has %d outstanding validation errors", len(r.ValidationErrors)))
		}
		now := s.now()
		id := actorID(actor)
		r.SubmittedBy = &id
		r.SubmittedAt = &now
		return nil
	}, actor)
	if err != nil {
		return MonthlyReport{}, err
	}
	s.notifyReviewers(ctx, rpt)
	return rpt, nil
}

// Approve requires a reviewer-eligible actor.
func (s *Service) Approve(ctx context.Context, tenantID, id uuid.UUID, notes string, actor *shared.Actor) (MonthlyReport, error) {
	return s.transition(ctx, tenantID, id, ActionApprove, func(r *MonthlyReport) *TransitionError {
		if actor == nil || !rbac.CanReviewReports(actor.Role) {
			return denied(ActionApprove, r.Status, fmt.Sprintf("role %q is not eligible to review reports", actorRole(actor)))
		}
		now := s.now()
		id := actorID(actor)
		r.ReviewedBy = &id
		r.ReviewedAt = &now
		r.ApprovedBy = &id
		r.ApprovedAt = &now
		r.ReviewNotes = notes
		return nil
	}, actor)
}

// Reject returns the report to draft, recording the reviewer and clearing
// approval fields.
func (s *Service) Reject(ctx context.Context, tenantID, id uuid.UUID, notes string, actor *shared.Actor) (MonthlyReport, error) {
	return s.transition(ctx, tenantID, id, ActionReject, func(r *MonthlyReport) *TransitionError {
		now := s.now()
		id := actorID(actor)
		r.ReviewedBy = &id
		r.ReviewedAt = &now
		r.ReviewNotes = notes
		r.ApprovedBy = nil
		r.ApprovedAt = nil
		return nil
	}, actor)
}

// SubmitToTTB records the regulator confirmation number. From this point
// the report's period is permanently locked.
func (s *Service) SubmitToTTB(ctx context.Context, tenantID, id uuid.UUID, confirmation string, actor *shared.Actor) (MonthlyReport, error) {
	return s.transition(ctx, tenantID, id, ActionSubmitToTTB, func(r *MonthlyReport) *TransitionError {
		if strings.TrimSpace(confirmation) == "" {
			return denied(ActionSubmitToTTB, r.Status, "confirmation number required")
		}
		if len(r.ValidationErrors) > 0 {
			return denied(ActionSubmitToTTB, r.Status, fmt.Sprintf("report has %d outstanding validation errors", len(r.ValidationErrors)))
		}
		now := s.now()
		r.TTBConfirmation = strings.TrimSpace(confirmation)
		r.TTBSubmittedAt = &now
		return nil
	}, actor)
}

// Archive closes out a submitted report.
func (s *Service) Archive(ctx context.Context, tenantID, id uuid.UUID, actor *shared.Actor) (MonthlyReport, error) {
	return s.transition(ctx, tenantID, id, ActionArchive, func(*MonthlyReport) *TransitionError {
		return nil
	}, actor)
}

// transition applies the state machine under a row lock. The mutate
// callback runs guards and field updates against the locked row; any
// TransitionError aborts with the report untouched. Audit and
// notification side effects run after commit and cannot roll it back.
func (s *Service) transition(ctx context.Context, tenantID, id uuid.UUID, action Action, mutate func(*MonthlyReport) *TransitionError, actor *shared.Actor) (MonthlyReport, error) {
	var before, after MonthlyReport
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		before = current
		next, ok := Next(current.Status, action)
		if !ok {
			return denied(action, current.Status, fmt.Sprintf("not allowed in status %s", current.Status))
		}
		updated := current
		if guardErr := mutate(&updated); guardErr != nil {
			return guardErr
		}
		updated.Status = next
		updated.UpdatedAt = s.now()
		if err := tx.Update(ctx, updated); err != nil {
			return err
		}
		after = updated
		return nil
	})
	if err != nil {
		return MonthlyReport{}, err
	}

	s.audit.LogChange(ctx, audit.Change{
		TenantID:   tenantID,
		EntityType: "monthly_report",
		EntityID:   id.String(),
		Action:     audit.ActionUpdate,
		Old:        before,
		New:        after,
		ActorID:    actorID(actor),
		IP:         actorIP(actor),
		UserAgent:  actorUA(actor),
	})
	if s.metrics != nil {
		s.metrics.WorkflowTransition(string(action))
	}
	if s.locks != nil && (after.Status.Locking() || before.Status.Locking()) {
		s.locks.InvalidateMonth(ctx, tenantID, after.Month, after.Year)
	}
	s.fireEvent(ctx, "report."+strings.ToLower(string(action)), after)
	return after, nil
}

func (s *Service) notifyReviewers(ctx context.Context, rpt MonthlyReport) {
	emails, err := s.repo.ReviewerEmails(ctx, rpt.TenantID)
	if err != nil {
		s.logger.Warn("reviewer lookup failed", slog.Any("error", err))
		return
	}
	subject := fmt.Sprintf("Monthly report %04d-%02d awaiting review", rpt.Year, rpt.Month)
	body := fmt.Sprintf("Report %s (%s) was submitted for review.", rpt.ID, rpt.FormType)
	for _, to := range emails {
		if err := s.notify.SendEmail(ctx, to, subject, body); err != nil {
			s.logger.Warn("reviewer notification failed", slog.String("to", to), slog.Any("error", err))
		}
	}
}

func (s *Service) fireEvent(ctx context.Context, eventType string, rpt MonthlyReport) {
	if s.notify == nil {
		return
	}
	if err := s.notify.TriggerEvent(ctx, eventType, rpt.ID.String(), rpt, rpt.TenantID); err != nil {
		s.logger.Warn("workflow event delivery failed", slog.String("event", eventType), slog.Any("error", err))
	}
}

func (s *Service) render(ctx context.Context, fn func(context.Context) (string, error)) string {
	if s.renderer == nil {
		return ""
	}
	path, err := fn(ctx)
	if err != nil {
		s.logger.Warn("report render failed", slog.Any("error", err))
		return ""
	}
	return path
}

func validateInventory(data report.ReportData) []string {
	var errs []string
	for _, line := range data.Closing {
		if line.ProofGallons < 0 || line.WineGallons < 0 {
			errs = append(errs, fmt.Sprintf("negative closing balance for %s (%s)", line.Product, line.SpiritsClass))
		}
	}
	return errs
}

func validateStorage(data report.StorageData) []string {
	var errs []string
	if data.ClosingBarrels < 0 {
		errs = append(errs, "negative closing barrel count")
	}
	if data.RemovedBarrels < 0 {
		errs = append(errs, "removed barrel count below zero")
	}
	return errs
}

func actorID(actor *shared.Actor) int64 {
	if actor == nil {
		return 0
	}
	return actor.ID
}

func actorRole(actor *shared.Actor) string {
	if actor == nil {
		return ""
	}
	return string(actor.Role)
}

func actorIP(actor *shared.Actor) string {
	if actor == nil {
		return ""
	}
	return actor.IP
}

func actorUA(actor *shared.Actor) string {
	if actor == nil {
		return ""
	}
	return actor.UserAgent
}
