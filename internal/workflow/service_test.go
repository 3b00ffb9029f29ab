package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/barrelbook/barrelbook/internal/audit"
	"github.com/barrelbook/barrelbook/internal/rbac"
	"github.com/barrelbook/barrelbook/internal/report"
	"github.com/barrelbook/barrelbook/internal/shared"
)

type memoryRepo struct {
	reports   map[uuid.UUID]MonthlyReport
	reviewers []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{reports: make(map[uuid.UUID]MonthlyReport)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Insert(_ context.Context, r MonthlyReport) error {
	for _, existing := range m.reports {
		if existing.TenantID == r.TenantID && existing.Month == r.Month && existing.Year == r.Year && existing.FormType == r.FormType {
			return ErrDuplicateReport
		}
	}
	m.reports[r.ID] = r
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, tenantID, id uuid.UUID) (MonthlyReport, error) {
	r, ok := m.reports[id]
	if !ok || r.TenantID != tenantID {
		return MonthlyReport{}, ErrReportNotFound
	}
	return r, nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (MonthlyReport, error) {
	return m.GetByID(ctx, tenantID, id)
}

func (m *memoryRepo) Update(_ context.Context, r MonthlyReport) error {
	m.reports[r.ID] = r
	return nil
}

func (m *memoryRepo) ListByTenant(_ context.Context, tenantID uuid.UUID, _, _ int) ([]MonthlyReport, error) {
	var out []MonthlyReport
	for _, r := range m.reports {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRepo) ReviewerEmails(context.Context, uuid.UUID) ([]string, error) {
	return m.reviewers, nil
}

type fakeCalculator struct {
	monthly report.ReportData
	storage report.StorageData
	err     error
}

func (f *fakeCalculator) CalculateMonthly(context.Context, uuid.UUID, int, int) (report.ReportData, error) {
	return f.monthly, f.err
}

func (f *fakeCalculator) CalculateStorage(context.Context, uuid.UUID, int, int) (report.StorageData, error) {
	return f.storage, f.err
}

type fakeRenderer struct {
	path string
	err  error
}

func (f *fakeRenderer) RenderInventory(context.Context, report.ReportData) (string, error) {
	return f.path, f.err
}

func (f *fakeRenderer) RenderStorage(context.Context, report.StorageData) (string, error) {
	return f.path, f.err
}

type recordingNotifier struct {
	emails  []string
	events  []string
	failAll bool
}

func (n *recordingNotifier) SendEmail(_ context.Context, to, _, _ string) error {
	if n.failAll {
		return errors.New("smtp down")
	}
	n.emails = append(n.emails, to)
	return nil
}

func (n *recordingNotifier) TriggerEvent(_ context.Context, eventType, _ string, _ any, _ uuid.UUID) error {
	if n.failAll {
		return errors.New("webhook down")
	}
	n.events = append(n.events, eventType)
	return nil
}

type recordingAudit struct {
	changes []audit.Change
}

func (a *recordingAudit) LogChange(_ context.Context, change audit.Change) {
	a.changes = append(a.changes, change)
}

type recordingMetrics struct {
	transitions []string
}

func (m *recordingMetrics) WorkflowTransition(action string) {
	m.transitions = append(m.transitions, action)
}

type recordingLocks struct {
	invalidated []string
}

func (l *recordingLocks) InvalidateMonth(_ context.Context, _ uuid.UUID, month, year int) {
	l.invalidated = append(l.invalidated, time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01"))
}

type workflowFixture struct {
	svc      *Service
	repo     *memoryRepo
	notifier *recordingNotifier
	auditor  *recordingAudit
	locks    *recordingLocks
}

func newFixture(t *testing.T) *workflowFixture {
	t.Helper()
	repo := newMemoryRepo()
	repo.reviewers = []string{"reviewer@distillery.test"}
	notifier := &recordingNotifier{}
	auditor := &recordingAudit{}
	locks := &recordingLocks{}
	svc := NewService(repo, &fakeCalculator{}, &fakeRenderer{path: "/artifacts/report.pdf"}, notifier, auditor, locks, slog.Default())
	svc.WithNow(func() time.Time { return time.Date(2024, 8, 5, 12, 0, 0, 0, time.UTC) })
	return &workflowFixture{svc: svc, repo: repo, notifier: notifier, auditor: auditor, locks: locks}
}

func operator(tenantID uuid.UUID) *shared.Actor {
	return &shared.Actor{ID: 7, TenantID: tenantID, Role: rbac.RoleOperator}
}

func manager(tenantID uuid.UUID) *shared.Actor {
	return &shared.Actor{ID: 11, TenantID: tenantID, Role: rbac.RoleComplianceManager}
}

func TestLifecycleHappyPath(t *testing.T) {
	fx := newFixture(t)
	tenantID := uuid.New()
	ctx := context.Background()

	rpt, err := fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, operator(tenantID))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, rpt.Status)
	require.Equal(t, "/artifacts/report.pdf", rpt.PDFPath)
	require.Empty(t, rpt.ValidationErrors)

	rpt, err = fx.svc.SubmitForReview(ctx, tenantID, rpt.ID, operator(tenantID))
	require.NoError(t, err)
	require.Equal(t, StatusPendingReview, rpt.Status)
	require.NotNil(t, rpt.SubmittedBy)
	require.Equal(t, int64(7), *rpt.SubmittedBy)
	require.Equal(t, []string{"reviewer@distillery.test"}, fx.notifier.emails)

	rpt, err = fx.svc.Approve(ctx, tenantID, rpt.ID, "figures check out", manager(tenantID))
	require.NoError(t, err)
	require.Equal(t, StatusApproved, rpt.Status)
	require.NotNil(t, rpt.ApprovedBy)
	require.Equal(t, int64(11), *rpt.ApprovedBy)
	require.Equal(t, "figures check out", rpt.ReviewNotes)
	require.Contains(t, fx.locks.invalidated, "2024-07")

	rpt, err = fx.svc.SubmitToTTB(ctx, tenantID, rpt.ID, "TTB-2024-0099", manager(tenantID))
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, rpt.Status)
	require.Equal(t, "TTB-2024-0099", rpt.TTBConfirmation)
	require.NotNil(t, rpt.TTBSubmittedAt)

	rpt, err = fx.svc.Archive(ctx, tenantID, rpt.ID, manager(tenantID))
	require.NoError(t, err)
	require.Equal(t, StatusArchived, rpt.Status)
}

func TestApproveRequiresReviewerRole(t *testing.T) {
	fx := newFixture(t)
	tenantID := uuid.New()
	ctx := context.Background()

	rpt, err := fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, operator(tenantID))
	require.NoError(t, err)
	rpt, err = fx.svc.SubmitForReview(ctx, tenantID, rpt.ID, operator(tenantID))
	require.NoError(t, err)

	_, err = fx.svc.Approve(ctx, tenantID, rpt.ID, "", operator(tenantID))
	require.ErrorIs(t, err, ErrTransitionDenied)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	require.Contains(t, terr.Reason, "OPERATOR")

	stored, err := fx.repo.GetByID(ctx, tenantID, rpt.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingReview, stored.Status)
}

func TestSubmitForReviewBlockedByValidationErrors(t *testing.T) {
	fx := newFixture(t)
	tenantID := uuid.New()
	ctx := context.Background()

	fx.svc.calc = &fakeCalculator{monthly: report.ReportData{
		Closing: []report.Line{{Product: "Rye", SpiritsClass: "UNDER_190", ProofGallons: -3, WineGallons: -4.8}},
	}}
	rpt, err := fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, operator(tenantID))
	require.NoError(t, err)
	require.Len(t, rpt.ValidationErrors, 1)

	_, err = fx.svc.SubmitForReview(ctx, tenantID, rpt.ID, operator(tenantID))
	require.ErrorIs(t, err, ErrTransitionDenied)
	require.Empty(t, fx.notifier.emails)
}

func TestRejectReturnsToDraftAndClearsApproval(t *testing.T) {
	fx := newFixture(t)
	tenantID := uuid.New()
	ctx := context.Background()

	rpt, err := fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, operator(tenantID))
	require.NoError(t, err)
	rpt, err = fx.svc.SubmitForReview(ctx, tenantID, rpt.ID, operator(tenantID))
	require.NoError(t, err)

	rpt, err = fx.svc.Reject(ctx, tenantID, rpt.ID, "opening balances look off", manager(tenantID))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, rpt.Status)
	require.Nil(t, rpt.ApprovedBy)
	require.Nil(t, rpt.ApprovedAt)
	require.NotNil(t, rpt.ReviewedBy)
	require.Equal(t, "opening balances look off", rpt.ReviewNotes)
}

func TestSubmitToTTBRequiresConfirmation(t *testing.T) {
	fx := newFixture(t)
	tenantID := uuid.New()
	ctx := context.Background()

	rpt, err := fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, operator(tenantID))
	require.NoError(t, err)
	rpt, err = fx.svc.SubmitForReview(ctx, tenantID, rpt.ID, operator(tenantID))
	require.NoError(t, err)
	rpt, err = fx.svc.Approve(ctx, tenantID, rpt.ID, "", manager(tenantID))
	require.NoError(t, err)

	_, err = fx.svc.SubmitToTTB(ctx, tenantID, rpt.ID, "   ", manager(tenantID))
	require.ErrorIs(t, err, ErrTransitionDenied)

	stored, err := fx.repo.GetByID(ctx, tenantID, rpt.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, stored.Status)
	require.Empty(t, stored.TTBConfirmation)
}

func TestInvalidTransitionLeavesReportUntouched(t *testing.T) {
	fx := newFixture(t)
	tenantID := uuid.New()
	ctx := context.Background()

	rpt, err := fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, operator(tenantID))
	require.NoError(t, err)

	_, err = fx.svc.Archive(ctx, tenantID, rpt.ID, manager(tenantID))
	require.ErrorIs(t, err, ErrTransitionDenied)

	stored, err := fx.repo.GetByID(ctx, tenantID, rpt.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	fx := newFixture(t)
	fx.notifier.failAll = true
	tenantID := uuid.New()
	ctx := context.Background()

	rpt, err := fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, operator(tenantID))
	require.NoError(t, err)
	rpt, err = fx.svc.SubmitForReview(ctx, tenantID, rpt.ID, operator(tenantID))
	require.NoError(t, err)
	require.Equal(t, StatusPendingReview, rpt.Status)

	stored, err := fx.repo.GetByID(ctx, tenantID, rpt.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingReview, stored.Status)
}

func TestDuplicatePeriodRejected(t *testing.T) {
	fx := newFixture(t)
	tenantID := uuid.New()
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, operator(tenantID))
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, operator(tenantID))
	require.ErrorIs(t, err, ErrDuplicateReport)
}

func TestTransitionsAreAudited(t *testing.T) {
	fx := newFixture(t)
	tenantID := uuid.New()
	ctx := context.Background()

	actor := operator(tenantID)
	actor.IP = "10.1.2.3"
	actor.UserAgent = "barrelbook-cli/1.0"

	rpt, err := fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, actor)
	require.NoError(t, err)
	_, err = fx.svc.SubmitForReview(ctx, tenantID, rpt.ID, actor)
	require.NoError(t, err)

	require.Len(t, fx.auditor.changes, 2)
	require.Equal(t, audit.ActionCreate, fx.auditor.changes[0].Action)
	require.Equal(t, audit.ActionUpdate, fx.auditor.changes[1].Action)
	old, ok := fx.auditor.changes[1].Old.(MonthlyReport)
	require.True(t, ok)
	require.Equal(t, StatusDraft, old.Status)

	for _, change := range fx.auditor.changes {
		require.Equal(t, "10.1.2.3", change.IP)
		require.Equal(t, "barrelbook-cli/1.0", change.UserAgent)
	}
}

func TestTransitionsAreCounted(t *testing.T) {
	fx := newFixture(t)
	metrics := &recordingMetrics{}
	fx.svc.WithMetrics(metrics)
	tenantID := uuid.New()
	ctx := context.Background()

	rpt, err := fx.svc.Create(ctx, tenantID, 7, 2024, FormInventory, operator(tenantID))
	require.NoError(t, err)
	_, err = fx.svc.SubmitForReview(ctx, tenantID, rpt.ID, operator(tenantID))
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, tenantID, rpt.ID, "", manager(tenantID))
	require.NoError(t, err)

	// A refused transition leaves the counter alone.
	_, err = fx.svc.Archive(ctx, tenantID, rpt.ID, manager(tenantID))
	require.ErrorIs(t, err, ErrTransitionDenied)

	require.Equal(t, []string{"SUBMIT_FOR_REVIEW", "APPROVE"}, metrics.transitions)
}

func TestLockingStatusesMatchAuditAuthority(t *testing.T) {
	all := []Status{StatusDraft, StatusPendingReview, StatusApproved, StatusSubmitted, StatusArchived}
	var locking []string
	for _, s := range all {
		if s.Locking() {
			locking = append(locking, string(s))
		}
	}
	require.ElementsMatch(t, audit.LockingStatuses, locking)
}
