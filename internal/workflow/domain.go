// Package workflow governs the monthly report lifecycle from draft
// through regulatory submission and archive.
package workflow

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/barrelbook/barrelbook/internal/audit"
)

// FormType selects which report variant a monthly report carries.
type FormType string

const (
	FormInventory FormType = "INVENTORY_FORM"
	FormStorage   FormType = "STORAGE_FORM"
)

// Valid reports whether the form type is known.
func (f FormType) Valid() bool {
	return f == FormInventory || f == FormStorage
}

// Status is the workflow state of a monthly report.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusSubmitted     Status = "SUBMITTED"
	StatusArchived      Status = "ARCHIVED"
)

// Locking reports whether the status locks the report's period against
// manual ledger mutation. The status set itself lives with the lock
// authority in the audit package.
func (s Status) Locking() bool {
	return slices.Contains(audit.LockingStatuses, string(s))
}

// Action enumerates workflow operations.
type Action string

const (
	ActionSubmitForReview Action = "SUBMIT_FOR_REVIEW"
	ActionApprove         Action = "APPROVE"
	ActionReject          Action = "REJECT"
	ActionSubmitToTTB     Action = "SUBMIT_TO_TTB"
	ActionArchive         Action = "ARCHIVE"
)

// transitions is the full state machine. Any (status, action) pair not
// listed here is invalid.
var transitions = map[Action]struct {
	From Status
	To   Status
}{
	ActionSubmitForReview: {From: StatusDraft, To: StatusPendingReview},
	ActionApprove:         {From: StatusPendingReview, To: StatusApproved},
	ActionReject:          {From: StatusPendingReview, To: StatusDraft},
	ActionSubmitToTTB:     {From: StatusApproved, To: StatusSubmitted},
	ActionArchive:         {From: StatusSubmitted, To: StatusArchived},
}

// Next returns the target status for an action applied in the given
// state, and whether the transition is allowed.
func Next(from Status, action Action) (Status, bool) {
	t, ok := transitions[action]
	if !ok || t.From != from {
		return from, false
	}
	return t.To, true
}

// MonthlyReport is the persisted report record. It is mutable across its
// lifecycle and never destroyed, only archived.
type MonthlyReport struct {
	ID               uuid.UUID  `json:"id"`
	TenantID         uuid.UUID  `json:"tenant_id"`
	Month            int        `json:"month"`
	Year             int        `json:"year"`
	FormType         FormType   `json:"form_type"`
	Status           Status     `json:"status"`
	ValidationErrors []string   `json:"validation_errors,omitempty"`
	PDFPath          string     `json:"pdf_path,omitempty"`
	SubmittedBy      *int64     `json:"submitted_by,omitempty"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	ReviewedBy       *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	ApprovedBy       *int64     `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	ReviewNotes      string     `json:"review_notes,omitempty"`
	TTBConfirmation  string     `json:"ttb_confirmation,omitempty"`
	TTBSubmittedAt   *time.Time `json:"ttb_submitted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

var (
	// ErrReportNotFound indicates a missing monthly report.
	ErrReportNotFound = errors.New("workflow: report not found")
	// ErrDuplicateReport indicates a report already exists for the
	// tenant, period and form type.
	ErrDuplicateReport = errors.New("workflow: report already exists for period")
	// ErrTransitionDenied is the match target for all guard and
	// state-machine failures.
	ErrTransitionDenied = errors.New("workflow: transition denied")
)

// TransitionError is the structured failure returned when a transition
// or its guard is refused. The report is left untouched.
type TransitionError struct {
	Action Action
	From   Status
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("workflow: %s from %s refused: %s", e.Action, e.From, e.Reason)
}

// Unwrap lets callers match ErrTransitionDenied.
func (e *TransitionError) Unwrap() error {
	return ErrTransitionDenied
}

func denied(action Action, from Status, reason string) *TransitionError {
	return &TransitionError{Action: action, From: from, Reason: reason}
}
