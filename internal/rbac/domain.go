// Package rbac defines the actor roles recognised by the compliance engine.
package rbac

// Role identifies an actor's access class.
type Role string

const (
	// RoleAdmin has full access including report review.
	RoleAdmin Role = "ADMIN"
	// RoleComplianceManager may review and approve compliance reports.
	RoleComplianceManager Role = "COMPLIANCE_MANAGER"
	// RoleOperator records production and manual ledger entries.
	RoleOperator Role = "OPERATOR"
	// RoleViewer has read-only access.
	RoleViewer Role = "VIEWER"
)

// Known reports whether the role is one the system recognises.
func Known(r Role) bool {
	switch r {
	case RoleAdmin, RoleComplianceManager, RoleOperator, RoleViewer:
		return true
	default:
		return false
	}
}

// CanReviewReports reports whether the role is reviewer-eligible for
// monthly report approval.
func CanReviewReports(r Role) bool {
	return r == RoleAdmin || r == RoleComplianceManager
}

// CanMutateLedger reports whether the role may write manual ledger entries.
func CanMutateLedger(r Role) bool {
	return r == RoleAdmin || r == RoleComplianceManager || r == RoleOperator
}
