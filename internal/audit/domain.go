// Package audit keeps the immutable change log for ledger mutations and
// is the single authority for period-lock queries.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action enumerates audited mutation kinds.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// LockingStatuses are the monthly report statuses that freeze a period
// against manual ledger mutation. The workflow state machine derives its
// Locking predicate from this list.
var LockingStatuses = []string{"APPROVED", "SUBMITTED", "ARCHIVED"}

// Change describes a mutation to be recorded. Old is nil for creates and
// New is nil for deletes.
type Change struct {
	TenantID   uuid.UUID
	EntityType string
	EntityID   string
	Action     Action
	Old        any
	New        any
	ActorID    int64
	IP         string
	UserAgent  string
}

// Entry is a persisted audit record.
type Entry struct {
	ID          int64
	TenantID    uuid.UUID
	EntityType  string
	EntityID    string
	Action      Action
	OldValue    []byte
	NewValue    []byte
	ActorID     int64
	IP          string
	UserAgent   string
	Description string
	At          time.Time
}

// TimelineFilters narrows timeline queries.
type TimelineFilters struct {
	TenantID   uuid.UUID
	EntityType string
	Action     string
	From       time.Time
	To         time.Time
	Page       int
	PageSize   int
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
}

// TimelineResult bundles rows with paging.
type TimelineResult struct {
	Rows   []Entry
	Paging PagingInfo
}
