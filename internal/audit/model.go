package audit

import (
	"time"

	"github.com/google/uuid"
)

// EntityType names the kind of record an audit entry refers to.
type EntityType string

const (
	EntityAccount            EntityType = "ACCOUNT"
	EntityBankAccount        EntityType = "BANK_ACCOUNT"
	EntityBankReconciliation EntityType = "BANK_RECONCILIATION"
	EntityBankStatement      EntityType = "BANK_STATEMENT"
)

// Action enumerates the recorded operations.
type Action string

const (
	ActionCreate    Action = "CREATE"
	ActionUpdate    Action = "UPDATE"
	ActionDelete    Action = "DELETE"
	ActionView      Action = "VIEW"
	ActionReconcile Action = "RECONCILE"
	ActionUpload    Action = "UPLOAD"
	ActionDownload  Action = "DOWNLOAD"
)

// Entry is an immutable audit record. Entries are created, never mutated.
type Entry struct {
	ID             uuid.UUID
	EntityType     EntityType
	EntityID       uuid.UUID
	Action         Action
	Changes        map[string]any
	ActorID        uuid.UUID
	OrganisationID uuid.UUID
	BranchID       uuid.UUID
	OccurredAt     time.Time
}

// Filters narrows listing queries. Zero values mean no filtering.
type Filters struct {
	EntityType EntityType
	Action     Action
	From       time.Time
	To         time.Time
	Page       int
	PageSize   int
}
