package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntityType identifies what a state-transition audit entry refers to
type AuditEntityType string

const (
	AuditEntityCheck  AuditEntityType = "COMPLIANCE_CHECK"
	AuditEntityReport AuditEntityType = "REGULATORY_REPORT"
	AuditEntityRule   AuditEntityType = "COMPLIANCE_RULE"
)

// AuditEntry is an immutable record of one state transition.
// This record can NEVER be modified or deleted once appended.
type AuditEntry struct {
	EntryID    uuid.UUID       `json:"entry_id" db:"entry_id"`
	EntityType AuditEntityType `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	ActorID    uuid.UUID       `json:"actor_id" db:"actor_id"`
	FromState  string          `json:"from_state" db:"from_state"`
	ToState    string          `json:"to_state" db:"to_state"`
	Notes      string          `json:"notes,omitempty" db:"notes"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}

// NewAuditEntry creates a transition record with auto-generated ID and timestamp.
func NewAuditEntry(entityType AuditEntityType, entityID, actorID uuid.UUID, from, to, notes string) *AuditEntry {
	return &AuditEntry{
		EntryID:    uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		FromState:  from,
		ToState:    to,
		Notes:      notes,
		Timestamp:  time.Now().UTC(),
	}
}

// AuditEntryFilter for querying the transition log
type AuditEntryFilter struct {
	EntityType *AuditEntityType
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}
