package audit

import (
	"time"

	id "casereview/pkg/domain"
)

// Severity grades how much attention a fact deserves.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Outcome records whether the audited operation took effect.
type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeFailed  Outcome = "Failed"
	OutcomeWarning Outcome = "Warning"
)

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailed, OutcomeWarning:
		return true
	}
	return false
}

// EntityType categorises the audited entity and, with it, the action vocabulary.
type EntityType string

const (
	EntityCase   EntityType = "case"
	EntitySystem EntityType = "system"
	EntityAuth   EntityType = "auth"
)

// StateSnapshot captures the parts of an entity a status-change fact compares.
type StateSnapshot struct {
	Status         string `json:"status"`
	Classification string `json:"classification,omitempty"`
}

// Input is what a caller supplies to Record. Identity, time and chaining are assigned by the recorder.
type Input struct {
	ActorID     string
	ActorName   string
	ActorRole   string
	Action      string
	EntityType  EntityType
	EntityID    string
	EntityName  string
	Description string
	Severity    Severity
	Outcome     Outcome
	BeforeState *StateSnapshot
	AfterState  *StateSnapshot
	Detail      map[string]string
}

// Fact is an immutable audit record. Sequence is assigned by the store; Hash
// covers every other field and chains to the previous fact of the same entity.
type Fact struct {
	ID          id.FactID         `json:"id"`
	Sequence    int64             `json:"sequence"`
	Timestamp   time.Time         `json:"timestamp"`
	ActorID     string            `json:"actorId"`
	ActorName   string            `json:"actorName,omitempty"`
	ActorRole   string            `json:"actorRole,omitempty"`
	Action      string            `json:"action"`
	EntityType  EntityType        `json:"entityType"`
	EntityID    string            `json:"entityId"`
	EntityName  string            `json:"entityName,omitempty"`
	Description string            `json:"description,omitempty"`
	Severity    Severity          `json:"severity"`
	Outcome     Outcome           `json:"outcome"`
	BeforeState *StateSnapshot    `json:"beforeState,omitempty"`
	AfterState  *StateSnapshot    `json:"afterState,omitempty"`
	Detail      map[string]string `json:"detail,omitempty"`
	PrevHash    string            `json:"prevHash"`
	Hash        string            `json:"hash"`
}
