// Package domain provides type-safe identifiers and exact numeric values shared across modules.
package domain

import (
	"github.com/google/uuid"

	dErrors "casereview/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a FactID where a CaseID is expected.
type (
	CaseID uuid.UUID
	FactID uuid.UUID
)

// NewCaseID returns a random case identifier.
func NewCaseID() CaseID { return CaseID(uuid.New()) }

// NewFactID returns a random audit fact identifier.
func NewFactID() FactID { return FactID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseCaseID(s string) (CaseID, error) {
	id, err := parseUUID(s, "case ID")
	return CaseID(id), err
}

func ParseFactID(s string) (FactID, error) {
	id, err := parseUUID(s, "fact ID")
	return FactID(id), err
}

// String methods - for logging and debugging.

func (id CaseID) String() string { return uuid.UUID(id).String() }
func (id FactID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id CaseID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FactID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text encoding keeps IDs as plain UUID strings on the wire.

func (id CaseID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id FactID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CaseID) UnmarshalText(b []byte) error {
	parsed, err := ParseCaseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *FactID) UnmarshalText(b []byte) error {
	parsed, err := ParseFactID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here so store lookups return proper "not found" errors;
// use IsNil() at the service layer for business validation.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+label+" format")
	}
	return id, nil
}
