package audit

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Filter narrows a query. Zero-valued fields do not constrain; set fields are ANDed.
type Filter struct {
	// Text is a case-insensitive substring matched against actor name, action,
	// entity name and description.
	Text       string
	EntityType EntityType
	EntityID   string
	Severity   Severity
	Outcome    Outcome
	ActorID    string
	// From and To bound the timestamp inclusively.
	From time.Time
	To   time.Time
}

// IsEmpty reports whether the filter matches every fact.
func (f Filter) IsEmpty() bool {
	return f == Filter{}
}

// Matches reports whether fact satisfies every set constraint.
func (f Filter) Matches(fact Fact) bool {
	if f.EntityType != "" && fact.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && fact.EntityID != f.EntityID {
		return false
	}
	if f.Severity != "" && fact.Severity != f.Severity {
		return false
	}
	if f.Outcome != "" && fact.Outcome != f.Outcome {
		return false
	}
	if f.ActorID != "" && fact.ActorID != f.ActorID {
		return false
	}
	if !f.From.IsZero() && fact.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && fact.Timestamp.After(f.To) {
		return false
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		return containsFold(text, fact.ActorName, fact.Action, fact.EntityName, fact.Description)
	}
	return true
}

func containsFold(needle string, haystacks ...string) bool {
	fold := cases.Fold()
	n := fold.String(needle)
	for _, h := range haystacks {
		if strings.Contains(fold.String(h), n) {
			return true
		}
	}
	return false
}
