package models

import (
	"slices"
	"strings"
	"time"

	"casereview/internal/compliance"
	id "casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
)

// Comment is one reviewer remark. Comments are append-only.
type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Case is a reviewable record. Kind-specific data lives in optional fields;
// equity-bearing cases carry EquityBreakdown and TotalInvestment.
type Case struct {
	ID              id.CaseID          `json:"id"`
	Kind            Kind               `json:"kind"`
	Title           string             `json:"title"`
	Company         string             `json:"company,omitempty"`
	Status          Status             `json:"status"`
	Priority        Priority           `json:"priority"`
	SubmittedBy     string             `json:"submittedBy"`
	SubmittedAt     time.Time          `json:"submittedAt"`
	DueDate         *time.Time         `json:"dueDate,omitempty"`
	LastUpdatedAt   time.Time          `json:"lastUpdatedAt"`
	Version         int64              `json:"version"`
	Reviewer        string             `json:"reviewer,omitempty"`
	Comments        []Comment          `json:"comments"`
	EquityBreakdown []id.EquityStake   `json:"equityBreakdown,omitempty"`
	TotalInvestment *id.Decimal        `json:"totalInvestment,omitempty"`
	Compliance      *compliance.Result `json:"compliance,omitempty"`
}

// NewCase builds a case at its initial status, enforcing the structural invariants
// that do not depend on compliance policy.
func NewCase(caseID id.CaseID, kind Kind, title string, priority Priority, submittedBy string, now time.Time) (*Case, error) {
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown case kind")
	}
	if strings.TrimSpace(title) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(title) > 256 {
		return nil, dErrors.New(dErrors.CodeValidation, "title must be 256 characters or less")
	}
	if !priority.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "priority must be one of critical, high, medium, low")
	}
	if strings.TrimSpace(submittedBy) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "submittedBy is required")
	}
	return &Case{
		ID:            caseID,
		Kind:          kind,
		Title:         title,
		Status:        InitialStatus(kind),
		Priority:      priority,
		SubmittedBy:   submittedBy,
		SubmittedAt:   now,
		LastUpdatedAt: now,
		Version:       1,
		Comments:      []Comment{},
	}, nil
}

// InitialStatus is the status a new case of kind starts in.
func InitialStatus(kind Kind) Status {
	if kind == KindVisaFlag {
		return StatusSubmitted
	}
	return StatusDraft
}

// CarriesEquity reports whether compliance evaluation applies to the case.
func (c *Case) CarriesEquity() bool {
	return c.Kind == KindEquityVerification || len(c.EquityBreakdown) > 0
}

// IsOverdue reports whether the due date has passed without a terminal decision.
func (c *Case) IsOverdue(now time.Time) bool {
	return c.DueDate != nil && !c.Status.IsTerminal() && now.After(*c.DueDate)
}

// Classification returns the attached compliance classification, or "".
func (c *Case) Classification() compliance.Classification {
	if c.Compliance == nil {
		return ""
	}
	return c.Compliance.Classification
}

// Clone returns a copy that shares no mutable state with c.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Comments = slices.Clone(c.Comments)
	if cp.Comments == nil {
		cp.Comments = []Comment{}
	}
	cp.EquityBreakdown = slices.Clone(c.EquityBreakdown)
	if c.DueDate != nil {
		due := *c.DueDate
		cp.DueDate = &due
	}
	if c.TotalInvestment != nil {
		total := *c.TotalInvestment
		cp.TotalInvestment = &total
	}
	if c.Compliance != nil {
		res := *c.Compliance
		cp.Compliance = &res
	}
	return &cp
}
