package testutil

import (
	"time"

	"github.com/google/uuid"

	"casereview/internal/cases/models"
	"casereview/internal/compliance"
	id "casereview/pkg/domain"
)

// TestIDs provides pre-generated IDs for deterministic test data.
var TestIDs = struct {
	CaseID1 id.CaseID
	CaseID2 id.CaseID
	CaseID3 id.CaseID
}{
	CaseID1: id.CaseID(uuid.MustParse("c0000000-0000-0000-0000-000000000001")),
	CaseID2: id.CaseID(uuid.MustParse("c0000000-0000-0000-0000-000000000002")),
	CaseID3: id.CaseID(uuid.MustParse("c0000000-0000-0000-0000-000000000003")),
}

// FixedTime is the submission time builders default to.
var FixedTime = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// CaseBuilder provides a fluent interface for building test cases.
type CaseBuilder struct {
	c *models.Case
}

// NewCaseBuilder returns a Draft application submitted at FixedTime.
func NewCaseBuilder() *CaseBuilder {
	return &CaseBuilder{
		c: &models.Case{
			ID:            id.NewCaseID(),
			Kind:          models.KindApplication,
			Title:         "Test application",
			Company:       "Test Company Ltd",
			Status:        models.StatusDraft,
			Priority:      models.PriorityMedium,
			SubmittedBy:   "submitter@example.com",
			SubmittedAt:   FixedTime,
			LastUpdatedAt: FixedTime,
			Version:       1,
			Comments:      []models.Comment{},
		},
	}
}

func (b *CaseBuilder) WithID(caseID id.CaseID) *CaseBuilder {
	b.c.ID = caseID
	return b
}

func (b *CaseBuilder) WithKind(kind models.Kind) *CaseBuilder {
	b.c.Kind = kind
	return b
}

func (b *CaseBuilder) WithTitle(title string) *CaseBuilder {
	b.c.Title = title
	return b
}

func (b *CaseBuilder) WithCompany(company string) *CaseBuilder {
	b.c.Company = company
	return b
}

func (b *CaseBuilder) WithStatus(status models.Status) *CaseBuilder {
	b.c.Status = status
	return b
}

func (b *CaseBuilder) WithPriority(priority models.Priority) *CaseBuilder {
	b.c.Priority = priority
	return b
}

func (b *CaseBuilder) WithSubmittedBy(submitter string) *CaseBuilder {
	b.c.SubmittedBy = submitter
	return b
}

// SubmittedAt sets both the submission and last-update times.
func (b *CaseBuilder) SubmittedAt(t time.Time) *CaseBuilder {
	b.c.SubmittedAt = t
	b.c.LastUpdatedAt = t
	return b
}

func (b *CaseBuilder) DueAt(t time.Time) *CaseBuilder {
	b.c.DueDate = &t
	return b
}

func (b *CaseBuilder) WithVersion(v int64) *CaseBuilder {
	b.c.Version = v
	return b
}

func (b *CaseBuilder) WithReviewer(reviewer string) *CaseBuilder {
	b.c.Reviewer = reviewer
	return b
}

// WithEquity sets a two-party local/foreign breakdown whose investment
// amounts equal the percentages.
func (b *CaseBuilder) WithEquity(local, foreign string) *CaseBuilder {
	b.c.EquityBreakdown = []id.EquityStake{
		{PartyName: "Local Holdings", Nationality: compliance.DefaultLocalJurisdiction, Percentage: id.MustDecimal(local), InvestmentAmount: id.MustDecimal(local)},
		{PartyName: "Foreign Partners", Nationality: "Canada", Percentage: id.MustDecimal(foreign), InvestmentAmount: id.MustDecimal(foreign)},
	}
	total := id.DecimalFromInt(100)
	b.c.TotalInvestment = &total
	return b
}

func (b *CaseBuilder) WithCompliance(result compliance.Result) *CaseBuilder {
	b.c.Compliance = &result
	return b
}

func (b *CaseBuilder) Build() *models.Case {
	return b.c.Clone()
}
