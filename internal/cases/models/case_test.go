package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
)

func TestNewCase(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("starts drafts at version one", func(t *testing.T) {
		c, err := NewCase(id.NewCaseID(), KindApplication, "Mining licence", PriorityHigh, "acme-ltd", now)
		require.NoError(t, err)
		assert.Equal(t, StatusDraft, c.Status)
		assert.Equal(t, int64(1), c.Version)
		assert.Equal(t, now, c.SubmittedAt)
		assert.Equal(t, now, c.LastUpdatedAt)
		assert.NotNil(t, c.Comments)
	})

	t.Run("visa flags are raised already submitted", func(t *testing.T) {
		c, err := NewCase(id.NewCaseID(), KindVisaFlag, "Overstay", PriorityMedium, "immigration", now)
		require.NoError(t, err)
		assert.Equal(t, StatusSubmitted, c.Status)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		invalid := []struct {
			name     string
			kind     Kind
			title    string
			priority Priority
			by       string
		}{
			{"unknown kind", Kind("Permit"), "t", PriorityLow, "x"},
			{"blank title", KindNotice, "  ", PriorityLow, "x"},
			{"unknown priority", KindNotice, "t", Priority("urgent"), "x"},
			{"missing submitter", KindNotice, "t", PriorityLow, ""},
		}
		for _, tc := range invalid {
			_, err := NewCase(id.NewCaseID(), tc.kind, tc.title, tc.priority, tc.by, now)
			require.Error(t, err, tc.name)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), tc.name)
		}
	})
}

func TestCaseClone(t *testing.T) {
	due := time.Now()
	total := id.MustDecimal("100")
	orig := &Case{
		Comments:        []Comment{{Author: "a", Body: "first"}},
		EquityBreakdown: []id.EquityStake{{PartyName: "p", Nationality: "Ghana", Percentage: id.MustDecimal("100")}},
		DueDate:         &due,
		TotalInvestment: &total,
	}

	cp := orig.Clone()
	cp.Comments = append(cp.Comments, Comment{Body: "second"})
	cp.Comments[0].Body = "edited"
	cp.EquityBreakdown[0].PartyName = "q"
	*cp.DueDate = due.Add(time.Hour)

	assert.Equal(t, "first", orig.Comments[0].Body)
	assert.Len(t, orig.Comments, 1)
	assert.Equal(t, "p", orig.EquityBreakdown[0].PartyName)
	assert.Equal(t, due, *orig.DueDate)
	assert.Nil(t, (*Case)(nil).Clone())
}

func TestIsOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Case{Status: StatusUnderReview, DueDate: &past}).IsOverdue(now))
	assert.False(t, (&Case{Status: StatusUnderReview, DueDate: &future}).IsOverdue(now))
	assert.False(t, (&Case{Status: StatusApproved, DueDate: &past}).IsOverdue(now))
	assert.False(t, (&Case{Status: StatusDraft}).IsOverdue(now))
}

func TestStatusClassification(t *testing.T) {
	for _, s := range []Status{StatusApproved, StatusRejected, StatusResolved, StatusArchived, StatusExpired} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []Status{StatusDraft, StatusSubmitted, StatusUnderReview, StatusRequiresRevision} {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.Less(t, PriorityCritical.Rank(), PriorityLow.Rank())
}
