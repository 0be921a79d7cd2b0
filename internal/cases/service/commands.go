package service

import (
	"strings"
	"time"

	"casereview/internal/cases/models"
	id "casereview/pkg/domain"
)

// SubmitCommand carries a new case as entered by the submitting company.
type SubmitCommand struct {
	Kind            models.Kind
	Title           string
	Company         string
	Priority        models.Priority
	SubmittedBy     string
	DueDate         *time.Time
	EquityBreakdown []id.EquityStake
	TotalInvestment *id.Decimal
	// Submit skips Draft and files the case straight away.
	Submit bool
	// Actor defaults to the submitter.
	Actor models.Actor
}

func (c SubmitCommand) actor() models.Actor {
	if strings.TrimSpace(c.Actor.ID) != "" {
		return c.Actor
	}
	return models.Actor{ID: strings.TrimSpace(c.SubmittedBy), Name: strings.TrimSpace(c.SubmittedBy), Role: "submitter"}
}

// DecideCommand moves a case to a new status.
type DecideCommand struct {
	CaseID  id.CaseID
	To      models.Status
	Actor   models.Actor
	Comment string
	// ExpectedVersion must match the stored version. Zero means the version
	// the registry reads when the decision arrives, before it waits for the
	// case lock: a decision that queues behind another one fails with
	// ConcurrentModification, but a decision that arrives after another has
	// committed applies on top of it unseen. Clients that care about what
	// they are overriding must send the version they read.
	ExpectedVersion int64
}
