package handler

import (
	"strings"
	"time"

	"casereview/internal/cases/models"
	"casereview/internal/cases/service"
	id "casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
	platformstrings "casereview/pkg/platform/strings"
	"casereview/pkg/platform/validation"
)

// StakeRequest is one party of a submitted equity breakdown.
type StakeRequest struct {
	PartyName        string     `json:"partyName" validate:"required,notblank"`
	Nationality      string     `json:"nationality" validate:"required,notblank"`
	Percentage       id.Decimal `json:"percentage"`
	InvestmentAmount id.Decimal `json:"investmentAmount"`
}

// SubmitRequest is the body of POST /cases.
type SubmitRequest struct {
	Kind            string         `json:"kind" validate:"required"`
	Title           string         `json:"title" validate:"required,notblank"`
	Company         string         `json:"company"`
	Priority        string         `json:"priority" validate:"required,oneof=critical high medium low"`
	SubmittedBy     string         `json:"submittedBy" validate:"required,notblank"`
	DueDate         *time.Time     `json:"dueDate"`
	EquityBreakdown []StakeRequest `json:"equityBreakdown" validate:"dive"`
	TotalInvestment *id.Decimal    `json:"totalInvestment"`
	Submit          bool           `json:"submit"`
}

// Normalize trims free-text fields and lowercases the priority.
func (r *SubmitRequest) Normalize() {
	if r == nil {
		return
	}
	platformstrings.TrimAll(&r.Kind, &r.Title, &r.Company, &r.SubmittedBy)
	r.Priority = strings.ToLower(strings.TrimSpace(r.Priority))
	for i := range r.EquityBreakdown {
		platformstrings.TrimAll(&r.EquityBreakdown[i].PartyName, &r.EquityBreakdown[i].Nationality)
	}
}

// Validate checks that the request is well-formed. Equity sums and kind rules
// are checked by the registry.
func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Struct(r); err != nil {
		return err
	}
	if !models.Kind(r.Kind).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "kind must be one of Application, VisaFlag, EquityVerification, BoardResolution, Notice")
	}
	if err := validation.CheckStringLength("title", r.Title, validation.MaxTitleLength); err != nil {
		return err
	}
	if err := validation.CheckStringLength("company", r.Company, validation.MaxCompanyLength); err != nil {
		return err
	}
	return validation.CheckSliceCount("equity stakes", len(r.EquityBreakdown), validation.MaxEquityStakes)
}

// Command converts a validated request into a registry command.
func (r *SubmitRequest) Command(actor models.Actor) service.SubmitCommand {
	var stakes []id.EquityStake
	for _, st := range r.EquityBreakdown {
		stakes = append(stakes, id.EquityStake(st))
	}
	return service.SubmitCommand{
		Kind:            models.Kind(r.Kind),
		Title:           r.Title,
		Company:         r.Company,
		Priority:        models.Priority(r.Priority),
		SubmittedBy:     r.SubmittedBy,
		DueDate:         r.DueDate,
		EquityBreakdown: stakes,
		TotalInvestment: r.TotalInvestment,
		Submit:          r.Submit,
		Actor:           actor,
	}
}

// DecisionRequest is the body of POST /cases/{id}/decisions. Clients should
// send the expectedVersion they read; omitting it decides against whatever
// version is current on arrival.
type DecisionRequest struct {
	Status          string `json:"status" validate:"required"`
	Comment         string `json:"comment"`
	ExpectedVersion int64  `json:"expectedVersion" validate:"gte=0"`
}

func (r *DecisionRequest) Normalize() {
	if r == nil {
		return
	}
	platformstrings.TrimAll(&r.Status, &r.Comment)
}

func (r *DecisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Struct(r); err != nil {
		return err
	}
	if !models.Status(r.Status).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "status is not a known case status")
	}
	return validation.CheckStringLength("comment", r.Comment, validation.MaxCommentLength)
}
