// Package workflow holds the legal-edge tables for case statuses and applies transitions.
//
// Transition never mutates its input: it returns the next case value for the
// registry to persist and audit, or an error naming the refused edge.
package workflow

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"casereview/internal/cases/models"
	dErrors "casereview/pkg/domain-errors"
)

type edgeSet map[models.Status][]models.Status

var baseEdges = edgeSet{
	models.StatusDraft:            {models.StatusSubmitted},
	models.StatusSubmitted:        {models.StatusUnderReview},
	models.StatusUnderReview:      {models.StatusApproved, models.StatusRejected, models.StatusRequiresRevision},
	models.StatusRequiresRevision: {models.StatusSubmitted},
	models.StatusApproved:         {models.StatusArchived},
	models.StatusRejected:         {models.StatusArchived},
	models.StatusExpired:          {models.StatusArchived},
}

// Flags are raised already submitted and may be closed as resolved; they are never sent back for revision.
var visaFlagEdges = edgeSet{
	models.StatusSubmitted:   {models.StatusUnderReview},
	models.StatusUnderReview: {models.StatusApproved, models.StatusRejected, models.StatusResolved},
	models.StatusApproved:    {models.StatusArchived},
	models.StatusRejected:    {models.StatusArchived},
	models.StatusResolved:    {models.StatusArchived},
	models.StatusExpired:     {models.StatusArchived},
}

// Notices are acknowledged, not approved.
var noticeEdges = edgeSet{
	models.StatusDraft:       {models.StatusSubmitted},
	models.StatusSubmitted:   {models.StatusUnderReview},
	models.StatusUnderReview: {models.StatusResolved},
	models.StatusResolved:    {models.StatusArchived},
	models.StatusExpired:     {models.StatusArchived},
}

var edgesByKind = map[models.Kind]edgeSet{
	models.KindApplication:        baseEdges,
	models.KindEquityVerification: baseEdges,
	models.KindBoardResolution:    baseEdges,
	models.KindVisaFlag:           visaFlagEdges,
	models.KindNotice:             noticeEdges,
}

// uses reports whether status appears anywhere in the kind's table.
func (e edgeSet) uses(status models.Status) bool {
	if _, ok := e[status]; ok {
		return true
	}
	for _, targets := range e {
		if slices.Contains(targets, status) {
			return true
		}
	}
	return false
}

// CanTransition reports whether from→to is a legal edge for kind.
// Expiry is legal from any non-terminal status the kind uses; whether the due
// date has actually elapsed is checked by Transition.
func CanTransition(from, to models.Status, kind models.Kind) bool {
	edges, ok := edgesByKind[kind]
	if !ok || !edges.uses(from) {
		return false
	}
	if to == models.StatusExpired {
		return !from.IsTerminal()
	}
	return slices.Contains(edges[from], to)
}

// AllowedTargets lists the statuses reachable from the given status in one step.
func AllowedTargets(from models.Status, kind models.Kind) []models.Status {
	var out []models.Status
	for _, to := range models.Statuses {
		if CanTransition(from, to, kind) {
			out = append(out, to)
		}
	}
	return out
}

// Transition moves c to status to on behalf of actor and returns the new case value.
// c itself is left untouched whether or not the transition succeeds.
func Transition(c *models.Case, to models.Status, actor models.Actor, comment string, now time.Time) (*models.Case, error) {
	if c == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "case is required")
	}
	if !CanTransition(c.Status, to, c.Kind) {
		return nil, illegal(c, to, now, fmt.Sprintf("illegal transition %s -> %s for %s", c.Status, to, c.Kind))
	}
	if to == models.StatusExpired && !c.IsOverdue(now) {
		return nil, illegal(c, to, now, fmt.Sprintf("illegal transition %s -> %s: due date has not elapsed", c.Status, to))
	}
	actorID := strings.TrimSpace(actor.ID)
	if to == models.StatusUnderReview && actorID == "" {
		return nil, dErrors.WithDetails(
			dErrors.New(dErrors.CodeMissingReviewer, "a reviewer is required to start review"),
			details(c, to, now),
		)
	}

	next := c.Clone()
	next.Status = to
	next.LastUpdatedAt = now
	next.Version++
	if to == models.StatusUnderReview {
		next.Reviewer = actorID
	}
	if body := strings.TrimSpace(comment); body != "" {
		next.Comments = append(next.Comments, models.Comment{Author: actorID, Body: body, CreatedAt: now})
	}
	return next, nil
}

func illegal(c *models.Case, to models.Status, now time.Time, msg string) error {
	return dErrors.WithDetails(dErrors.New(dErrors.CodeIllegalTransition, msg), details(c, to, now))
}

func details(c *models.Case, to models.Status, now time.Time) map[string]string {
	return map[string]string{
		dErrors.DetailCaseID: c.ID.String(),
		dErrors.DetailFrom:   string(c.Status),
		dErrors.DetailTo:     string(to),
		dErrors.DetailKind:   string(c.Kind),
		dErrors.DetailAt:     now.UTC().Format(time.RFC3339Nano),
	}
}
