package workflow

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"casereview/internal/cases/models"
	id "casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
)

func TestTransitionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	overdue := now.Add(-time.Hour)

	properties.Property("refused edges fail with IllegalTransition and leave the case unchanged", prop.ForAll(
		func(kindIdx, fromIdx, toIdx int) bool {
			kind := models.Kinds[kindIdx]
			from := models.Statuses[fromIdx]
			to := models.Statuses[toIdx]
			if CanTransition(from, to, kind) {
				return true
			}
			c := &models.Case{ID: id.NewCaseID(), Kind: kind, Status: from, DueDate: &overdue, Version: 1}
			next, err := Transition(c, to, models.Actor{ID: "reviewer-1"}, "note", now)
			return next == nil &&
				dErrors.HasCode(err, dErrors.CodeIllegalTransition) &&
				c.Status == from && c.Version == 1 && len(c.Comments) == 0
		},
		gen.IntRange(0, len(models.Kinds)-1),
		gen.IntRange(0, len(models.Statuses)-1),
		gen.IntRange(0, len(models.Statuses)-1),
	))

	properties.Property("legal edges land on the requested status", prop.ForAll(
		func(kindIdx, fromIdx, toIdx int) bool {
			kind := models.Kinds[kindIdx]
			from := models.Statuses[fromIdx]
			to := models.Statuses[toIdx]
			if !CanTransition(from, to, kind) {
				return true
			}
			c := &models.Case{ID: id.NewCaseID(), Kind: kind, Status: from, DueDate: &overdue, Version: 1}
			next, err := Transition(c, to, models.Actor{ID: "reviewer-1"}, "", now)
			return err == nil && next.Status == to && next.Version == 2 && c.Status == from
		},
		gen.IntRange(0, len(models.Kinds)-1),
		gen.IntRange(0, len(models.Statuses)-1),
		gen.IntRange(0, len(models.Statuses)-1),
	))

	properties.Property("terminal statuses only lead to archival", prop.ForAll(
		func(kindIdx, fromIdx, toIdx int) bool {
			from := models.Statuses[fromIdx]
			to := models.Statuses[toIdx]
			if !from.IsTerminal() || !CanTransition(from, to, models.Kinds[kindIdx]) {
				return true
			}
			return to == models.StatusArchived
		},
		gen.IntRange(0, len(models.Kinds)-1),
		gen.IntRange(0, len(models.Statuses)-1),
		gen.IntRange(0, len(models.Statuses)-1),
	))

	properties.TestingRun(t)
}
