package query

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	casemodels "casereview/internal/cases/models"
	"casereview/internal/compliance"
	id "casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
)

// CasePredicate is a Predicate over cases.
type CasePredicate = Predicate[*casemodels.Case]

// Text matches cases whose title, id, submitter or company contains q, case-insensitively.
func Text(q string) CasePredicate {
	q = strings.TrimSpace(q)
	if q == "" {
		return All[*casemodels.Case]()
	}
	return func(c *casemodels.Case) bool {
		fold := cases.Fold()
		needle := fold.String(q)
		for _, field := range []string{c.Title, c.ID.String(), c.SubmittedBy, c.Company} {
			if strings.Contains(fold.String(field), needle) {
				return true
			}
		}
		return false
	}
}

// StatusIn matches cases in any of statuses; no statuses matches all.
func StatusIn(statuses ...casemodels.Status) CasePredicate {
	return memberOf(statuses, func(c *casemodels.Case) casemodels.Status { return c.Status })
}

// PriorityIn matches cases with any of priorities; no priorities matches all.
func PriorityIn(priorities ...casemodels.Priority) CasePredicate {
	return memberOf(priorities, func(c *casemodels.Case) casemodels.Priority { return c.Priority })
}

// KindIn matches cases of any of kinds; no kinds matches all.
func KindIn(kinds ...casemodels.Kind) CasePredicate {
	return memberOf(kinds, func(c *casemodels.Case) casemodels.Kind { return c.Kind })
}

// Classifier reports the compliance classification of a case, or false when
// it has none.
type Classifier func(c *casemodels.Case) (compliance.Classification, bool)

// Attached classifies by the result stored on the case by its last decision.
func Attached(c *casemodels.Case) (compliance.Classification, bool) {
	if !c.CarriesEquity() || c.Compliance == nil {
		return "", false
	}
	return c.Compliance.Classification, true
}

// Evaluated classifies every equity case afresh from its breakdown, whatever
// its status. Breakdowns that fail validation have no classification.
func Evaluated(e *compliance.Evaluator, required id.Decimal) Classifier {
	return func(c *casemodels.Case) (compliance.Classification, bool) {
		if !c.CarriesEquity() {
			return "", false
		}
		res, err := e.Evaluate(c.EquityBreakdown, required)
		if err != nil {
			return "", false
		}
		return res.Classification, true
	}
}

// ClassificationIn matches equity cases that classify into one of classes.
// A nil classify means Attached.
func ClassificationIn(classify Classifier, classes ...compliance.Classification) CasePredicate {
	if len(classes) == 0 {
		return All[*casemodels.Case]()
	}
	if classify == nil {
		classify = Attached
	}
	return func(c *casemodels.Case) bool {
		got, ok := classify(c)
		return ok && slices.Contains(classes, got)
	}
}

// SubmittedBetween matches cases submitted within [from, to]. A zero bound is open.
func SubmittedBetween(from, to time.Time) CasePredicate {
	return func(c *casemodels.Case) bool {
		if !from.IsZero() && c.SubmittedAt.Before(from) {
			return false
		}
		if !to.IsZero() && c.SubmittedAt.After(to) {
			return false
		}
		return true
	}
}

func memberOf[V comparable](set []V, field func(*casemodels.Case) V) CasePredicate {
	if len(set) == 0 {
		return All[*casemodels.Case]()
	}
	return func(c *casemodels.Case) bool { return slices.Contains(set, field(c)) }
}

// SortField names a case attribute results can be ordered by.
type SortField string

const (
	SortSubmittedAt   SortField = "submittedAt"
	SortLastUpdatedAt SortField = "lastUpdatedAt"
	SortDueDate       SortField = "dueDate"
	SortPriority      SortField = "priority"
	SortStatus        SortField = "status"
	SortTitle         SortField = "title"
	SortID            SortField = "id"
)

// CompareBy returns the ascending comparator for field.
// Cases without a due date sort after those with one.
func CompareBy(field SortField) (func(a, b *casemodels.Case) int, error) {
	switch field {
	case "", SortSubmittedAt:
		return func(a, b *casemodels.Case) int { return a.SubmittedAt.Compare(b.SubmittedAt) }, nil
	case SortLastUpdatedAt:
		return func(a, b *casemodels.Case) int { return a.LastUpdatedAt.Compare(b.LastUpdatedAt) }, nil
	case SortDueDate:
		return compareDueDate, nil
	case SortPriority:
		return compareKeys(func(c *casemodels.Case) int { return c.Priority.Rank() }), nil
	case SortStatus:
		return compareKeys(func(c *casemodels.Case) int { return slices.Index(casemodels.Statuses, c.Status) }), nil
	case SortTitle:
		return compareKeys(func(c *casemodels.Case) string { return strings.ToLower(c.Title) }), nil
	case SortID:
		return compareKeys(func(c *casemodels.Case) string { return c.ID.String() }), nil
	}
	return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown sort field %q", field))
}

func compareDueDate(a, b *casemodels.Case) int {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	}
	return a.DueDate.Compare(*b.DueDate)
}

// CaseQuery is a complete search request. Zero fields do not constrain.
type CaseQuery struct {
	Text            string
	Statuses        []casemodels.Status
	Priorities      []casemodels.Priority
	Kinds           []casemodels.Kind
	Classifications []compliance.Classification
	// Classify decides Classifications membership; nil means Attached.
	Classify Classifier
	From            time.Time
	To              time.Time
	// Expr is a CEL boolean expression over the case, exposed as c.
	Expr       string
	Sort       SortField
	Descending bool
	Offset     int
	Limit      int
}

// Result is one page of matches plus the number of matches before paging.
type Result struct {
	Items []*casemodels.Case `json:"items"`
	Total int                `json:"total"`
}

// Predicate builds the combined filter. exprs may be nil when q.Expr is empty.
func (q CaseQuery) Predicate(exprs *ExprCompiler) (CasePredicate, error) {
	ps := []CasePredicate{
		Text(q.Text),
		StatusIn(q.Statuses...),
		PriorityIn(q.Priorities...),
		KindIn(q.Kinds...),
		ClassificationIn(q.Classify, q.Classifications...),
		SubmittedBetween(q.From, q.To),
	}
	if strings.TrimSpace(q.Expr) != "" {
		if exprs == nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "expression filters are not enabled")
		}
		p, err := exprs.Compile(q.Expr)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return And(ps...), nil
}

// Run filters, orders and pages cases.
func Run(all iter.Seq[*casemodels.Case], q CaseQuery, exprs *ExprCompiler) (Result, error) {
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return Result{}, dErrors.New(dErrors.CodeBadRequest, "from must not be after to")
	}
	p, err := q.Predicate(exprs)
	if err != nil {
		return Result{}, err
	}
	compare, err := CompareBy(q.Sort)
	if err != nil {
		return Result{}, err
	}
	if q.Descending {
		compare = Descending(compare)
	}

	matched := slices.Collect(SortBy(Search(all, p), compare))
	items := slices.Collect(Page(slices.Values(matched), q.Offset, q.Limit))
	if items == nil {
		items = []*casemodels.Case{}
	}
	return Result{Items: items, Total: len(matched)}, nil
}
