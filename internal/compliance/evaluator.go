// Package compliance classifies equity structures against a minimum
// local-ownership threshold. Everything here is pure and safe for concurrent use.
package compliance

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
)

// Classification is the derived compliance verdict for an equity structure.
type Classification string

const (
	Compliant    Classification = "Compliant"
	Marginal     Classification = "Marginal"
	NonCompliant Classification = "NonCompliant"
)

// IsValid reports whether c is one of the known classifications.
func (c Classification) IsValid() bool {
	switch c {
	case Compliant, Marginal, NonCompliant:
		return true
	}
	return false
}

// DefaultLocalJurisdiction is the nationality counted as local when none is configured.
const DefaultLocalJurisdiction = "Ghana"

// MarginalBuffer is the largest shortfall, in percentage points, still classified as Marginal.
var MarginalBuffer = domain.DecimalFromInt(2)

var hundred = domain.DecimalFromInt(100)

// Result is the outcome of one evaluation.
type Result struct {
	LocalPercentage         domain.Decimal `json:"localPercentage"`
	ForeignPercentage       domain.Decimal `json:"foreignPercentage"`
	RequiredLocalPercentage domain.Decimal `json:"requiredLocalPercentage"`
	Classification          Classification `json:"classification"`
}

// Evaluator computes compliance results for a configured local jurisdiction.
type Evaluator struct {
	localJurisdiction string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLocalJurisdiction sets the nationality treated as local. Blank values are ignored.
func WithLocalJurisdiction(jurisdiction string) Option {
	return func(e *Evaluator) {
		if j := strings.TrimSpace(jurisdiction); j != "" {
			e.localJurisdiction = j
		}
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{localJurisdiction: DefaultLocalJurisdiction}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LocalJurisdiction returns the nationality treated as local.
func (e *Evaluator) LocalJurisdiction() string {
	return e.localJurisdiction
}

// Evaluate classifies breakdown against required.
//
// The breakdown must be non-empty, carry no negative percentage, and sum to
// exactly 100; otherwise it fails with CodeInvalidEquityStructure.
func (e *Evaluator) Evaluate(breakdown []domain.EquityStake, required domain.Decimal) (Result, error) {
	if err := ValidateStructure(breakdown); err != nil {
		return Result{}, err
	}

	local := domain.Decimal{}
	for _, stake := range breakdown {
		if !e.isLocal(stake.Nationality) {
			continue
		}
		var err error
		if local, err = local.Add(stake.Percentage); err != nil {
			return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "sum local equity")
		}
	}
	foreign, err := hundred.Sub(local)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "derive foreign equity")
	}
	gap, err := required.Sub(local)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "derive equity gap")
	}

	return Result{
		LocalPercentage:         local,
		ForeignPercentage:       foreign,
		RequiredLocalPercentage: required,
		Classification:          classify(gap),
	}, nil
}

func classify(gap domain.Decimal) Classification {
	switch {
	case gap.Sign() <= 0:
		return Compliant
	case gap.Cmp(MarginalBuffer) <= 0:
		return Marginal
	default:
		return NonCompliant
	}
}

func (e *Evaluator) isLocal(nationality string) bool {
	// Casers are stateful, so each comparison gets its own.
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(nationality)) == fold.String(e.localJurisdiction)
}

// ValidateStructure checks the percentage invariants of an equity breakdown.
func ValidateStructure(breakdown []domain.EquityStake) error {
	if len(breakdown) == 0 {
		return invalidStructure("equity breakdown must not be empty")
	}
	total := domain.Decimal{}
	for i, stake := range breakdown {
		if stake.Percentage.Sign() < 0 {
			return invalidStructure(fmt.Sprintf("equity stake %d (%s) has a negative percentage", i, stake.PartyName))
		}
		var err error
		if total, err = total.Add(stake.Percentage); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "sum equity percentages")
		}
	}
	if !total.Equal(hundred) {
		return invalidStructure(fmt.Sprintf("equity percentages sum to %s, expected exactly 100", total))
	}
	return nil
}

// ValidateInvestment checks that the investment amounts add up to total.
func ValidateInvestment(breakdown []domain.EquityStake, total domain.Decimal) error {
	sum := domain.Decimal{}
	for i, stake := range breakdown {
		if stake.InvestmentAmount.Sign() < 0 {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("equity stake %d (%s) has a negative investment amount", i, stake.PartyName))
		}
		var err error
		if sum, err = sum.Add(stake.InvestmentAmount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "sum investment amounts")
		}
	}
	if !sum.Equal(total) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("investment amounts sum to %s, expected totalInvestment %s", sum, total))
	}
	return nil
}

func invalidStructure(msg string) error {
	return dErrors.New(dErrors.CodeInvalidEquityStructure, msg)
}
