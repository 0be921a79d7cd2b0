package compliance

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
)

// breakdownFromCuts splits 100.00 at the given cut points (hundredths of a percent),
// so the resulting stakes always sum to exactly 100.
func breakdownFromCuts(cuts []int, local []bool) []domain.EquityStake {
	points := append([]int{0}, cuts...)
	points = append(points, 10000)
	slices.Sort(points)

	out := make([]domain.EquityStake, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		nationality := "Foreign"
		if i-1 < len(local) && local[i-1] {
			nationality = "Ghana"
		}
		out = append(out, domain.EquityStake{
			Nationality: nationality,
			Percentage:  domain.NewDecimal(int64(points[i]-points[i-1]), -2),
		})
	}
	return out
}

func TestEvaluateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	evaluator := New()

	properties.Property("local plus foreign is exactly 100", prop.ForAll(
		func(cuts []int, local []bool, required int) bool {
			res, err := evaluator.Evaluate(breakdownFromCuts(cuts, local), domain.DecimalFromInt(int64(required)))
			if err != nil {
				return false
			}
			sum, err := res.LocalPercentage.Add(res.ForeignPercentage)
			return err == nil && sum.Equal(domain.DecimalFromInt(100))
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
		gen.SliceOf(gen.Bool()),
		gen.IntRange(0, 100),
	))

	properties.Property("evaluation is deterministic", prop.ForAll(
		func(cuts []int, local []bool, required int) bool {
			breakdown := breakdownFromCuts(cuts, local)
			req := domain.DecimalFromInt(int64(required))
			first, err1 := evaluator.Evaluate(breakdown, req)
			second, err2 := evaluator.Evaluate(breakdown, req)
			if err1 != nil || err2 != nil {
				return false
			}
			return first.Classification == second.Classification &&
				first.LocalPercentage.Equal(second.LocalPercentage) &&
				first.ForeignPercentage.Equal(second.ForeignPercentage) &&
				first.RequiredLocalPercentage.Equal(second.RequiredLocalPercentage)
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
		gen.SliceOf(gen.Bool()),
		gen.IntRange(0, 100),
	))

	properties.Property("sums other than 100 are rejected", prop.ForAll(
		func(hundredths []int) bool {
			total := 0
			breakdown := make([]domain.EquityStake, 0, len(hundredths))
			for _, h := range hundredths {
				total += h
				breakdown = append(breakdown, domain.EquityStake{Nationality: "Ghana", Percentage: domain.NewDecimal(int64(h), -2)})
			}
			if len(hundredths) > 0 && total == 10000 {
				return true
			}
			res, err := evaluator.Evaluate(breakdown, domain.DecimalFromInt(51))
			return dErrors.HasCode(err, dErrors.CodeInvalidEquityStructure) && res.Classification == ""
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
	))

	properties.Property("classification is monotone in the local share", prop.ForAll(
		func(localHundredths int, required int) bool {
			breakdown := []domain.EquityStake{
				{Nationality: "Ghana", Percentage: domain.NewDecimal(int64(localHundredths), -2)},
				{Nationality: "Foreign", Percentage: domain.NewDecimal(int64(10000-localHundredths), -2)},
			}
			res, err := evaluator.Evaluate(breakdown, domain.DecimalFromInt(int64(required)))
			if err != nil {
				return false
			}
			gapHundredths := required*100 - localHundredths
			switch {
			case gapHundredths <= 0:
				return res.Classification == Compliant
			case gapHundredths <= 200:
				return res.Classification == Marginal
			default:
				return res.Classification == NonCompliant
			}
		},
		gen.IntRange(0, 10000),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
