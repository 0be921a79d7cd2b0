package query

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	casemodels "casereview/internal/cases/models"
	dErrors "casereview/pkg/domain-errors"
)

// exprVar is the name cases are bound to inside expressions.
const exprVar = "c"

// ExprCompiler turns CEL expressions into case predicates and caches the
// compiled programs by source text.
//
// Expressions see the case as a map, e.g.
//
//	c.kind == "EquityVerification" && c.localPercentage < 51.0
//	has(c.dueDate) && c.priority in ["critical", "high"]
type ExprCompiler struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

func NewExprCompiler() (*ExprCompiler, error) {
	env, err := cel.NewEnv(
		cel.Variable(exprVar, cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}
	return &ExprCompiler{env: env, cache: make(map[string]cel.Program)}, nil
}

// Compile returns a predicate for src. Compile errors and non-boolean
// expressions are reported as bad requests.
func (e *ExprCompiler) Compile(src string) (CasePredicate, error) {
	prg, err := e.program(src)
	if err != nil {
		return nil, err
	}
	return func(c *casemodels.Case) bool {
		out, _, err := prg.Eval(map[string]any{exprVar: exprInput(c)})
		if err != nil {
			// missing keys and type mismatches just fail the match
			return false
		}
		matched, ok := out.Value().(bool)
		return ok && matched
	}, nil
}

func (e *ExprCompiler) program(src string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.cache[src]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.cache[src]; hit {
		return prg, nil
	}
	ast, issues := e.env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid expression: %v", issues.Err()))
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "expression must evaluate to a boolean")
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid expression: %v", err))
	}
	e.cache[src] = prg
	return prg, nil
}

// exprInput flattens c into the map expressions see. Optional attributes are
// omitted when unset so that has() works.
func exprInput(c *casemodels.Case) map[string]any {
	in := map[string]any{
		"id":            c.ID.String(),
		"kind":          string(c.Kind),
		"title":         c.Title,
		"company":       c.Company,
		"status":        string(c.Status),
		"priority":      string(c.Priority),
		"submittedBy":   c.SubmittedBy,
		"submittedAt":   c.SubmittedAt,
		"lastUpdatedAt": c.LastUpdatedAt,
		"version":       c.Version,
		"comments":      int64(len(c.Comments)),
	}
	if c.DueDate != nil {
		in["dueDate"] = *c.DueDate
	}
	if c.Reviewer != "" {
		in["reviewer"] = c.Reviewer
	}
	if c.TotalInvestment != nil {
		in["totalInvestment"] = c.TotalInvestment.Float64()
	}
	if len(c.EquityBreakdown) > 0 {
		parties := make([]any, 0, len(c.EquityBreakdown))
		for _, s := range c.EquityBreakdown {
			parties = append(parties, map[string]any{
				"partyName":        s.PartyName,
				"nationality":      s.Nationality,
				"percentage":       s.Percentage.Float64(),
				"investmentAmount": s.InvestmentAmount.Float64(),
			})
		}
		in["equityBreakdown"] = parties
	}
	if c.Compliance != nil {
		in["classification"] = string(c.Compliance.Classification)
		in["localPercentage"] = c.Compliance.LocalPercentage.Float64()
		in["foreignPercentage"] = c.Compliance.ForeignPercentage.Float64()
		in["requiredLocalPercentage"] = c.Compliance.RequiredLocalPercentage.Float64()
	}
	return in
}
