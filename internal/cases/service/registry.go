// Package service is the review case registry: the only writer of cases.
//
// Every mutation runs under the case's lock and inside one unit of work that
// covers both the case write and its audit fact, so a failed audit write
// leaves the case exactly as it was.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"casereview/internal/audit"
	casemetrics "casereview/internal/cases/metrics"
	"casereview/internal/cases/models"
	"casereview/internal/cases/tracer"
	"casereview/internal/cases/workflow"
	"casereview/internal/compliance"
	"casereview/internal/query"
	id "casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
	platformstrings "casereview/pkg/platform/strings"
)

// DefaultRequiredLocalPercentage is the local equity share classified as compliant.
var DefaultRequiredLocalPercentage = id.DecimalFromInt(51)

const defaultLockTimeout = 5 * time.Second

// Registry owns the lifecycle of review cases.
type Registry struct {
	store       Store
	recorder    AuditRecorder
	tx          StoreTx
	locker      Locker
	lockTimeout time.Duration
	evaluator   *compliance.Evaluator
	required    id.Decimal
	exprs       *query.ExprCompiler
	logger      *slog.Logger
	metrics     *casemetrics.Metrics
	tracer      tracer.Tracer
	now         func() time.Time
}

// New creates a Registry. Without options it uses an in-memory unit of work,
// an in-process lock and the default compliance policy.
func New(store Store, recorder AuditRecorder, opts ...Option) *Registry {
	r := &Registry{
		store:       store,
		recorder:    recorder,
		tx:          NewInMemoryStoreTx(defaultTxTimeout),
		locker:      NewLocalLocker(),
		lockTimeout: defaultLockTimeout,
		evaluator:   compliance.New(),
		required:    DefaultRequiredLocalPercentage,
		logger:      slog.Default(),
		tracer:      tracer.NewNoop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RequiredLocalPercentage is the threshold decisions are classified against.
func (r *Registry) RequiredLocalPercentage() id.Decimal {
	return r.required
}

// Submit validates and stores a new case and records a case_submitted fact.
func (r *Registry) Submit(ctx context.Context, cmd SubmitCommand) (*models.Case, error) {
	ctx, span := r.tracer.Start(ctx, tracer.SpanSubmit, tracer.String(tracer.AttrCaseKind, string(cmd.Kind)))
	var err error
	defer func() { span.End(err) }()

	now := r.now()
	c, err := r.buildCase(cmd, now)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrCaseID, c.ID.String()))

	actor := cmd.actor()
	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.store.Create(ctx, c); err != nil {
			return translate(err, c.ID, now, "store case")
		}
		_, err := r.recorder.Record(ctx, audit.Input{
			ActorID:     actor.ID,
			ActorName:   actor.Name,
			ActorRole:   actor.Role,
			Action:      "case_submitted",
			EntityType:  audit.EntityCase,
			EntityID:    c.ID.String(),
			EntityName:  c.Title,
			Description: fmt.Sprintf("%s %q submitted by %s", c.Kind, c.Title, c.SubmittedBy),
			Severity:    audit.SeverityLow,
			Outcome:     audit.OutcomeSuccess,
			AfterState:  &audit.StateSnapshot{Status: string(c.Status)},
			Detail:      map[string]string{"kind": string(c.Kind), "priority": string(c.Priority)},
		})
		return err
	})
	if err != nil {
		err = translate(err, c.ID, now, "submit case")
		return nil, err
	}

	r.metrics.IncSubmitted(string(c.Kind))
	r.logger.InfoContext(ctx, "case submitted",
		"case_id", c.ID.String(),
		"kind", c.Kind,
		"status", c.Status,
	)
	return c.Clone(), nil
}

func (r *Registry) buildCase(cmd SubmitCommand, now time.Time) (*models.Case, error) {
	c, err := models.NewCase(id.NewCaseID(), cmd.Kind, strings.TrimSpace(cmd.Title), cmd.Priority, strings.TrimSpace(cmd.SubmittedBy), now)
	if err != nil {
		return nil, err
	}
	c.Company = strings.TrimSpace(cmd.Company)
	if cmd.Submit {
		c.Status = models.StatusSubmitted
	}
	if cmd.DueDate != nil {
		if cmd.DueDate.Before(now) {
			return nil, dErrors.New(dErrors.CodeValidation, "dueDate must not be in the past")
		}
		due := *cmd.DueDate
		c.DueDate = &due
	}

	switch {
	case len(cmd.EquityBreakdown) > 0:
		if cmd.Kind != models.KindEquityVerification && cmd.Kind != models.KindApplication {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s cases do not carry an equity breakdown", cmd.Kind))
		}
		if cmd.TotalInvestment == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "totalInvestment is required with an equity breakdown")
		}
		if err := compliance.ValidateStructure(cmd.EquityBreakdown); err != nil {
			return nil, err
		}
		if err := compliance.ValidateInvestment(cmd.EquityBreakdown, *cmd.TotalInvestment); err != nil {
			return nil, err
		}
		c.EquityBreakdown = slices.Clone(cmd.EquityBreakdown)
		total := *cmd.TotalInvestment
		c.TotalInvestment = &total
	case cmd.Kind == models.KindEquityVerification:
		return nil, dErrors.New(dErrors.CodeInvalidEquityStructure, "equity breakdown must not be empty")
	case cmd.TotalInvestment != nil:
		return nil, dErrors.New(dErrors.CodeValidation, "totalInvestment requires an equity breakdown")
	}
	return c, nil
}

// Get returns the case with caseID.
func (r *Registry) Get(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	if caseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "case ID required")
	}
	c, err := r.store.FindByID(ctx, caseID)
	if err != nil {
		return nil, translate(err, caseID, r.now(), "load case")
	}
	return c, nil
}

// Decide moves a case to cmd.To. Terminal decisions on equity cases attach a
// fresh compliance result. The case write and its audit fact commit together.
func (r *Registry) Decide(ctx context.Context, cmd DecideCommand) (*models.Case, error) {
	return r.decideAt(ctx, cmd, r.now)
}

// decideAt is Decide with the transition stamped and checked at clock().
func (r *Registry) decideAt(ctx context.Context, cmd DecideCommand, clock func() time.Time) (*models.Case, error) {
	start := r.now()
	ctx, span := r.tracer.Start(ctx, tracer.SpanDecide,
		tracer.String(tracer.AttrCaseID, cmd.CaseID.String()),
		tracer.String(tracer.AttrToStatus, string(cmd.To)),
	)
	var (
		decided *models.Case
		err     error
	)
	defer func() {
		span.End(err)
		r.metrics.ObserveDecision(string(cmd.To), resultLabel(err), start)
	}()

	if err = validateDecide(cmd); err != nil {
		return nil, err
	}
	decided, err = r.decide(ctx, cmd, clock, span)
	if err != nil {
		r.logger.WarnContext(ctx, "decision refused",
			"case_id", cmd.CaseID.String(),
			"to", cmd.To,
			"actor_id", cmd.Actor.ID,
			"code", dErrors.CodeOf(err),
			"error", err,
		)
		return nil, err
	}

	r.logger.InfoContext(ctx, "case decided",
		"case_id", decided.ID.String(),
		"to", decided.Status,
		"version", decided.Version,
		"classification", decided.Classification(),
	)
	return decided, nil
}

func validateDecide(cmd DecideCommand) error {
	if cmd.CaseID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "case ID required")
	}
	if !cmd.To.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown status %q", cmd.To))
	}
	if strings.TrimSpace(cmd.Actor.ID) == "" && cmd.To != models.StatusUnderReview {
		return dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if cmd.ExpectedVersion < 0 {
		return dErrors.New(dErrors.CodeValidation, "expectedVersion must not be negative")
	}
	return nil
}

func (r *Registry) decide(ctx context.Context, cmd DecideCommand, clock func() time.Time, span tracer.Span) (*models.Case, error) {
	// Without an explicit version, decide against the one observed before
	// waiting for the lock.
	if cmd.ExpectedVersion == 0 {
		observed, err := r.store.FindByID(ctx, cmd.CaseID)
		if err != nil {
			return nil, translate(err, cmd.CaseID, r.now(), "load case")
		}
		cmd.ExpectedVersion = observed.Version
	}

	unlock, err := r.lock(ctx, cmd.CaseID, span)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var decided *models.Case
	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := clock()
		current, err := r.store.FindByID(ctx, cmd.CaseID)
		if err != nil {
			return translate(err, cmd.CaseID, now, "load case")
		}
		if cmd.ExpectedVersion != current.Version {
			return dErrors.WithDetails(
				dErrors.New(dErrors.CodeConcurrentModification,
					fmt.Sprintf("case is at version %d, not %d", current.Version, cmd.ExpectedVersion)),
				transitionDetails(current, cmd.To, now))
		}
		span.SetAttributes(
			tracer.String(tracer.AttrCaseKind, string(current.Kind)),
			tracer.String(tracer.AttrFromStatus, string(current.Status)),
		)

		next, err := workflow.Transition(current, cmd.To, cmd.Actor, cmd.Comment, now)
		if err != nil {
			return err
		}
		if current.CarriesEquity() && cmd.To.IsDecision() {
			result, err := r.evaluator.Evaluate(next.EquityBreakdown, r.required)
			if err != nil {
				return dErrors.WithDetails(err, transitionDetails(current, cmd.To, now))
			}
			next.Compliance = &result
			r.metrics.IncClassification(string(result.Classification))
			span.AddEvent(tracer.EventComplianceEvaluated, tracer.String(tracer.AttrClassification, string(result.Classification)))
		}

		if err := r.store.Update(ctx, next, current.Version); err != nil {
			return translate(err, cmd.CaseID, now, "store case")
		}
		if _, err := r.recorder.Record(ctx, decisionFact(current, next, cmd)); err != nil {
			return err
		}
		span.AddEvent(tracer.EventAuditRecorded)
		decided = next
		return nil
	})
	if err != nil {
		return nil, translate(err, cmd.CaseID, r.now(), "decide case")
	}
	return decided.Clone(), nil
}

func (r *Registry) lock(ctx context.Context, caseID id.CaseID, span tracer.Span) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	waitStart := time.Now()
	unlock, err := r.locker.Lock(lockCtx, caseID.String())
	wait := time.Since(waitStart)
	r.metrics.ObserveLockWait(wait)
	span.SetAttributes(tracer.Duration(tracer.AttrLockWaitMs, wait))
	if err != nil {
		return nil, translate(err, caseID, r.now(), "acquire case lock")
	}
	return unlock, nil
}

// ExpireOverdue moves every case overdue at now and still undecided to
// Expired on behalf of the system actor, stamping the transition at now, and
// returns how many were expired. A case that cannot be
// expired is logged and skipped.
func (r *Registry) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, tracer.SpanExpireOverdue)
	var err error
	defer func() { span.End(err) }()

	overdue, err := r.store.ListOverdue(ctx, now)
	if err != nil {
		err = translate(err, id.CaseID{}, now, "list overdue cases")
		return 0, err
	}

	expired := 0
	for _, c := range overdue {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = translate(ctxErr, id.CaseID{}, now, "expire overdue cases")
			return expired, err
		}
		_, decideErr := r.decideAt(ctx, DecideCommand{
			CaseID:          c.ID,
			To:              models.StatusExpired,
			Actor:           models.SystemActor,
			Comment:         "due date elapsed",
			ExpectedVersion: c.Version,
		}, func() time.Time { return now })
		if decideErr != nil {
			r.metrics.IncExpiryFailure()
			r.logger.WarnContext(ctx, "failed to expire overdue case",
				"case_id", c.ID.String(),
				"code", dErrors.CodeOf(decideErr),
				"error", decideErr,
			)
			continue
		}
		expired++
	}
	r.metrics.AddExpired(expired)
	span.SetAttributes(tracer.Int64(tracer.AttrExpiredCount, int64(expired)))
	return expired, nil
}

// Evaluate returns a fresh compliance result for an equity case without changing it.
func (r *Registry) Evaluate(ctx context.Context, caseID id.CaseID) (compliance.Result, error) {
	c, err := r.Get(ctx, caseID)
	if err != nil {
		return compliance.Result{}, err
	}
	if !c.CarriesEquity() {
		return compliance.Result{}, dErrors.WithDetails(
			dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s case carries no equity breakdown", c.Kind)),
			map[string]string{dErrors.DetailCaseID: caseID.String(), dErrors.DetailKind: string(c.Kind)})
	}
	result, err := r.evaluator.Evaluate(c.EquityBreakdown, r.required)
	if err != nil {
		return compliance.Result{}, dErrors.WithDetails(err, map[string]string{dErrors.DetailCaseID: caseID.String()})
	}
	return result, nil
}

// Search filters, orders and pages a snapshot of all cases. Classification
// filters evaluate each equity case's current breakdown, so undecided cases
// classify too.
func (r *Registry) Search(ctx context.Context, q query.CaseQuery) (query.Result, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return query.Result{}, translate(err, id.CaseID{}, r.now(), "list cases")
	}
	if q.Classify == nil {
		q.Classify = query.Evaluated(r.evaluator, r.required)
	}
	return query.Run(slices.Values(all), q, r.exprs)
}

// AuditTrail returns up to limit facts matching filter, newest first.
func (r *Registry) AuditTrail(ctx context.Context, filter audit.Filter, limit int) ([]audit.Fact, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "from must not be after to")
	}
	facts := []audit.Fact{}
	for fact, err := range r.recorder.Query(ctx, filter) {
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
		if limit > 0 && len(facts) >= limit {
			break
		}
	}
	return facts, nil
}

// VerifyAudit re-checks the audit hash chains matched by filter.
func (r *Registry) VerifyAudit(ctx context.Context, filter audit.Filter) ([]audit.ChainBreak, error) {
	return r.recorder.Verify(ctx, filter)
}

func decisionFact(before, after *models.Case, cmd DecideCommand) audit.Input {
	severity, outcome := severityFor(after)
	detail := map[string]string{
		"from":    string(before.Status),
		"to":      string(after.Status),
		"version": strconv.FormatInt(after.Version, 10),
	}
	if c := after.Classification(); c != "" {
		detail["classification"] = string(c)
		detail["localPercentage"] = after.Compliance.LocalPercentage.String()
		detail["requiredLocalPercentage"] = after.Compliance.RequiredLocalPercentage.String()
	}
	if comment := strings.TrimSpace(cmd.Comment); comment != "" {
		detail["comment"] = comment
	}
	return audit.Input{
		ActorID:     cmd.Actor.ID,
		ActorName:   cmd.Actor.Name,
		ActorRole:   cmd.Actor.Role,
		Action:      ActionFor(after.Status),
		EntityType:  audit.EntityCase,
		EntityID:    after.ID.String(),
		EntityName:  after.Title,
		Description: fmt.Sprintf("%s %q moved from %s to %s", after.Kind, after.Title, before.Status, after.Status),
		Severity:    severity,
		Outcome:     outcome,
		BeforeState: &audit.StateSnapshot{Status: string(before.Status), Classification: string(before.Classification())},
		AfterState:  &audit.StateSnapshot{Status: string(after.Status), Classification: string(after.Classification())},
		Detail:      detail,
	}
}

// ActionFor names the audit action for entering status, e.g. case_under_review.
func ActionFor(status models.Status) string {
	return "case_" + platformstrings.SnakeCase(string(status))
}

// severityFor grades a status change. Approving a non-compliant structure is
// recorded as a warning.
func severityFor(c *models.Case) (audit.Severity, audit.Outcome) {
	if c.Status == models.StatusApproved && c.Classification() == compliance.NonCompliant {
		return audit.SeverityHigh, audit.OutcomeWarning
	}
	switch c.Status {
	case models.StatusRejected, models.StatusExpired:
		return audit.SeverityHigh, audit.OutcomeSuccess
	case models.StatusApproved, models.StatusResolved, models.StatusRequiresRevision:
		return audit.SeverityMedium, audit.OutcomeSuccess
	default:
		return audit.SeverityLow, audit.OutcomeSuccess
	}
}

func transitionDetails(c *models.Case, to models.Status, now time.Time) map[string]string {
	return map[string]string{
		dErrors.DetailCaseID: c.ID.String(),
		dErrors.DetailFrom:   string(c.Status),
		dErrors.DetailTo:     string(to),
		dErrors.DetailKind:   string(c.Kind),
		dErrors.DetailAt:     now.UTC().Format(time.RFC3339Nano),
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}
