package handler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"casereview/internal/audit"
	"casereview/internal/cases/models"
	"casereview/internal/compliance"
	"casereview/internal/query"
	dErrors "casereview/pkg/domain-errors"
	platformstrings "casereview/pkg/platform/strings"
	"casereview/pkg/platform/validation"
)

// parseCaseQuery reads GET /cases parameters. List parameters accept repeated
// keys or comma-separated values.
func parseCaseQuery(v url.Values) (query.CaseQuery, error) {
	q := query.CaseQuery{
		Text: strings.TrimSpace(v.Get("q")),
		Expr: strings.TrimSpace(v.Get("expr")),
		Sort: query.SortField(strings.TrimSpace(v.Get("sort"))),
	}
	if err := validation.CheckStringLength("q", q.Text, validation.MaxSearchLength); err != nil {
		return q, err
	}
	if err := validation.CheckStringLength("expr", q.Expr, validation.MaxExprLength); err != nil {
		return q, err
	}

	var err error
	if q.Statuses, err = enumList(v, "status", models.Status.IsValid); err != nil {
		return q, err
	}
	if q.Priorities, err = enumList(v, "priority", models.Priority.IsValid); err != nil {
		return q, err
	}
	if q.Kinds, err = enumList(v, "kind", models.Kind.IsValid); err != nil {
		return q, err
	}
	if q.Classifications, err = enumList(v, "classification", compliance.Classification.IsValid); err != nil {
		return q, err
	}
	if q.From, err = parseTime(v.Get("from"), false); err != nil {
		return q, err
	}
	if q.To, err = parseTime(v.Get("to"), true); err != nil {
		return q, err
	}

	switch order := strings.ToLower(strings.TrimSpace(v.Get("order"))); order {
	case "", "asc":
	case "desc":
		q.Descending = true
	default:
		return q, dErrors.New(dErrors.CodeBadRequest, "order must be asc or desc")
	}

	if q.Offset, err = nonNegativeInt(v.Get("offset"), "offset"); err != nil {
		return q, err
	}
	limit, err := nonNegativeInt(v.Get("limit"), "limit")
	if err != nil {
		return q, err
	}
	q.Limit = validation.ClampPageSize(limit)
	return q, nil
}

// parseAuditFilter reads GET /audit parameters.
func parseAuditFilter(v url.Values) (audit.Filter, int, error) {
	f := audit.Filter{
		Text:       strings.TrimSpace(v.Get("q")),
		EntityType: audit.EntityType(strings.TrimSpace(v.Get("entityType"))),
		EntityID:   strings.TrimSpace(v.Get("entityId")),
		Severity:   audit.Severity(strings.TrimSpace(v.Get("severity"))),
		Outcome:    audit.Outcome(strings.TrimSpace(v.Get("outcome"))),
		ActorID:    strings.TrimSpace(v.Get("actorId")),
	}
	if err := validation.CheckStringLength("q", f.Text, validation.MaxSearchLength); err != nil {
		return f, 0, err
	}
	if f.Severity != "" && !f.Severity.IsValid() {
		return f, 0, dErrors.New(dErrors.CodeBadRequest, "severity must be one of Low, Medium, High, Critical")
	}
	if f.Outcome != "" && !f.Outcome.IsValid() {
		return f, 0, dErrors.New(dErrors.CodeBadRequest, "outcome must be one of Success, Failed, Warning")
	}

	var err error
	if f.From, err = parseTime(v.Get("from"), false); err != nil {
		return f, 0, err
	}
	if f.To, err = parseTime(v.Get("to"), true); err != nil {
		return f, 0, err
	}
	limit, err := nonNegativeInt(v.Get("limit"), "limit")
	if err != nil {
		return f, 0, err
	}
	return f, validation.ClampPageSize(limit), nil
}

func enumList[T ~string](v url.Values, key string, valid func(T) bool) ([]T, error) {
	raw := platformstrings.SplitList(v[key])
	if err := validation.CheckSliceCount(key+" values", len(raw), validation.MaxFilterValues); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		val := T(r)
		if !valid(val) {
			return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown %s %q", key, r))
		}
		out = append(out, val)
	}
	return out, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates. A plain date used as
// an upper bound covers the whole day.
func parseTime(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid date %q: use YYYY-MM-DD or RFC 3339", raw))
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func nonNegativeInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}
