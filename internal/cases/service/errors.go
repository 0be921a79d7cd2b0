package service

import (
	"context"
	"errors"
	"time"

	id "casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
	"casereview/pkg/platform/sentinel"
)

// translate turns store and lock errors into domain errors. Domain errors pass
// through with the case id attached.
func translate(err error, caseID id.CaseID, now time.Time, msg string) error {
	if err == nil {
		return nil
	}
	details := map[string]string{dErrors.DetailAt: now.UTC().Format(time.RFC3339Nano)}
	if !caseID.IsNil() {
		details[dErrors.DetailCaseID] = caseID.String()
	}

	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &domainErr):
		return dErrors.WithDetails(err, details)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.WithDetails(dErrors.New(dErrors.CodeNotFound, "case not found"), details)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.WithDetails(
			dErrors.Wrap(err, dErrors.CodeConcurrentModification, "case was modified concurrently"), details)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, sentinel.ErrLockTimeout), errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.WithDetails(dErrors.Wrap(err, dErrors.CodeStorageTimeout, msg+": storage timed out"), details)
	default:
		return dErrors.WithDetails(dErrors.Wrap(err, dErrors.CodeInternal, msg), details)
	}
}
