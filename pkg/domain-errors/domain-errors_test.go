package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// These primitives cross every layer boundary: wrapped domain errors must keep
// their original code and details, and errors.Is must match by code.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "case not found"}
		s.Equal("case not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeIllegalTransition}
		s.Equal("illegal_transition", err.Error())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeNotFound, Message: "case not found"}
		err2 := &Error{Code: CodeNotFound, Message: "fact not found"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		s.False((&Error{Code: CodeNotFound}).Is(&Error{Code: CodeInternal}))
	})

	s.Run("does not match non-domain errors", func() {
		s.False((&Error{Code: CodeNotFound}).Is(errors.New("not found")))
	})

	s.Run("works with errors.Is through chain", func() {
		inner := &Error{Code: CodeStorageTimeout, Message: "original"}
		wrapped := fmt.Errorf("decide: %w", inner)
		s.True(errors.Is(wrapped, &Error{Code: CodeStorageTimeout}))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves original domain code and details", func() {
		original := WithDetails(New(CodeIllegalTransition, "illegal"), map[string]string{DetailFrom: "Approved"})
		wrapped := Wrap(original, CodeInternal, "decide failed")

		var domainErr *Error
		s.Require().True(errors.As(wrapped, &domainErr))
		s.Equal(CodeIllegalTransition, domainErr.Code)
		s.Equal("decide failed", domainErr.Message)
		s.Equal("Approved", domainErr.Details[DetailFrom])
	})

	s.Run("uses provided code when wrapping non-domain error", func() {
		original := errors.New("connection reset")
		wrapped := Wrap(original, CodeAuditWriteFailure, "append audit fact")

		s.True(HasCode(wrapped, CodeAuditWriteFailure))
		s.ErrorIs(wrapped, original)
	})
}

func (s *DomainErrorsSuite) TestWithDetails() {
	s.Run("merges details without mutating the original", func() {
		original := New(CodeNotFound, "case not found")
		withID := WithDetails(original, map[string]string{DetailCaseID: "c-1"})

		s.Equal("c-1", DetailsOf(withID)[DetailCaseID])
		s.Nil(DetailsOf(original))
	})

	s.Run("skips empty values", func() {
		err := WithDetails(New(CodeNotFound, "x"), map[string]string{DetailCaseID: "c-1", DetailTo: ""})
		s.NotContains(DetailsOf(err), DetailTo)
	})

	s.Run("wraps plain errors as internal", func() {
		err := WithDetails(errors.New("boom"), map[string]string{DetailCaseID: "c-1"})
		s.Equal(CodeInternal, CodeOf(err))
	})

	s.Run("nil stays nil", func() {
		s.NoError(WithDetails(nil, map[string]string{DetailCaseID: "c-1"}))
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.Run("returns false for nil error", func() {
		s.False(HasCode(nil, CodeNotFound))
	})

	s.Run("finds code through error chain", func() {
		wrapped := Wrap(New(CodeMissingReviewer, "original"), CodeInternal, "wrapped")
		s.True(HasCode(wrapped, CodeMissingReviewer))
	})
}

func (s *DomainErrorsSuite) TestIsValidation() {
	s.True(IsValidation(New(CodeValidation, "bad")))
	s.True(IsValidation(New(CodeInvalidEquityStructure, "sum")))
	s.False(IsValidation(New(CodeNotFound, "missing")))
}
