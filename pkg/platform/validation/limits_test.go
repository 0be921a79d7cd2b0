package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "casereview/pkg/domain-errors"
)

// Each limit is inclusive: the limit itself passes and one more fails.
type LimitsSuite struct {
	suite.Suite
}

func TestLimitsSuite(t *testing.T) {
	suite.Run(t, new(LimitsSuite))
}

func (s *LimitsSuite) TestCheckSliceCount() {
	s.NoError(CheckSliceCount("equity stakes", 0, MaxEquityStakes))
	s.NoError(CheckSliceCount("equity stakes", MaxEquityStakes, MaxEquityStakes))

	err := CheckSliceCount("status values", MaxFilterValues+1, MaxFilterValues)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.EqualError(err, "too many status values: max 20 allowed")
}

func (s *LimitsSuite) TestCheckStringLength() {
	s.NoError(CheckStringLength("title", "", MaxTitleLength))
	s.NoError(CheckStringLength("title", strings.Repeat("t", MaxTitleLength), MaxTitleLength))

	err := CheckStringLength("expr", strings.Repeat("x", MaxExprLength+1), MaxExprLength)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.EqualError(err, "expr exceeds max length of 1000")
}

func (s *LimitsSuite) TestClampPageSize() {
	for requested, want := range map[int]int{
		-1:              DefaultPageSize,
		0:               DefaultPageSize,
		1:               1,
		MaxPageSize:     MaxPageSize,
		MaxPageSize + 1: MaxPageSize,
	} {
		s.Equal(want, ClampPageSize(requested), "requested %d", requested)
	}
}
