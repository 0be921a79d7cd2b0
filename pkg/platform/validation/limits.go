// Package validation holds the input limits enforced at the HTTP boundary and
// the struct-tag validator used by request types.
package validation

import (
	"fmt"

	dErrors "casereview/pkg/domain-errors"
)

// MaxBodySize caps a request body at 64 KB.
const MaxBodySize = 64 * 1024

const (
	MaxEquityStakes = 100
	// MaxFilterValues bounds one list-valued query parameter, e.g. status=a,b.
	MaxFilterValues = 20
)

const (
	MaxTitleLength   = 256
	MaxCompanyLength = 256
	MaxCommentLength = 4000
	MaxActorLength   = 255
	MaxSearchLength  = 200
	MaxExprLength    = 1000
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// CheckSliceCount fails with CodeValidation when count is above limit.
func CheckSliceCount(what string, count, limit int) error {
	if count <= limit {
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", what, limit))
}

// CheckStringLength fails with CodeValidation when value is longer than limit
// bytes.
func CheckStringLength(field, value string, limit int) error {
	if len(value) <= limit {
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", field, limit))
}

// ClampPageSize maps a requested page size into [1, MaxPageSize]; zero and
// negative values get DefaultPageSize.
func ClampPageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return min(limit, MaxPageSize)
}
