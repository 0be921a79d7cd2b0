package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "casereview/pkg/domain-errors"
)

func TestDomainCodeToHTTPStatus(t *testing.T) {
	tests := map[dErrors.Code]int{
		dErrors.CodeNotFound:               http.StatusNotFound,
		dErrors.CodeBadRequest:             http.StatusBadRequest,
		dErrors.CodeValidation:             http.StatusUnprocessableEntity,
		dErrors.CodeInvalidEquityStructure: http.StatusUnprocessableEntity,
		dErrors.CodeMissingReviewer:        http.StatusUnprocessableEntity,
		dErrors.CodeIllegalTransition:      http.StatusConflict,
		dErrors.CodeConcurrentModification: http.StatusConflict,
		dErrors.CodeStorageTimeout:         http.StatusServiceUnavailable,
		dErrors.CodeAuditWriteFailure:      http.StatusInternalServerError,
		dErrors.CodeInternal:               http.StatusInternalServerError,
		dErrors.Code("unknown"):            http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, DomainCodeToHTTPStatus(code), code)
	}
}

func TestWriteError(t *testing.T) {
	t.Run("workflow error carries details", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := dErrors.WithDetails(dErrors.New(dErrors.CodeIllegalTransition, "illegal transition Approved -> UnderReview"),
			map[string]string{dErrors.DetailFrom: "Approved", dErrors.DetailTo: "UnderReview"})

		WriteError(w, err)

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "illegal_transition", resp.Error)
		assert.Equal(t, "Approved", resp.Details[dErrors.DetailFrom])
		assert.NotEmpty(t, resp.ErrorDescription)
	})

	t.Run("internal errors hide their message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "load case: dial tcp 10.0.0.3"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Empty(t, decodeError(t, w).ErrorDescription)
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal_error", decodeError(t, w).Error)
	})
}
