package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "casereview/pkg/domain-errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description,omitempty"`
	Details          map[string]string `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are sent; an encoding error can no longer change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates a domain error into its HTTP status and body.
// Internal errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: string(dErrors.CodeInternal)})
		return
	}

	status := DomainCodeToHTTPStatus(domainErr.Code)
	resp := ErrorResponse{Error: string(domainErr.Code), Details: domainErr.Details}
	if status < http.StatusInternalServerError || domainErr.Code == dErrors.CodeAuditWriteFailure {
		resp.ErrorDescription = domainErr.Message
	}
	WriteJSON(w, status, resp)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeValidation, dErrors.CodeInvalidEquityStructure, dErrors.CodeMissingReviewer:
		return http.StatusUnprocessableEntity
	case dErrors.CodeIllegalTransition, dErrors.CodeConcurrentModification:
		return http.StatusConflict
	case dErrors.CodeStorageTimeout:
		return http.StatusServiceUnavailable
	case dErrors.CodeAuditWriteFailure, dErrors.CodeInvariantViolation, dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
