package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "casereview/pkg/domain-errors"
	"casereview/pkg/platform/middleware/request"
)

// Normalizer trims and canonicalizes a decoded request in place.
type Normalizer interface {
	Normalize()
}

// Validator reports the first problem with a decoded request.
type Validator interface {
	Validate() error
}

// DecodeJSON reads one JSON object from the body into a new T. Unknown
// fields are rejected. On failure the error response is already written and
// the caller should return.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var dst T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		reject(w, r, logger, "undecodable request body", err, decodeFailure(err))
		return nil, false
	}
	return &dst, true
}

// Bind decodes the body and then runs Normalize and Validate when T
// implements them.
func Bind[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	dst, ok := DecodeJSON[T](w, r, logger)
	if !ok {
		return nil, false
	}
	if err := Prepare(dst); err != nil {
		reject(w, r, logger, "invalid request", err, validationFailure(err))
		return nil, false
	}
	return dst, true
}

// Prepare normalizes then validates v.
func Prepare(v any) error {
	if n, ok := v.(Normalizer); ok {
		n.Normalize()
	}
	if val, ok := v.(Validator); ok {
		return val.Validate()
	}
	return nil
}

// decodeFailure maps a json.Decoder error onto the response error. Field
// decoders that raise domain errors (decimals, ids) keep their code.
func decodeFailure(err error) error {
	var tooLarge *http.MaxBytesError
	var domainErr *dErrors.Error
	switch {
	case errors.As(err, &tooLarge):
		return dErrors.New(dErrors.CodeBadRequest, "request body too large")
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, io.EOF):
		return dErrors.New(dErrors.CodeBadRequest, "request body is empty")
	default:
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
}

func validationFailure(err error) error {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.New(dErrors.CodeValidation, err.Error())
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, cause, resp error) {
	ctx := r.Context()
	logger.WarnContext(ctx, msg,
		"error", cause,
		"request_id", request.RequestID(ctx),
	)
	var tooLarge *http.MaxBytesError
	if errors.As(cause, &tooLarge) {
		WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:            string(dErrors.CodeBadRequest),
			ErrorDescription: "request body too large",
		})
		return
	}
	WriteError(w, resp)
}
