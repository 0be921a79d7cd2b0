package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
)

type testRequest struct {
	Title   string     `json:"title"`
	Percent id.Decimal `json:"percent"`
}

type validatingRequest struct {
	Title      string `json:"title"`
	normalized bool
}

func (r *validatingRequest) Normalize() {
	r.normalized = true
	r.Title = strings.TrimSpace(r.Title)
}

func (r *validatingRequest) Validate() error {
	if r.Title == "" {
		return errors.New("title is required")
	}
	return nil
}

type domainErrorRequest struct {
	ID string `json:"id"`
}

func (r *domainErrorRequest) Validate() error {
	if r.ID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "id is required")
	}
	return nil
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestDecodeJSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("successful decode", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"title":"Equity review","percent":"51.5"}`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[testRequest](w, req, logger)

		assert.True(t, ok)
		require.NotNil(t, result)
		assert.Equal(t, "Equity review", result.Title)
		assert.Equal(t, "51.5", result.Percent.String())
	})

	t.Run("invalid JSON returns bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{invalid json}`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[testRequest](w, req, logger)

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeError(t, w).Error)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"title":"x","status":"Approved"}`))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[testRequest](w, req, logger)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed decimal keeps its validation code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"title":"x","percent":"NaN"}`))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[testRequest](w, req, logger)

		assert.False(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, string(dErrors.CodeValidation), decodeError(t, w).Error)
	})

	t.Run("oversized body returns 413", func(t *testing.T) {
		body := `{"title":"` + strings.Repeat("x", 200) + `"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		req.Body = http.MaxBytesReader(w, req.Body, 64)

		_, ok := DecodeJSON[testRequest](w, req, logger)

		assert.False(t, ok)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("empty body returns bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(""))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[testRequest](w, req, logger)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "request body is empty", decodeError(t, w).ErrorDescription)
	})
}

func TestBind(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("normalizes before validating", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"title":"  Board minutes  "}`))
		w := httptest.NewRecorder()

		result, ok := Bind[validatingRequest](w, req, logger)

		assert.True(t, ok)
		require.NotNil(t, result)
		assert.True(t, result.normalized)
		assert.Equal(t, "Board minutes", result.Title)
	})

	t.Run("plain validation error becomes validation_failed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"title":"   "}`))
		w := httptest.NewRecorder()

		result, ok := Bind[validatingRequest](w, req, logger)

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "validation_failed", resp.Error)
		assert.Contains(t, resp.ErrorDescription, "title is required")
	})

	t.Run("domain error code from Validate is preserved", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"id":""}`))
		w := httptest.NewRecorder()

		_, ok := Bind[domainErrorRequest](w, req, logger)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeError(t, w).Error)
	})
}

func TestPrepareSkipsPlainTypes(t *testing.T) {
	req := &testRequest{Title: "x"}
	assert.NoError(t, Prepare(req))
	assert.Equal(t, "x", req.Title)
}
