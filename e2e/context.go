package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"casereview/internal/audit"
	auditstore "casereview/internal/audit/store"
	casehandler "casereview/internal/cases/handler"
	"casereview/internal/cases/service"
	casestore "casereview/internal/cases/store"
	"casereview/internal/platform/health"
	"casereview/internal/platform/metrics"
	"casereview/internal/query"
	httptransport "casereview/internal/transport/http"
	"casereview/pkg/platform/middleware/actor"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	// Cases maps scenario aliases to case ids; CurrentCase is the last one submitted.
	Cases       map[string]string
	CurrentCase string

	server *httptest.Server
}

// NewTestContext targets BASE_URL when set and otherwise starts the service
// in process with in-memory stores.
func NewTestContext() *TestContext {
	tc := &TestContext{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Cases:      make(map[string]string),
	}
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		tc.BaseURL = strings.TrimRight(baseURL, "/")
		return tc
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exprs, err := query.NewExprCompiler()
	if err != nil {
		panic(fmt.Sprintf("create expression compiler: %v", err))
	}
	registry := service.New(
		casestore.NewInMemory(),
		audit.NewRecorder(auditstore.NewInMemory(), audit.WithLogger(logger)),
		service.WithLogger(logger),
		service.WithExprCompiler(exprs),
	)
	tc.server = httptest.NewServer(httptransport.NewRouter(httptransport.Dependencies{
		Cases:   casehandler.New(registry, logger),
		Health:  health.New("e2e"),
		Metrics: metrics.NewRegistry("e2e", "e2e"),
		Logger:  logger,
	}))
	tc.BaseURL = tc.server.URL
	return tc
}

// Close stops the in-process server, if one was started.
func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
	}
}

// POST sends body as JSON on behalf of actorID.
func (tc *TestContext) POST(path string, body any, actorID string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(data), actorID)
}

// GET fetches path on behalf of actorID.
func (tc *TestContext) GET(path string, actorID string) error {
	return tc.do(http.MethodGet, path, nil, actorID)
}

func (tc *TestContext) do(method, path string, body io.Reader, actorID string) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actorID != "" {
		req.Header.Set(actor.HeaderID, actorID)
		req.Header.Set(actor.HeaderName, actorID)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a top-level field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

func (tc *TestContext) RememberCase(alias, caseID string) {
	tc.Cases[alias] = caseID
	tc.CurrentCase = caseID
}

// CaseID resolves an alias; the empty alias means the current case.
func (tc *TestContext) CaseID(alias string) (string, error) {
	if alias == "" {
		if tc.CurrentCase == "" {
			return "", fmt.Errorf("no case submitted yet")
		}
		return tc.CurrentCase, nil
	}
	caseID, ok := tc.Cases[alias]
	if !ok {
		return "", fmt.Errorf("unknown case %q", alias)
	}
	return caseID, nil
}
