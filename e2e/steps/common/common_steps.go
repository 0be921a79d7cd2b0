// Package common holds the response assertions every feature shares.
package common

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario state these steps read.
type TestContext interface {
	GET(path string, actorID string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &steps{tc: tc}

	ctx.Step(`^the case review service is running$`, s.serviceIsReady)
	ctx.Step(`^the response status should be (\d+)$`, s.statusIs)
	ctx.Step(`^the response should contain "([^"]*)"$`, s.bodyContains)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, s.fieldEquals)
	ctx.Step(`^the response field "([^"]*)" should contain "([^"]*)"$`, s.fieldContains)
	ctx.Step(`^the error code should be "([^"]*)"$`, s.errorCodeIs)
}

type steps struct {
	tc TestContext
}

// unexpected formats a failed expectation with the body for context.
func (s *steps) unexpected(format string, args ...any) error {
	return fmt.Errorf(format+"\nresponse: %s", append(args, s.tc.GetLastResponseBody())...)
}

func (s *steps) serviceIsReady(context.Context) error {
	if err := s.tc.GET("/healthz/ready", ""); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusOK {
		return s.unexpected("service not ready: status %d", s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *steps) statusIs(_ context.Context, want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return s.unexpected("status: want %d, got %d", want, got)
	}
	return nil
}

func (s *steps) bodyContains(_ context.Context, text string) error {
	if !strings.Contains(string(s.tc.GetLastResponseBody()), text) {
		return s.unexpected("body does not contain %q", text)
	}
	return nil
}

func (s *steps) field(name string) (string, error) {
	v, err := s.tc.GetResponseField(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

func (s *steps) fieldEquals(_ context.Context, name, want string) error {
	got, err := s.field(name)
	if err != nil {
		return err
	}
	if got != want {
		return s.unexpected("field %s: want %q, got %q", name, want, got)
	}
	return nil
}

func (s *steps) fieldContains(_ context.Context, name, part string) error {
	got, err := s.field(name)
	if err != nil {
		return err
	}
	if !strings.Contains(got, part) {
		return s.unexpected("field %s: %q does not contain %q", name, got, part)
	}
	return nil
}

func (s *steps) errorCodeIs(_ context.Context, want string) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return fmt.Errorf("decode error response: %w", err)
	}
	if body.Error != want {
		return s.unexpected("error code: want %s, got %s", want, body.Error)
	}
	return nil
}
