package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any, actorID string) error
	GET(path string, actorID string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	RememberCase(alias, caseID string)
	CaseID(alias string) (string, error)
}

// RegisterSteps registers case lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &caseSteps{tc: tc}

	ctx.Step(`^"([^"]*)" submits an? "([^"]*)" case "([^"]*)" for company "([^"]*)"$`, steps.submitCase)
	ctx.Step(`^"([^"]*)" submits an equity verification case "([^"]*)" with total investment "([^"]*)" and stakes:$`, steps.submitEquityCase)
	ctx.Step(`^"([^"]*)" moves case "([^"]*)" to "([^"]*)"$`, steps.moveCase)
	ctx.Step(`^"([^"]*)" moves case "([^"]*)" to "([^"]*)" with comment "([^"]*)"$`, steps.moveCaseWithComment)
	ctx.Step(`^an anonymous caller moves case "([^"]*)" to "([^"]*)"$`, steps.moveCaseAnonymously)
	ctx.Step(`^case "([^"]*)" should have status "([^"]*)"$`, steps.caseShouldHaveStatus)
	ctx.Step(`^case "([^"]*)" should be classified "([^"]*)"$`, steps.caseShouldBeClassified)
	ctx.Step(`^case "([^"]*)" should be reviewed by "([^"]*)"$`, steps.caseShouldBeReviewedBy)
	ctx.Step(`^the compliance evaluation of case "([^"]*)" should report local percentage "([^"]*)" and classification "([^"]*)"$`, steps.complianceShouldReport)
	ctx.Step(`^the audit trail of case "([^"]*)" should list actions "([^"]*)"$`, steps.auditTrailShouldList)
	ctx.Step(`^the audit trail of case "([^"]*)" should form an intact hash chain$`, steps.auditTrailShouldChain)
	ctx.Step(`^the service should verify the audit chain of case "([^"]*)"$`, steps.serviceShouldVerifyChain)
	ctx.Step(`^searching cases with "([^"]*)" should return (\d+) cases?$`, steps.searchShouldReturn)
	ctx.Step(`^I search cases with "([^"]*)"$`, steps.search)
	ctx.Step(`^searching cases with expression '([^']*)' should return (\d+) cases?$`, steps.searchByExpressionShouldReturn)
	ctx.Step(`^"([^"]*)" submits a broken equity structure$`, steps.submitBrokenEquity)
}

type caseSteps struct {
	tc TestContext
}

type caseView struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Reviewer   string `json:"reviewer"`
	Version    int64  `json:"version"`
	Compliance *struct {
		LocalPercentage json.Number `json:"localPercentage"`
		Classification  string      `json:"classification"`
	} `json:"compliance"`
}

type factView struct {
	Action   string `json:"action"`
	PrevHash string `json:"prevHash"`
	Hash     string `json:"hash"`
}

func (s *caseSteps) submitCase(ctx context.Context, submitter, kind, alias, company string) error {
	return s.submit(submitter, alias, map[string]any{
		"kind":        kind,
		"title":       alias,
		"company":     company,
		"priority":    "medium",
		"submittedBy": submitter,
		"submit":      true,
	})
}

func (s *caseSteps) submitEquityCase(ctx context.Context, submitter, alias, total string, table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("stakes table needs a header and at least one row")
	}
	header := make([]string, len(table.Rows[0].Cells))
	for i, cell := range table.Rows[0].Cells {
		header[i] = cell.Value
	}
	stakes := make([]map[string]string, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		stake := make(map[string]string, len(header))
		for i, cell := range row.Cells {
			stake[header[i]] = cell.Value
		}
		stakes = append(stakes, stake)
	}
	return s.submit(submitter, alias, map[string]any{
		"kind":            "EquityVerification",
		"title":           alias,
		"company":         alias,
		"priority":        "high",
		"submittedBy":     submitter,
		"equityBreakdown": stakes,
		"totalInvestment": total,
		"submit":          true,
	})
}

// submitBrokenEquity posts stakes summing to 90 and leaves the outcome for
// the following steps to check.
func (s *caseSteps) submitBrokenEquity(ctx context.Context, submitter string) error {
	return s.tc.POST("/cases", map[string]any{
		"kind":        "EquityVerification",
		"title":       "Broken structure",
		"company":     "Broken Ltd",
		"priority":    "low",
		"submittedBy": submitter,
		"equityBreakdown": []map[string]string{
			{"partyName": "A", "nationality": "Ghana", "percentage": "50", "investmentAmount": "50"},
			{"partyName": "B", "nationality": "Togo", "percentage": "40", "investmentAmount": "40"},
		},
		"totalInvestment": "90",
		"submit":          true,
	}, submitter)
}

func (s *caseSteps) submit(submitter, alias string, body map[string]any) error {
	if err := s.tc.POST("/cases", body, submitter); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 201 {
		return fmt.Errorf("submit %q: expected 201 but got %d: %s", alias, status, s.tc.GetLastResponseBody())
	}
	caseID, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.RememberCase(alias, fmt.Sprint(caseID))
	return nil
}

func (s *caseSteps) moveCase(ctx context.Context, reviewer, alias, to string) error {
	return s.decide(reviewer, alias, to, "")
}

func (s *caseSteps) moveCaseWithComment(ctx context.Context, reviewer, alias, to, comment string) error {
	return s.decide(reviewer, alias, to, comment)
}

func (s *caseSteps) moveCaseAnonymously(ctx context.Context, alias, to string) error {
	return s.decide("", alias, to, "")
}

func (s *caseSteps) decide(reviewer, alias, to, comment string) error {
	caseID, err := s.tc.CaseID(alias)
	if err != nil {
		return err
	}
	return s.tc.POST("/cases/"+caseID+"/decisions", map[string]any{
		"status":  to,
		"comment": comment,
	}, reviewer)
}

func (s *caseSteps) fetch(alias string) (caseView, error) {
	var view caseView
	caseID, err := s.tc.CaseID(alias)
	if err != nil {
		return view, err
	}
	if err := s.tc.GET("/cases/"+caseID, ""); err != nil {
		return view, err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return view, fmt.Errorf("get case %q: status %d", alias, status)
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &view); err != nil {
		return view, fmt.Errorf("decode case: %w", err)
	}
	return view, nil
}

func (s *caseSteps) caseShouldHaveStatus(ctx context.Context, alias, status string) error {
	view, err := s.fetch(alias)
	if err != nil {
		return err
	}
	if view.Status != status {
		return fmt.Errorf("case %q: expected status %s but got %s", alias, status, view.Status)
	}
	return nil
}

func (s *caseSteps) caseShouldBeClassified(ctx context.Context, alias, classification string) error {
	view, err := s.fetch(alias)
	if err != nil {
		return err
	}
	if view.Compliance == nil {
		return fmt.Errorf("case %q has no compliance result", alias)
	}
	if view.Compliance.Classification != classification {
		return fmt.Errorf("case %q: expected %s but got %s", alias, classification, view.Compliance.Classification)
	}
	return nil
}

func (s *caseSteps) caseShouldBeReviewedBy(ctx context.Context, alias, reviewer string) error {
	view, err := s.fetch(alias)
	if err != nil {
		return err
	}
	if view.Reviewer != reviewer {
		return fmt.Errorf("case %q: expected reviewer %s but got %q", alias, reviewer, view.Reviewer)
	}
	return nil
}

func (s *caseSteps) complianceShouldReport(ctx context.Context, alias, local, classification string) error {
	caseID, err := s.tc.CaseID(alias)
	if err != nil {
		return err
	}
	if err := s.tc.GET("/cases/"+caseID+"/compliance", ""); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("evaluate case %q: status %d: %s", alias, status, s.tc.GetLastResponseBody())
	}
	var res struct {
		LocalPercentage json.Number `json:"localPercentage"`
		Classification  string      `json:"classification"`
	}
	dec := json.NewDecoder(strings.NewReader(string(s.tc.GetLastResponseBody())))
	dec.UseNumber()
	if err := dec.Decode(&res); err != nil {
		return fmt.Errorf("decode compliance result: %w", err)
	}
	if res.LocalPercentage.String() != local {
		return fmt.Errorf("expected local percentage %s but got %s", local, res.LocalPercentage)
	}
	if res.Classification != classification {
		return fmt.Errorf("expected classification %s but got %s", classification, res.Classification)
	}
	return nil
}

// trail returns the case's facts oldest first.
func (s *caseSteps) trail(alias string) ([]factView, error) {
	caseID, err := s.tc.CaseID(alias)
	if err != nil {
		return nil, err
	}
	q := url.Values{"entityType": {"case"}, "entityId": {caseID}}
	if err := s.tc.GET("/audit?"+q.Encode(), ""); err != nil {
		return nil, err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return nil, fmt.Errorf("audit trail: status %d", status)
	}
	var body struct {
		Facts []factView `json:"facts"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return nil, fmt.Errorf("decode audit trail: %w", err)
	}
	slices.Reverse(body.Facts)
	return body.Facts, nil
}

func (s *caseSteps) auditTrailShouldList(ctx context.Context, alias, actions string) error {
	facts, err := s.trail(alias)
	if err != nil {
		return err
	}
	got := make([]string, len(facts))
	for i, f := range facts {
		got[i] = f.Action
	}
	want := strings.Split(actions, ",")
	for i := range want {
		want[i] = strings.TrimSpace(want[i])
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("expected actions %v but got %v", want, got)
	}
	return nil
}

func (s *caseSteps) auditTrailShouldChain(ctx context.Context, alias string) error {
	facts, err := s.trail(alias)
	if err != nil {
		return err
	}
	prev := ""
	for i, f := range facts {
		if f.PrevHash != prev {
			return fmt.Errorf("fact %d (%s) links to %q, expected %q", i, f.Action, f.PrevHash, prev)
		}
		prev = f.Hash
	}
	return nil
}

func (s *caseSteps) serviceShouldVerifyChain(ctx context.Context, alias string) error {
	caseID, err := s.tc.CaseID(alias)
	if err != nil {
		return err
	}
	if err := s.tc.GET("/audit/verify?"+url.Values{"entityType": {"case"}, "entityId": {caseID}}.Encode(), ""); err != nil {
		return err
	}
	intact, err := s.tc.GetResponseField("intact")
	if err != nil {
		return err
	}
	if intact != true {
		return fmt.Errorf("audit chain of %s reported broken: %s", alias, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *caseSteps) search(ctx context.Context, rawQuery string) error {
	return s.tc.GET("/cases?"+rawQuery, "")
}

func (s *caseSteps) searchShouldReturn(ctx context.Context, rawQuery string, count int) error {
	if err := s.search(ctx, rawQuery); err != nil {
		return err
	}
	total, err := s.tc.GetResponseField("total")
	if err != nil {
		return err
	}
	if fmt.Sprint(total) != fmt.Sprint(count) {
		return fmt.Errorf("expected %d cases but got %v", count, total)
	}
	return nil
}

func (s *caseSteps) searchByExpressionShouldReturn(ctx context.Context, expr string, count int) error {
	return s.searchShouldReturn(ctx, url.Values{"expr": {expr}}.Encode(), count)
}
