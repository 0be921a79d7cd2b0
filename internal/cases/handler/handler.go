package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"casereview/internal/audit"
	"casereview/internal/cases/models"
	"casereview/internal/cases/service"
	"casereview/internal/compliance"
	"casereview/internal/query"
	id "casereview/pkg/domain"
	"casereview/pkg/platform/httputil"
	"casereview/pkg/platform/middleware/actor"
	"casereview/pkg/platform/middleware/request"
)

// Service is the case registry as seen by the HTTP layer.
type Service interface {
	Submit(ctx context.Context, cmd service.SubmitCommand) (*models.Case, error)
	Get(ctx context.Context, caseID id.CaseID) (*models.Case, error)
	Decide(ctx context.Context, cmd service.DecideCommand) (*models.Case, error)
	Evaluate(ctx context.Context, caseID id.CaseID) (compliance.Result, error)
	Search(ctx context.Context, q query.CaseQuery) (query.Result, error)
	AuditTrail(ctx context.Context, filter audit.Filter, limit int) ([]audit.Fact, error)
	VerifyAudit(ctx context.Context, filter audit.Filter) ([]audit.ChainBreak, error)
}

// Handler serves the case review endpoints.
type Handler struct {
	logger *slog.Logger
	cases  Service
}

// New creates a case Handler.
func New(cases Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, cases: cases}
}

// Register registers the case routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cases", h.handleSubmit)
	r.Get("/cases", h.handleSearch)
	r.Get("/cases/{id}", h.handleGet)
	r.Post("/cases/{id}/decisions", h.handleDecide)
	r.Get("/cases/{id}/compliance", h.handleCompliance)
	r.Get("/audit", h.handleAuditTrail)
	r.Get("/audit/verify", h.handleVerifyAudit)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.RequestID(ctx)

	req, ok := httputil.Bind[SubmitRequest](w, r, h.logger)
	if !ok {
		return
	}

	c, err := h.cases.Submit(ctx, req.Command(actor.FromContext(ctx)))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to submit case",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Location", "/cases/"+c.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.cases.Get(ctx, caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.RequestID(ctx)

	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.Bind[DecisionRequest](w, r, h.logger)
	if !ok {
		return
	}

	c, err := h.cases.Decide(ctx, service.DecideCommand{
		CaseID:          caseID,
		To:              models.Status(req.Status),
		Actor:           actor.FromContext(ctx),
		Comment:         req.Comment,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "decision refused",
			"request_id", requestID,
			"case_id", caseID.String(),
			"to", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.cases.Evaluate(ctx, caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// SearchResponse is one page of matching cases.
type SearchResponse struct {
	Items  []*models.Case `json:"items"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseCaseQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.cases.Search(ctx, q)
	if err != nil {
		h.logger.WarnContext(ctx, "case search failed",
			"request_id", request.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	items := res.Items
	if items == nil {
		items = []*models.Case{}
	}
	httputil.WriteJSON(w, http.StatusOK, SearchResponse{
		Items:  items,
		Total:  res.Total,
		Offset: q.Offset,
		Limit:  q.Limit,
	})
}

// AuditResponse lists audit facts, newest first.
type AuditResponse struct {
	Facts []audit.Fact `json:"facts"`
	Count int          `json:"count"`
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, limit, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	facts, err := h.cases.AuditTrail(ctx, filter, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if facts == nil {
		facts = []audit.Fact{}
	}
	httputil.WriteJSON(w, http.StatusOK, AuditResponse{Facts: facts, Count: len(facts)})
}

// ChainBreakResponse locates one fact whose hash or link does not verify.
type ChainBreakResponse struct {
	EntityType audit.EntityType `json:"entityType"`
	EntityID   string           `json:"entityId"`
	FactID     string           `json:"factId"`
	Sequence   int64            `json:"sequence"`
}

// VerifyResponse reports the outcome of re-walking the audit hash chains.
type VerifyResponse struct {
	Intact bool                 `json:"intact"`
	Breaks []ChainBreakResponse `json:"breaks"`
}

func (h *Handler) handleVerifyAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := audit.Filter{
		EntityType: audit.EntityType(strings.TrimSpace(q.Get("entityType"))),
		EntityID:   strings.TrimSpace(q.Get("entityId")),
	}

	breaks, err := h.cases.VerifyAudit(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit verification failed",
			"request_id", request.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := VerifyResponse{Intact: len(breaks) == 0, Breaks: make([]ChainBreakResponse, 0, len(breaks))}
	for _, b := range breaks {
		resp.Breaks = append(resp.Breaks, ChainBreakResponse{
			EntityType: b.EntityType,
			EntityID:   b.EntityID,
			FactID:     b.FactID.String(),
			Sequence:   b.Sequence,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
