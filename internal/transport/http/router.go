package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	casehandler "casereview/internal/cases/handler"
	"casereview/internal/platform/health"
	"casereview/internal/platform/metrics"
	"casereview/pkg/platform/middleware/actor"
	"casereview/pkg/platform/middleware/request"
)

const (
	defaultBodyLimit      = 1 << 20
	defaultRequestTimeout = 30 * time.Second
)

// Dependencies are the pieces the router mounts. Cases and Health are required.
type Dependencies struct {
	Cases   *casehandler.Handler
	Health  *health.Handler
	Metrics *metrics.Registry
	Logger  *slog.Logger

	BodyLimit      int64
	RequestTimeout time.Duration
}

// NewRouter wires all public endpoints with middleware. Probes and /metrics
// sit outside the body limit, timeout and actor middleware.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bodyLimit := deps.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = defaultBodyLimit
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.Middleware)
	r.Use(request.Logger(logger))

	deps.Health.Register(r)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Group(func(api chi.Router) {
		if deps.Metrics != nil {
			api.Use(request.LatencyMiddleware(request.NewMetrics(deps.Metrics)))
		}
		api.Use(request.Timeout(timeout))
		api.Use(request.BodyLimit(bodyLimit))
		api.Use(request.ContentTypeJSON)
		api.Use(actor.Middleware)
		deps.Cases.Register(api)
	})

	return r
}
