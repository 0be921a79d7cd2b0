package service

import (
	"log/slog"
	"time"

	casemetrics "casereview/internal/cases/metrics"
	"casereview/internal/cases/tracer"
	"casereview/internal/compliance"
	"casereview/internal/query"
	"casereview/pkg/domain"
)

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *casemetrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(r *Registry) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithLocker replaces the in-process per-case lock, e.g. with a Redis lock
// shared by several instances.
func WithLocker(l Locker) Option {
	return func(r *Registry) {
		if l != nil {
			r.locker = l
		}
	}
}

// WithLockTimeout bounds how long a decision waits for its case lock.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.lockTimeout = d
		}
	}
}

func WithStoreTx(t StoreTx) Option {
	return func(r *Registry) {
		if t != nil {
			r.tx = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithEvaluator(e *compliance.Evaluator) Option {
	return func(r *Registry) {
		if e != nil {
			r.evaluator = e
		}
	}
}

// WithRequiredLocalPercentage sets the minimum local equity share decisions are classified against.
func WithRequiredLocalPercentage(required domain.Decimal) Option {
	return func(r *Registry) {
		r.required = required
	}
}

// WithExprCompiler enables CEL expression filters in Search.
func WithExprCompiler(c *query.ExprCompiler) Option {
	return func(r *Registry) {
		r.exprs = c
	}
}
