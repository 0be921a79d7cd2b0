// Package tracer wraps the spans the case registry emits around submissions,
// decisions and expiry sweeps. The registry depends on Tracer only; NewNoop
// serves tests and deployments without a collector, NewOTel everything else.
package tracer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Span is one traced operation. End must be called exactly once.
type Span interface {
	// End closes the span, marking it failed when err is non-nil.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer is safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is an OpenTelemetry key/value so no conversion is needed at export.
type Attribute = attribute.KeyValue

func String(key, value string) Attribute { return attribute.String(key, value) }

func Bool(key string, value bool) Attribute { return attribute.Bool(key, value) }

func Int64(key string, value int64) Attribute { return attribute.Int64(key, value) }

// Duration is recorded in whole milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return attribute.Int64(key, value.Milliseconds())
}

const (
	SpanSubmit        = "cases.submit"
	SpanDecide        = "cases.decide"
	SpanExpireOverdue = "cases.expire_overdue"
)

const (
	AttrCaseID         = "case.id"
	AttrCaseKind       = "case.kind"
	AttrFromStatus     = "case.from_status"
	AttrToStatus       = "case.to_status"
	AttrClassification = "compliance.classification"
	AttrLockWaitMs     = "lock.wait_ms"
	AttrExpiredCount   = "expired.count"
)

const (
	EventComplianceEvaluated = "compliance.evaluated"
	EventAuditRecorded       = "audit.recorded"
)

type noop struct{}

// NewNoop returns a Tracer whose spans record nothing.
func NewNoop() Tracer { return noop{} }

func (noop) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noop{}
}

func (noop) End(error)                     {}
func (noop) SetAttributes(...Attribute)    {}
func (noop) AddEvent(string, ...Attribute) {}
