package tracer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"casereview/internal/cases/tracer"
)

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	newCtx, span := tracer.NewNoop().Start(ctx, tracer.SpanDecide, tracer.String(tracer.AttrCaseID, "c-1"))
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(tracer.Bool("flag", true))
	span.AddEvent(tracer.EventAuditRecorded)
	span.End(errors.New("ignored"))
}

func TestOTelTracer_RecordsAttributesAndErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := tracer.NewOTel(tracer.WithTracerProvider(tp))

	_, span := tr.Start(context.Background(), tracer.SpanDecide,
		tracer.String(tracer.AttrCaseID, "c-1"),
		tracer.Int64("case.version", 3),
	)
	span.AddEvent(tracer.EventComplianceEvaluated, tracer.String(tracer.AttrClassification, "Marginal"))
	span.End(errors.New("illegal transition"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, tracer.SpanDecide, got.Name())
	assert.Contains(t, got.Attributes(), attribute.String(tracer.AttrCaseID, "c-1"))
	assert.Contains(t, got.Attributes(), attribute.Int64("case.version", 3))
	assert.Equal(t, codes.Error, got.Status().Code)
	require.Len(t, got.Events(), 2)
	assert.Equal(t, tracer.EventComplianceEvaluated, got.Events()[0].Name)
}
