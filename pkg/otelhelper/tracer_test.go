package otelhelper

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
)

func TestSetup_Disabled(t *testing.T) {
	tracer, shutdown, err := Setup(context.Background(), "forgestate-test", false)
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := StartSpan(context.Background(), tracer, "noop")
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("forgestate-test")

	_, span := StartSpan(context.Background(), tracer, "orchestrator.create_from_template",
		attribute.String(TemplateNameKey, "trading_bot"))
	SetValidation(span, false, 2)
	SetError(span, errors.New("validation failed"), attribute.String(WorkflowIDKey, "wf-1"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	ended := spans[0]
	assert.Equal(t, "orchestrator.create_from_template", ended.Name())
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Contains(t, ended.Attributes(), attribute.String(TemplateNameKey, "trading_bot"))
	assert.Contains(t, ended.Attributes(), attribute.Bool(ValidKey, false))
	assert.Contains(t, ended.Attributes(), attribute.Int(ErrorCountKey, 2))
	require.Len(t, ended.Events(), 2)
}
