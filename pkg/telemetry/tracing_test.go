package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(NewProvider(nil, trace.AlwaysSample(), recorder))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestWithSpan(t *testing.T) {
	recorder := recordSpans(t)

	err := WithSpan(context.Background(), "spec.done", func(ctx context.Context) error {
		SetAttributes(ctx, attribute.Int("unblocked", 2))
		return nil
	}, attribute.String("task", "TASK-a"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithSpan(context.Background(), "spec.start", func(context.Context) error { return boom })
	assert.Equal(t, boom, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "spec.done", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("task", "TASK-a"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("unblocked", 2))

	assert.Equal(t, "spec.start", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}

func TestWithSpanFunc(t *testing.T) {
	recorder := recordSpans(t)

	called := false
	WithSpanFunc(context.Background(), "validate.run", func(context.Context) { called = true })

	assert.True(t, called)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "validate.run", spans[0].Name())
	assert.Equal(t, ServiceName, spans[0].InstrumentationScope().Name)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		cfg      Config
		expected string
	}{
		{Config{Sampler: SamplerAlways}, trace.AlwaysSample().Description()},
		{Config{Sampler: SamplerNever}, trace.NeverSample().Description()},
		{Config{Sampler: SamplerRatio, Ratio: 0.5}, trace.ParentBased(trace.TraceIDRatioBased(0.5)).Description()},
		{Config{}, trace.AlwaysSample().Description()},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Sampler, func(t *testing.T) {
			assert.Equal(t, tt.expected, sampler(tt.cfg).Description())
		})
	}
}
