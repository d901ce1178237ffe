package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_Enabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "immagent-test",
		ServiceVersion: "0.0.0-test",
		SamplerType:    "always",
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, shutdown(context.Background())) }()

	tr := Tracer("immagent/test")
	_, span := tr.Start(context.Background(), "test-span")
	require.True(t, span.SpanContext().IsValid())
	span.End()
}
