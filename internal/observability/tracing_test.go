package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "xplore-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	span, ctx := NewSpan(context.Background(), "noop", attribute.Int("n", 1))
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() {
		span.AddAttributes(attribute.String("k", "v"))
		failure := errors.New("boom")
		span.Finish(&failure)
	})
}

func TestSpan_FinishWithNilErrorPointer(t *testing.T) {
	span, _ := NewSpan(context.Background(), "nil-error")
	assert.NotPanics(t, func() { span.Finish(nil) })
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{ServiceName: "xplore-test", Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "zipkin")
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(1).Description())
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestTrackQuery_ObservesLatency(t *testing.T) {
	before := testutil.CollectAndCount(DatabaseQueryLatency)
	TrackQuery("select", "tracking_probe")()
	assert.Equal(t, before+1, testutil.CollectAndCount(DatabaseQueryLatency))
}
