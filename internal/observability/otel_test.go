package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/esic-backend/internal/config"
)

var testLifecycle = config.LifecycleConfig{ResponseDays: 20, ExtensionDays: 10, MaxAppealInstances: 3}

func otelConfig(name string, insecure bool) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    insecure,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func preserveOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestSetupOTel_DisabledIsNoop(t *testing.T) {
	preserveOTelGlobals(t)
	prevTP := otel.GetTracerProvider()

	cfg := otelConfig("esic-backend", true)
	cfg.Enabled = false
	shutdown, err := SetupOTel(context.Background(), cfg, testLifecycle, "v0.0.0")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
	require.Equal(t, prevTP, otel.GetTracerProvider())
}

func TestSetupOTel_InstallsProviderAndPropagator(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		preserveOTelGlobals(t)

		shutdown, err := SetupOTel(context.Background(), otelConfig("esic-backend", insecure), testLifecycle, "v1.2.3")
		require.NoError(t, err)

		_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
		require.True(t, ok, "expected sdk tracer provider (insecure=%v)", insecure)

		ctx, span := otel.Tracer("services/RequestRegistry").Start(context.Background(), "Submit")
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		span.End()
		require.NotEmpty(t, carrier.Get("traceparent"))

		sctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		_ = shutdown(sctx)
		cancel()
	}
}

func TestSetupOTel_ResourceCarriesLifecycle(t *testing.T) {
	preserveOTelGlobals(t)

	orig := newServiceResourceFn
	t.Cleanup(func() { newServiceResourceFn = orig })

	var got []attribute.KeyValue
	newServiceResourceFn = func(ctx context.Context, serviceName, version string, extra ...attribute.KeyValue) (*resource.Resource, error) {
		got = extra
		return orig(ctx, serviceName, version, extra...)
	}

	shutdown, err := SetupOTel(context.Background(), otelConfig("esic-backend", true), testLifecycle, "v1")
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	require.Contains(t, got, attribute.Int("esic.response_days", 20))
	require.Contains(t, got, attribute.Int("esic.max_appeal_instances", 3))
}

func TestSetupOTel_ErrorsLeaveGlobalsIntact(t *testing.T) {
	t.Run("exporter", func(t *testing.T) {
		preserveOTelGlobals(t)
		orig := newOTLPExporterFn
		t.Cleanup(func() { newOTLPExporterFn = orig })
		newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
			return nil, errors.New("boom-exporter")
		}

		prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
		_, err := SetupOTel(context.Background(), otelConfig("svc", true), testLifecycle, "v0")
		require.EqualError(t, err, "boom-exporter")
		require.Equal(t, prevTP, otel.GetTracerProvider())
		require.Equal(t, prevProp, otel.GetTextMapPropagator())
	})

	t.Run("resource", func(t *testing.T) {
		preserveOTelGlobals(t)
		orig := newServiceResourceFn
		t.Cleanup(func() { newServiceResourceFn = orig })
		newServiceResourceFn = func(context.Context, string, string, ...attribute.KeyValue) (*resource.Resource, error) {
			return nil, errors.New("boom-resource")
		}

		prevTP := otel.GetTracerProvider()
		_, err := SetupOTel(context.Background(), otelConfig("svc", true), testLifecycle, "v0")
		require.EqualError(t, err, "boom-resource")
		require.Equal(t, prevTP, otel.GetTracerProvider())
	})
}

func TestClampRatio(t *testing.T) {
	require.Equal(t, 0.0, clampRatio(-1))
	require.Equal(t, 0.25, clampRatio(0.25))
	require.Equal(t, 1.0, clampRatio(7))
}
