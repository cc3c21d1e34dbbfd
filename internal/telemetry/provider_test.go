package telemetry

import (
	"context"
	"testing"

	"github.com/DRSN-tech/dscommerce-backend/internal/cfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerProviderWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracerProvider(context.Background(), &cfg.TelemetryCfg{ServiceName: "dscommerce-test"}, "test")
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(context.Background()))
}

func TestInitMeterProviderExportsToRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	shutdown, err := InitMeterProvider(&cfg.TelemetryCfg{ServiceName: "dscommerce-test"}, "test", reg)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	counter, err := otel.Meter("test").Int64Counter("orders_seen")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "orders_seen_total")
}
