// Package telemetry provides OpenTelemetry instrumentation for the policy
// catalog server.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Provider bundles the meter provider with the Prometheus registry its
// metrics are exported through.
type Provider struct {
	MeterProvider metric.MeterProvider
	Registry      *prometheus.Registry

	shutdown func(context.Context) error
}

// NewProvider creates a meter provider backed by a Prometheus exporter.
// When disabled it returns a no-op provider with a nil registry; callers
// check Registry to decide whether to mount a /metrics endpoint.
func NewProvider(ctx context.Context, enabled bool, serviceName, serviceVersion string) (*Provider, error) {
	if !enabled {
		slog.Info("Metrics disabled, using no-op meter provider")
		return &Provider{MeterProvider: noop.NewMeterProvider()}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	slog.Info("Metrics initialized", "exporter", "prometheus")

	return &Provider{
		MeterProvider: mp,
		Registry:      registry,
		shutdown:      mp.Shutdown,
	}, nil
}

// Shutdown flushes and stops the underlying meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}
