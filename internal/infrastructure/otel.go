package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

const (
	ServiceName    = "panelpulse"
	ServiceVersion = "1.0.0"
	MeterName      = "panelpulse"
)

// OTelProviders holds the OpenTelemetry metric provider and the Prometheus
// scrape handler served on /metrics.
type OTelProviders struct {
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up OpenTelemetry metrics with a Prometheus exporter.
func InitializeOTel(logger *slog.Logger) (*OTelProviders, error) {
	ctx := context.Background()

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	providers := &OTelProviders{
		MeterProvider:  mp,
		Meter:          mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion)),
		PrometheusHTTP: promhttp.Handler(),
		Logger:         logger,
	}

	logger.InfoContext(ctx, "metrics initialized",
		slog.String("exporter", "prometheus"),
		slog.String("service", ServiceName))

	return providers, nil
}

// Shutdown gracefully shuts down the meter provider, flushing pending metrics.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p.MeterProvider == nil {
		return nil
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}
	p.Logger.InfoContext(ctx, "metrics shutdown complete")
	return nil
}

// AnalyticsMetrics holds the application metric instruments.
type AnalyticsMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	ComputationsTotal   metric.Int64Counter
	ComputationDuration metric.Float64Histogram
	ComputationErrors   metric.Int64Counter
	SuppressedWindows   metric.Int64Counter
	ScannedLines        metric.Int64Counter
}

// CreateAnalyticsMetrics registers the application instruments on a meter.
func CreateAnalyticsMetrics(meter metric.Meter) (*AnalyticsMetrics, error) {
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	computationsTotal, err := meter.Int64Counter(
		"analytics_computations_total",
		metric.WithDescription("Total number of analytics computations"),
	)
	if err != nil {
		return nil, err
	}

	computationDuration, err := meter.Float64Histogram(
		"analytics_computation_duration_seconds",
		metric.WithDescription("Analytics computation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	computationErrors, err := meter.Int64Counter(
		"analytics_computation_errors_total",
		metric.WithDescription("Total number of failed analytics computations"),
	)
	if err != nil {
		return nil, err
	}

	suppressedWindows, err := meter.Int64Counter(
		"analytics_suppressed_windows_total",
		metric.WithDescription("Total number of windows reported as suppressed"),
	)
	if err != nil {
		return nil, err
	}

	scannedLines, err := meter.Int64Counter(
		"analytics_scanned_lines_total",
		metric.WithDescription("Total number of transaction lines scanned"),
	)
	if err != nil {
		return nil, err
	}

	return &AnalyticsMetrics{
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		HTTPActiveRequests:  httpActiveRequests,
		ComputationsTotal:   computationsTotal,
		ComputationDuration: computationDuration,
		ComputationErrors:   computationErrors,
		SuppressedWindows:   suppressedWindows,
		ScannedLines:        scannedLines,
	}, nil
}

// RecordComputation records one analytics computation outcome.
func (m *AnalyticsMetrics) RecordComputation(ctx context.Context, kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("computation", kind)}
	m.ComputationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	status := "success"
	if err != nil {
		status = "failure"
		m.ComputationErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	m.ComputationDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(append(attrs, attribute.String("status", status))...))
}

// RecordSuppressedWindow counts a window suppressed by the trust policy.
func (m *AnalyticsMetrics) RecordSuppressedWindow(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.SuppressedWindows.Add(ctx, 1,
		metric.WithAttributes(attribute.String("computation", kind)))
}
