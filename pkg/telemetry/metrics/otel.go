package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mercator-hq/callmeter/pkg/clientmetrics"
	"mercator-hq/callmeter/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// MeterName is the instrumentation scope of the histograms OTelRegistry creates.
const MeterName = "mercator-hq/callmeter/clientmetrics"

// OTelRegistry records client timings as OpenTelemetry Float64Histograms,
// one per metric name, with the labels attached as attributes.
type OTelRegistry struct {
	meter   metric.Meter
	buckets []float64

	mu         sync.RWMutex
	histograms map[string]metric.Float64Histogram

	failures metric.Int64Counter
}

// NewOTelRegistry creates a registry backed by meter. Bucket boundaries are
// passed to the SDK as explicit histogram boundaries when given.
func NewOTelRegistry(meter metric.Meter, buckets []float64) (*OTelRegistry, error) {
	if meter == nil {
		return nil, errors.New("meter is required")
	}

	failures, err := meter.Int64Counter("client_metrics.dropped_samples",
		metric.WithDescription("Client timing samples the OpenTelemetry backend could not record"),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dropped samples counter: %w", err)
	}

	return &OTelRegistry{
		meter:      meter,
		buckets:    append([]float64(nil), buckets...),
		histograms: make(map[string]metric.Float64Histogram),
		failures:   failures,
	}, nil
}

// RecordTiming implements clientmetrics.Registry.
func (r *OTelRegistry) RecordTiming(metricName string, labels clientmetrics.LabelSet, d time.Duration) {
	ctx := context.Background()

	hist, err := r.histogram(metricName)
	if err != nil {
		r.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("metric", metricName)))
		return
	}

	hist.Record(ctx, d.Seconds(), metric.WithAttributes(attributes(labels)...))
}

func (r *OTelRegistry) histogram(metricName string) (metric.Float64Histogram, error) {
	r.mu.RLock()
	hist, ok := r.histograms[metricName]
	r.mu.RUnlock()
	if ok {
		return hist, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if hist, ok := r.histograms[metricName]; ok {
		return hist, nil
	}

	opts := []metric.Float64HistogramOption{
		metric.WithDescription(fmt.Sprintf("Duration of outbound calls recorded as %s", metricName)),
		metric.WithUnit("s"),
	}
	if len(r.buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(r.buckets...))
	}

	hist, err := r.meter.Float64Histogram(metricName, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %q: %w", metricName, err)
	}
	r.histograms[metricName] = hist
	return hist, nil
}

func attributes(labels clientmetrics.LabelSet) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, labels.Len())
	for _, l := range labels.Labels() {
		kvs = append(kvs, attribute.String(l.Key, l.Value))
	}
	return kvs
}

// OTelProvider owns the meter provider pushing to an OTLP collector.
type OTelProvider struct {
	provider *sdkmetric.MeterProvider
}

// NewOTelProvider creates an OTLP gRPC exporter for cfg.OTLP.Endpoint and a
// meter provider that pushes on cfg.OTLP.PushInterval. The provider is also
// installed as the global meter provider.
func NewOTelProvider(ctx context.Context, cfg *config.MetricsConfig, serviceName, serviceVersion string) (*OTelProvider, error) {
	if cfg == nil {
		return nil, errors.New("metrics config is required")
	}
	if cfg.OTLP.Endpoint == "" {
		return nil, errors.New("otlp endpoint is required for the otel metrics backend")
	}

	exporter, err := otlpmetricgrpc.New(ctx, exporterOptions(&cfg.OTLP)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	interval := cfg.OTLP.PushInterval
	if interval <= 0 {
		interval = config.DefaultOTLPPushInterval
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	return &OTelProvider{provider: provider}, nil
}

// Meter returns the callmeter meter.
func (p *OTelProvider) Meter() metric.Meter {
	return p.provider.Meter(MeterName)
}

// Shutdown flushes pending data points and stops the exporter.
func (p *OTelProvider) Shutdown(ctx context.Context) error {
	if err := p.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

func exporterOptions(cfg *config.MetricsOTLPConfig) []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return opts
}
