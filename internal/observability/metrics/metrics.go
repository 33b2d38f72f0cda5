package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 15 * time.Second

type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
	Namespace        string
}

// Metrics holds the OTLP counters pushed alongside traces. The Prometheus collectors in
// metering.go and http.go cover the scrape side.
type Metrics struct {
	aiActions     metric.Int64Counter
	featureChecks metric.Int64Counter
	rateLimit     metric.Int64Counter
}

// NewProvider installs the global meter provider. With OTLP off it is a no-op provider so
// instruments can still be built.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := otlpExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)
	if lc != nil {
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
	}
	if log != nil {
		log.Info("otlp metrics exporter started",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
			zap.Duration("interval", exportInterval),
		)
	}
	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	prefix := namespace(cfg)
	meter := provider.Meter(prefix)

	m := &Metrics{}
	for _, inst := range []struct {
		dst  *metric.Int64Counter
		name string
		help string
	}{
		{&m.aiActions, "_ai_actions_total", "AI actions attempted by outcome."},
		{&m.featureChecks, "_feature_limit_checks_total", "Feature limit checks by outcome."},
		{&m.rateLimit, "_rate_limit_decisions_total", "AI rate limit decisions by endpoint and reason."},
	} {
		counter, err := meter.Int64Counter(prefix+inst.name, metric.WithDescription(inst.help))
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", prefix+inst.name, err)
		}
		*inst.dst = counter
	}
	return m, nil
}

func (m *Metrics) RecordAIAction(ctx context.Context, planType, action, outcome string) {
	if m == nil {
		return
	}
	m.aiActions.Add(ctx, 1, labels(
		attribute.String("plan_type", planType),
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordFeatureCheck(ctx context.Context, planType, feature string, allowed bool) {
	if m == nil {
		return
	}
	m.featureChecks.Add(ctx, 1, labels(
		attribute.String("plan_type", planType),
		attribute.String("feature", feature),
		attribute.String("outcome", decision(allowed)),
	))
}

// RecordRateLimit counts one limiter decision. An empty reason means the request passed.
func (m *Metrics) RecordRateLimit(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimit.Add(ctx, 1, labels(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", decision(reason == "")),
		attribute.String("reason", reason),
	))
}

func decision(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func labels(attrs ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(FilterAttributes(attrs...)...)
}

func namespace(cfg Config) string {
	for _, candidate := range []string{cfg.Namespace, cfg.ServiceName} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return "gapline"
}

func otlpExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Tenant and account ids are never labels.
var allowedLabelKeys = map[attribute.Key]bool{
	"plan_type":   true,
	"action":      true,
	"feature":     true,
	"outcome":     true,
	"endpoint":    true,
	"reason":      true,
	"method":      true,
	"route":       true,
	"status_code": true,
}

// FilterAttributes drops labels outside the allow list and blank values.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	kept := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if !allowedLabelKeys[attr.Key] {
			continue
		}
		value := strings.TrimSpace(attr.Value.Emit())
		if value == "" {
			continue
		}
		kept = append(kept, attribute.String(string(attr.Key), value))
	}
	return kept
}
