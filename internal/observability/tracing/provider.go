package tracing

import (
	"context"
	"fmt"
	"strings"

	obscontext "github.com/smallbiznis/gapline/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// NewProvider installs the global tracer provider and W3C propagators. With export off the
// provider still mints span ids, so log lines keep their trace_id correlation.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(serviceResource(cfg)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRatio))),
		sdktrace.WithSpanProcessor(tenantSpanProcessor{}),
	}
	if cfg.Enabled {
		exporter, err := spanExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	if lc != nil {
		lc.Append(fx.Hook{OnStop: tp.Shutdown})
	}
	if log != nil && cfg.Enabled {
		log.Info("otlp trace exporter started",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.Float64("sampling_ratio", cfg.SamplingRatio),
		)
	}
	return tp, nil
}

func serviceResource(cfg Config) *resource.Resource {
	return resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	)
}

func spanExporter(protocol, endpoint string) (sdktrace.SpanExporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc", "grpc/protobuf":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// tenantSpanProcessor stamps every span started under a resolved tenant, including the
// otelgorm child spans that never see the gin context.
type tenantSpanProcessor struct{}

func (tenantSpanProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {
	if cid := obscontext.CorrelationIDFromContext(ctx); cid != "" {
		s.SetAttributes(attribute.String("correlation_id", cid))
	}
	if tenantID := obscontext.TenantIDFromContext(ctx); tenantID != "" {
		s.SetAttributes(
			attribute.String("tenant_id", tenantID),
			attribute.String("plan_type", obscontext.PlanTypeFromContext(ctx)),
		)
	}
}

func (tenantSpanProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

func (tenantSpanProcessor) Shutdown(context.Context) error { return nil }

func (tenantSpanProcessor) ForceFlush(context.Context) error { return nil }
