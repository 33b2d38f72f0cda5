package observability

import (
	"github.com/smallbiznis/gapline/internal/observability/logger"
	"github.com/smallbiznis/gapline/internal/observability/metrics"
	"github.com/smallbiznis/gapline/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(LoadConfig),
	fx.Provide(provideLoggerConfig, logger.New),
	fx.Provide(provideTracingConfig, tracing.NewProvider),
	fx.Provide(
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		provideMeteringMetrics,
	),
	fx.Invoke(announce),
)

// announce also forces the tracer provider, which nothing else depends on directly.
func announce(cfg Config, log *zap.Logger, _ *sdktrace.TracerProvider) {
	log.Info("telemetry configured",
		zap.Bool("otlp_enabled", cfg.OTLPEnabled),
		zap.String("otlp_protocol", cfg.OTLPProtocol),
		zap.Float64("trace_sample_ratio", cfg.TraceSampleRatio),
		zap.String("log_level", cfg.LogLevel),
	)
}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		Version:          cfg.Version,
		Level:            cfg.LogLevel,
		Format:           cfg.LogFormat,
		Debug:            cfg.Debug(),
		SampleInitial:    cfg.LogSampleInitial,
		SampleThereafter: cfg.LogSampleThereafter,
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OTLPEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OTLPEndpoint,
		ExporterProtocol: cfg.OTLPProtocol,
		SamplingRatio:    cfg.TraceSampleRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OTLPEnabled,
		ExporterEndpoint: cfg.OTLPEndpoint,
		ExporterProtocol: cfg.OTLPProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		Namespace:        cfg.MetricsNamespace,
	}
}

func provideMeteringMetrics(cfg metrics.Config) *metrics.MeteringMetrics {
	return metrics.Metering(cfg)
}
