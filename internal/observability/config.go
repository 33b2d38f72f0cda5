package observability

import (
	"strings"

	"github.com/smallbiznis/gapline/internal/config"
)

// Config is the telemetry slice of the application config plus service identity.
type Config struct {
	config.TelemetryConfig

	ServiceName string
	Environment string
	Version     string

	development bool
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "gapline"
	}
	return Config{
		TelemetryConfig: cfg.Telemetry,
		ServiceName:     name,
		Environment:     strings.TrimSpace(cfg.Environment),
		Version:         strings.TrimSpace(cfg.AppVersion),
		development:     cfg.IsDevelopment(),
	}
}

// Debug turns on stack traces and verbose request logs.
func (c Config) Debug() bool {
	return c.development || c.LogLevel == "debug"
}
