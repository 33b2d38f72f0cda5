package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	AuthJWTSecret string

	// NodeID seeds the snowflake generator; replicas sharing a database need distinct ids.
	NodeID int64

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	PlansFile string

	// SeedTenantName creates a tenant at startup when set; development only.
	SeedTenantName string
	SeedTenantPlan string

	RateLimit RateLimitConfig
}

// TelemetryConfig feeds logging, tracing and OTLP metrics.
type TelemetryConfig struct {
	LogLevel            string
	LogFormat           string
	LogSampleInitial    int
	LogSampleThereafter int

	OTLPEnabled      bool
	OTLPEndpoint     string
	OTLPProtocol     string
	TraceSampleRatio float64
	MetricsNamespace string
}

// RateLimitConfig bounds bursts of AI actions per tenant.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AIActionRate  float64
	AIActionBurst int

	AIActionLockTTLSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	cfg := Config{
		AppName:           getenv("APP_SERVICE", "gapline"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       environment,
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		AuthJWTSecret:     strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		NodeID:            int64(getenvInt("NODE_ID", 1)),
		Telemetry: TelemetryConfig{
			LogLevel:            strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:           strings.ToLower(getenv("LOG_FORMAT", "json")),
			LogSampleInitial:    getenvInt("LOG_SAMPLE_INITIAL", 100),
			LogSampleThereafter: getenvInt("LOG_SAMPLE_THEREAFTER", 100),
			OTLPEnabled:         getenvBool("OTEL_ENABLED", !isDevelopment(environment)),
			OTLPEndpoint:        getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OTLPProtocol:        strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			TraceSampleRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
			MetricsNamespace:    getenv("METRICS_NAMESPACE", "gapline"),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "gapline"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),
		PlansFile:         strings.TrimSpace(getenv("PLANS_FILE", "")),
		SeedTenantName:    strings.TrimSpace(getenv("SEED_TENANT_NAME", "")),
		SeedTenantPlan:    strings.TrimSpace(getenv("SEED_TENANT_PLAN", "free")),
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "localhost:6379")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			AIActionRate:  getenvFloat("RATE_LIMIT_AI_ACTION_RATE", 0.5),
			AIActionBurst: getenvInt("RATE_LIMIT_AI_ACTION_BURST", 10),

			AIActionLockTTLSeconds: getenvInt("RATE_LIMIT_AI_ACTION_LOCK_TTL_SECONDS", 60),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// IsDevelopment reports local and test environments, where debug logging is on and
// telemetry export is off by default.
func (c Config) IsDevelopment() bool {
	return isDevelopment(c.Environment)
}

func isDevelopment(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
