package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const gatewayTokenPrefix = "GOVPAY_TOKEN_"

type Config struct {
	App        AppConfig
	HTTP       ServerConfig
	MySQL      MySQLConfig
	Log        LogConfig
	Gateway    GatewayConfig
	Notify     NotifyConfig
	Scheduler  SchedulerConfig
	Submission SubmissionConfig
	Jobs       JobsConfig
}

type AppConfig struct {
	ServiceName string
	Environment string
}

func (c AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type GatewayConfig struct {
	BaseURL string
	// Tokens maps a tenant slug to its gateway bearer token. Resolved once
	// at load time; the proxy never reads the environment per request.
	Tokens      map[string]string
	HTTPTimeout time.Duration
}

type NotifyConfig struct {
	SlackWebhookURL string
	HTTPTimeout     time.Duration
}

type SchedulerConfig struct {
	Endpoint    string
	AdminSecret string
	HTTPTimeout time.Duration
}

type SubmissionConfig struct {
	SendBaseURL string
}

type JobsConfig struct {
	ReconcileInterval   time.Duration
	ReconcileStaleAfter time.Duration
	BatchSize           int32
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "payflow"),
			Environment: getEnv("APP_ENV", "development"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Gateway: GatewayConfig{
			BaseURL:     getEnv("GOVPAY_API_BASE_URL", "https://publicapi.payments.service.gov.uk"),
			Tokens:      loadGatewayTokens(),
			HTTPTimeout: getSecondsEnv("GOVPAY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Notify: NotifyConfig{
			SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
			HTTPTimeout:     getSecondsEnv("SLACK_HTTP_TIMEOUT_SECONDS", 5*time.Second),
		},
		Scheduler: SchedulerConfig{
			Endpoint:    getEnv("SCHEDULER_ENDPOINT", ""),
			AdminSecret: getEnv("SCHEDULER_ADMIN_SECRET", ""),
			HTTPTimeout: getSecondsEnv("SCHEDULER_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Submission: SubmissionConfig{
			SendBaseURL: getEnv("SUBMISSION_SEND_BASE_URL", ""),
		},
		Jobs: JobsConfig{
			ReconcileInterval:   getMinutesEnv("PAYFLOW_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
			ReconcileStaleAfter: getMinutesEnv("PAYFLOW_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			BatchSize:           int32(getIntEnv("PAYFLOW_JOB_BATCH_SIZE", 100)),
		},
	}, nil
}

// loadGatewayTokens scans the environment once for GOVPAY_TOKEN_<TENANT>
// variables. GOVPAY_TOKEN_EAST_HERTS becomes tenant slug "east-herts".
func loadGatewayTokens() map[string]string {
	tokens := make(map[string]string)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], gatewayTokenPrefix) {
			continue
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			continue
		}
		slug := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(parts[0], gatewayTokenPrefix), "_", "-"))
		tokens[slug] = token
	}
	return tokens
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
