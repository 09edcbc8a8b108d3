package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"checkout-service/database"
	aws_pkg "checkout-service/pkg/aws"

	"github.com/joho/godotenv"
)

// Event transports.
const (
	TransportNone  = "none"
	TransportSNS   = "sns"
	TransportKafka = "kafka"
	TransportSQS   = "sqs"
)

type Config struct {
	Env         string
	Port        string
	ServiceName string

	BackendURL         string
	BackendTimeout     time.Duration
	RequestTimeout     time.Duration
	ResolveConcurrency int

	RedisURL        string
	SessionTTL      time.Duration
	SelectionTTL    time.Duration
	SimilarCacheTTL time.Duration

	// Postgres is optional; without a host the step log is only written to the logs.
	Postgres database.PostgresConfig

	ShippingRulesSource string
	RegionsSource       string
	DefaultRegion       string

	CommitTimeout     time.Duration
	CartClearAttempts int
	CartClearBackoff  time.Duration

	JWTSecret           string
	TrustGatewayHeaders bool
	AllowedOrigins      []string
	RateLimitPerMinute  int
	RateLimitBurst      int

	EventsTransport string
	SNSTopicArn     string
	KafkaBrokers    []string
	KafkaTopic      string
	SQSQueueURL     string

	S3UsePathStyle     bool
	MetricsEnabled     bool
	MetricsNamespace   string
	CloudWatchEnabled  bool
	CloudWatchLogGroup string
}

// SecretGetter reads a named secret.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// LoadConfig reads .env (if present) and the environment. With
// AWS_USE_SECRETS=true, database credentials and the JWT secret come from Secrets Manager.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var secrets SecretGetter
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
		if err != nil {
			return nil, err
		}
		secrets = aws_pkg.NewSecretsClient(awsCfg)
	}
	return Load(context.Background(), secrets)
}

// Load builds the config from the environment. secrets may be nil.
func Load(ctx context.Context, secrets SecretGetter) (*Config, error) {
	env := &envReader{}
	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8090"),
		ServiceName: getEnv("SERVICE_NAME", "checkout-service"),

		BackendURL:         os.Getenv("BACKEND_URL"),
		BackendTimeout:     env.duration("BACKEND_TIMEOUT", 10*time.Second),
		RequestTimeout:     env.duration("REQUEST_TIMEOUT", 30*time.Second),
		ResolveConcurrency: env.int("RESOLVE_CONCURRENCY", 8),

		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionTTL:      env.duration("CHECKOUT_SESSION_TTL", 30*time.Minute),
		SelectionTTL:    env.duration("ADDRESS_SELECTION_TTL", 15*time.Minute),
		SimilarCacheTTL: env.duration("SIMILAR_CACHE_TTL", 10*time.Minute),

		Postgres: database.PostgresConfig{
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DB:       os.Getenv("POSTGRES_DB"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},

		ShippingRulesSource: getEnv("SHIPPING_RULES_SOURCE", "data/shipping_rules.json"),
		RegionsSource:       getEnv("REGIONS_SOURCE", "data/regions.json"),
		DefaultRegion:       getEnv("DEFAULT_REGION", "GB"),

		CommitTimeout:     env.duration("COMMIT_TIMEOUT", 30*time.Second),
		CartClearAttempts: env.int("CART_CLEAR_ATTEMPTS", 3),
		CartClearBackoff:  env.duration("CART_CLEAR_BACKOFF", 200*time.Millisecond),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitPerMinute: env.int("RATE_LIMIT_PER_MINUTE", 100),
		RateLimitBurst:     env.int("RATE_LIMIT_BURST", 50),

		EventsTransport: strings.ToLower(getEnv("EVENTS_TRANSPORT", TransportNone)),
		SNSTopicArn:     os.Getenv("SNS_TOPIC_ARN"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "checkout.orders"),
		SQSQueueURL:     os.Getenv("SQS_QUEUE_URL"),

		S3UsePathStyle:     env.bool("S3_USE_PATH_STYLE", false),
		MetricsEnabled:     env.bool("METRICS_ENABLED", false),
		MetricsNamespace:   getEnv("METRICS_NAMESPACE", "ECommerce/Checkout"),
		CloudWatchEnabled:  env.bool("CLOUDWATCH_ENABLED", false),
		CloudWatchLogGroup: getEnv("CLOUDWATCH_LOG_GROUP", "/ecommerce/checkout-service"),
	}
	if secrets != nil {
		applySecrets(ctx, cfg, secrets)
	}

	// Gateway headers are only trusted by default when tokens are not in use.
	cfg.TrustGatewayHeaders = env.bool("TRUST_GATEWAY_HEADERS", cfg.JWTSecret == "")
	if len(env.errs) > 0 {
		return nil, errors.Join(env.errs...)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overrides values that are present in Secrets Manager. Missing secrets keep the env values.
func applySecrets(ctx context.Context, cfg *Config, secrets SecretGetter) {
	if dbjson, err := secrets.GetSecret(ctx, "checkout/DB_CREDENTIALS"); err == nil && dbjson != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(dbjson), &m); err == nil {
			override(&cfg.Postgres.User, m["POSTGRES_USER"])
			override(&cfg.Postgres.Password, m["POSTGRES_PASSWORD"])
			override(&cfg.Postgres.DB, m["POSTGRES_DB"])
			override(&cfg.Postgres.Host, m["POSTGRES_HOST"])
			override(&cfg.Postgres.Port, m["POSTGRES_PORT"])
		}
	}
	if v, err := secrets.GetSecret(ctx, "checkout/JWT_SECRET"); err == nil {
		override(&cfg.JWTSecret, strings.TrimSpace(v))
	}
}

func (c *Config) validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.StepLogEnabled() && (c.Postgres.User == "" || c.Postgres.Password == "" || c.Postgres.DB == "") {
		return fmt.Errorf("database config incomplete")
	}
	if c.CartClearAttempts < 1 {
		return fmt.Errorf("CART_CLEAR_ATTEMPTS must be at least 1")
	}
	if c.RateLimitPerMinute < 1 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit settings must be positive")
	}

	switch c.EventsTransport {
	case TransportNone:
	case TransportSNS:
		if c.SNSTopicArn == "" {
			return fmt.Errorf("SNS_TOPIC_ARN is required for the sns transport")
		}
	case TransportKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the kafka transport")
		}
	case TransportSQS:
		if c.SQSQueueURL == "" {
			return fmt.Errorf("SQS_QUEUE_URL is required for the sqs transport")
		}
	default:
		return fmt.Errorf("unknown EVENTS_TRANSPORT %q", c.EventsTransport)
	}
	return nil
}

// StepLogEnabled reports whether commit steps are persisted to Postgres.
func (c *Config) StepLogEnabled() bool {
	return c.Postgres.Host != ""
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.EventsTransport == TransportSNS ||
		c.EventsTransport == TransportSQS ||
		c.MetricsEnabled ||
		c.CloudWatchEnabled ||
		strings.HasPrefix(c.ShippingRulesSource, "s3://") ||
		strings.HasPrefix(c.ShippingRulesSource, "dynamodb://") ||
		strings.HasPrefix(c.RegionsSource, "s3://")
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envReader parses typed values and collects every malformed one.
type envReader struct {
	errs []error
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (r *envReader) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (r *envReader) bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}
