package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sink backends.
const (
	BackendKinesis  = "kinesis"
	BackendKafka    = "kafka"
	BackendPostgres = "postgres"
)

// Config holds all configuration values
type Config struct {
	// Production run, from the command line
	NodeCount        int
	BurstsPerMinute  int // logged only, does not affect the quota
	ObservationTypes int

	// Sink
	SinkBackend     string
	StreamName      string
	PartitionKey    string
	PayloadEncoding string
	CycleInterval   time.Duration

	// Retry
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMaxAttempts     int
	RetryMaxElapsed      time.Duration

	// AWS Kinesis
	AWSRegion          string
	AWSEndpointURL     string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// Kafka
	KafkaBrokers []string
	KafkaCACert  string
	KafkaCert    string // optional client cert
	KafkaKey     string // optional client key

	// PostgreSQL
	DBHost   string
	DBPort   string
	DBUser   string
	DBPass   string
	DBName   string
	DBURL    string
	DBCACert string
	DBTable  string

	// Monitor
	MonitorAddr      string
	MonitorJWTSecret string
	SummaryInterval  time.Duration
}

// LoadConfig reads .env (if present) and the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // ignore error, fallback to env vars

	cfg := &Config{
		SinkBackend:     envOr("SINK_BACKEND", BackendKinesis),
		StreamName:      envOr("STREAM_NAME", "workflow_data_stream"),
		PartitionKey:    envOr("PARTITION_KEY", "arbitrary"),
		PayloadEncoding: envOr("PAYLOAD_ENCODING", "double"),

		AWSRegion:          envOr("AWS_REGION", "us-east-1"),
		AWSEndpointURL:     os.Getenv("AWS_ENDPOINT_URL"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),

		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKER")),
		KafkaCACert:  os.Getenv("KAFKA_CA_CERT"),
		KafkaCert:    os.Getenv("KAFKA_CLIENT_CERT"),
		KafkaKey:     os.Getenv("KAFKA_CLIENT_KEY"),

		DBHost:   os.Getenv("DB_HOST"),
		DBPort:   envOr("DB_PORT", "5432"),
		DBUser:   os.Getenv("DB_USER"),
		DBPass:   os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		DBURL:    os.Getenv("DB_URL"),
		DBCACert: os.Getenv("DB_CA_CERT"),
		DBTable:  envOr("DB_TABLE", "ingest.observations"),

		MonitorAddr:      envOr("MONITOR_ADDR", ":8080"),
		MonitorJWTSecret: os.Getenv("MONITOR_JWT_SECRET"),
	}

	var err error
	if cfg.CycleInterval, err = envDuration("CYCLE_INTERVAL", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RetryInitialInterval, err = envDuration("RETRY_INITIAL_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RetryMaxInterval, err = envDuration("RETRY_MAX_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMaxElapsed, err = envDuration("RETRY_MAX_ELAPSED", 0); err != nil {
		return nil, err
	}
	if cfg.SummaryInterval, err = envDuration("SUMMARY_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = envInt("RETRY_MAX_ATTEMPTS", 0); err != nil {
		return nil, err
	}

	// Build DB URL if not provided
	if cfg.DBURL == "" && cfg.DBHost != "" {
		sslmode := "disable"
		if cfg.DBCACert != "" {
			sslmode = "verify-full"
		}
		cfg.DBURL = fmt.Sprintf(
			"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
			cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, sslmode,
		)
	}

	return cfg, nil
}

// ParseRunArgs fills the production parameters from the three positional
// arguments: node count, bursts per minute, observation type count.
func (c *Config) ParseRunArgs(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("expected 3 arguments, got %d", len(args))
	}
	names := []string{"node count", "bursts per minute", "observation types"}
	vals := make([]int, 3)
	for i, a := range args {
		v, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return fmt.Errorf("%s: %w", names[i], err)
		}
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", names[i], v)
		}
		vals[i] = v
	}
	c.NodeCount, c.BurstsPerMinute, c.ObservationTypes = vals[0], vals[1], vals[2]
	return nil
}

// Validate checks the settings the chosen backend depends on.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("STREAM_NAME is required")
	}
	switch c.SinkBackend {
	case BackendKinesis:
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required for the kinesis backend")
		}
	case BackendKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKER is required for the kafka backend")
		}
	case BackendPostgres:
		if c.DBURL == "" {
			return fmt.Errorf("DB_URL or DB_HOST is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown SINK_BACKEND %q", c.SinkBackend)
	}
	if c.CycleInterval < 0 || c.RetryMaxAttempts < 0 || c.RetryMaxElapsed < 0 {
		return fmt.Errorf("cycle interval and retry bounds must not be negative")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
